// Admin API handlers. All routes sit behind middleware.AdminAuth.
package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/payroll-approval-bot/internal/domain"
	"github.com/tbourn/payroll-approval-bot/internal/services"
)

// ImportRequest creates a batch either from explicit rows or from a
// published group CSV. CSVPath wins when both are set; a relative path is
// resolved under the hosting open folder and may not leave it.
type ImportRequest struct {
	BatchFile string              `json:"batch_file" example:"Выплата_март.csv"`
	Rows      []services.ImportRow `json:"rows,omitempty"`
	CSVPath   string              `json:"csv_path,omitempty" example:"Физика/ГК/Выплата_март.csv"`
}

// RecipientPaymentsResponse lists a recipient's records inside the window.
type RecipientPaymentsResponse struct {
	RecipientID int64                  `json:"recipient_id" example:"123456789"`
	Payments    []domain.PaymentRecord `json:"payments"`
}

// ReconcileResponse reports how many cache entries were dropped.
type ReconcileResponse struct {
	Dropped int `json:"dropped" example:"3"`
}

// SetCSVRoot sets the folder CSV imports are confined to.
func (h *Admin) SetCSVRoot(root string) { h.csvRoot = root }

// csvPath resolves p under the CSV root. ok is false when p escapes it.
func (h *Admin) csvPath(p string) (string, bool) {
	if h.csvRoot == "" {
		return filepath.Clean(p), true
	}
	root, err := filepath.Abs(h.csvRoot)
	if err != nil {
		return "", false
	}
	full := p
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, full)
	}
	full = filepath.Clean(full)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

// RecipientPayments godoc
// @ID          recipientPayments
// @Summary     List a recipient's active payment records
// @Description Accepts a numeric id, "id123" or a profile link.
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
// @Param       id   path      string  true  "Recipient id or profile link"  example(123456789)
// @Success     200  {object}  handlers.RecipientPaymentsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid recipient"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /recipients/{id}/payments [get]
func (h *Admin) RecipientPayments(c *gin.Context) {
	rid, err := domain.NormalizeRecipientID(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	recs, err := h.records.ListActiveForRecipient(c.Request.Context(), rid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if recs == nil {
		recs = []domain.PaymentRecord{}
	}
	ok(c, http.StatusOK, RecipientPaymentsResponse{RecipientID: rid, Payments: recs})
}

// BatchStats godoc
// @ID          batchStats
// @Summary     Per-status counts of one batch
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
// @Param       batch  path      string  true  "Batch file name"  example(Выплата_март.csv)
// @Success     200    {object}  domain.BatchStats
// @Failure     401    {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     404    {object}  handlers.ErrorResponse  "Unknown or archived batch"
// @Failure     500    {object}  handlers.ErrorResponse  "Internal error"
// @Router      /batches/{batch}/stats [get]
func (h *Admin) BatchStats(c *gin.Context) {
	batch := strings.TrimSpace(c.Param("batch"))
	st, err := h.records.BatchStats(c.Request.Context(), batch)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if st.Total == 0 {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "batch not found")
		return
	}
	ok(c, http.StatusOK, st)
}

// ImportBatch godoc
// @ID          importBatch
// @Summary     Import a batch
// @Description Creates one pending record per valid row. Rejected rows are reported, not inserted.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    AdminToken
// @Param       body  body      handlers.ImportRequest  true  "Rows or a CSV path"
// @Success     201   {object}  services.ImportResult
// @Failure     400   {object}  handlers.ErrorResponse  "Empty batch or bad path"
// @Failure     401   {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     500   {object}  handlers.ErrorResponse  "Import failed"
// @Router      /batches [post]
func (h *Admin) ImportBatch(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ctx := c.Request.Context()

	var (
		res services.ImportResult
		err error
	)
	if p := strings.TrimSpace(req.CSVPath); p != "" {
		path, inside := h.csvPath(p)
		if !inside {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "csv_path is outside the hosting folder")
			return
		}
		res, err = h.importer.ImportCSV(ctx, path, strings.TrimSpace(req.BatchFile))
	} else {
		res, err = h.importer.ImportBatch(ctx, req.BatchFile, req.Rows)
	}
	switch {
	case errors.Is(err, services.ErrEmptyBatch):
		fail(c, http.StatusBadRequest, ErrCodeEmptyBatch, err.Error())
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeImportFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, res)
}

// RunSweep godoc
// @ID          runSweep
// @Summary     Run one warning and archival pass now
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  services.SweepReport
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     500  {object}  handlers.ErrorResponse  "Sweep failed"
// @Router      /sweeps [post]
func (h *Admin) RunSweep(c *gin.Context) {
	rep, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSweepFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, rep)
}

// Reconcile godoc
// @ID          reconcile
// @Summary     Drop cached records of archived batches
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  handlers.ReconcileResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Router      /reconcile [post]
func (h *Admin) Reconcile(c *gin.Context) {
	ok(c, http.StatusOK, ReconcileResponse{Dropped: h.reconciler.Reconcile(c.Request.Context())})
}
