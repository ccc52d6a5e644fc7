// Package services – Importer
//
// Importer turns a published batch into payment records. Rows are validated
// with go-playground/validator and recipient references are normalized to a
// bare numeric id; rows that fail are reported back rather than inserted.

package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/payroll-approval-bot/internal/archive"
	"github.com/tbourn/payroll-approval-bot/internal/content"
	"github.com/tbourn/payroll-approval-bot/internal/domain"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Rejection reasons.
const (
	RejectNoRecipient      = "no_recipient"
	RejectInvalidRecipient = "invalid_recipient"
	RejectNoContent        = "no_content"
)

// ImportRow is one recipient line handed to ImportBatch.
type ImportRow struct {
	Recipient  string `json:"recipient"   validate:"required"`
	ContentRef string `json:"content_ref" validate:"required"`
}

// Rejection names a row that was not imported. Row is 1-based.
type Rejection struct {
	Row       int    `json:"row"`
	Recipient string `json:"recipient"`
	Reason    string `json:"reason"`
}

// ImportResult reports what an import created.
type ImportResult struct {
	BatchFile string      `json:"batch_file"`
	Created   int         `json:"created"`
	RecordIDs []uint      `json:"record_ids"`
	Rejected  []Rejection `json:"rejected"`
}

// Importer is the ImportPipeline.
type Importer struct {
	store    Records
	validate *validator.Validate
	now      func() time.Time
	log      zerolog.Logger
}

// NewImporter builds an importer over store.
func NewImporter(store Records) *Importer {
	return &Importer{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.With().Str("component", "importer").Logger(),
	}
}

// ImportBatch inserts one record per valid row of batchFile in a single
// transaction. New records start pending announcement.
func (im *Importer) ImportBatch(ctx context.Context, batchFile string, rows []ImportRow) (ImportResult, error) {
	tr := otel.Tracer("services/Importer")
	ctx, span := tr.Start(ctx, "ImportBatch",
		trace.WithAttributes(
			attribute.String("batch_file", batchFile),
			attribute.Int("rows", len(rows)),
		),
	)
	defer span.End()

	batchFile = strings.TrimSpace(batchFile)
	res := ImportResult{BatchFile: batchFile, RecordIDs: []uint{}, Rejected: []Rejection{}}
	if batchFile == "" || len(rows) == 0 {
		return res, ErrEmptyBatch
	}

	valid := make([]domain.NewRecord, 0, len(rows))
	for i, r := range rows {
		r.Recipient = strings.TrimSpace(r.Recipient)
		r.ContentRef = strings.TrimSpace(r.ContentRef)
		if err := im.validate.Struct(r); err != nil {
			res.Rejected = append(res.Rejected, Rejection{Row: i + 1, Recipient: r.Recipient, Reason: rejectReason(err)})
			continue
		}
		id, err := domain.NormalizeRecipientID(r.Recipient)
		if err != nil {
			reason := RejectInvalidRecipient
			if errors.Is(err, domain.ErrEmptyRecipient) {
				reason = RejectNoRecipient
			}
			res.Rejected = append(res.Rejected, Rejection{Row: i + 1, Recipient: r.Recipient, Reason: reason})
			continue
		}
		valid = append(valid, domain.NewRecord{RecipientID: id, ContentRef: r.ContentRef})
	}

	if len(valid) > 0 {
		recs, err := im.store.InsertBatch(ctx, batchFile, valid)
		if err != nil {
			span.RecordError(err)
			return res, fmt.Errorf("insert batch %s: %w", batchFile, err)
		}
		for _, rec := range recs {
			res.RecordIDs = append(res.RecordIDs, rec.ID)
		}
		res.Created = len(recs)
	}

	span.SetAttributes(attribute.Int("created", res.Created), attribute.Int("rejected", len(res.Rejected)))
	for _, rj := range res.Rejected {
		im.log.Warn().Str("batch_file", batchFile).Int("row", rj.Row).Str("recipient", rj.Recipient).Str("reason", rj.Reason).Msg("row rejected")
	}
	im.log.Info().Str("batch_file", batchFile).Int("created", res.Created).Int("rejected", len(res.Rejected)).Msg("batch imported")
	return res, nil
}

func rejectReason(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "ContentRef" {
				return RejectNoContent
			}
		}
	}
	return RejectNoRecipient
}

// ImportCSV splits the group file at path into single-row files under a
// users folder next to it, one per row, and imports them as one batch. Every
// row gets its own file, so repeated recipients and later batches in the same
// folder never share a content reference. An empty batchFile defaults to the
// file's base name.
func (im *Importer) ImportCSV(ctx context.Context, path, batchFile string) (ImportResult, error) {
	if batchFile == "" {
		batchFile = filepath.Base(path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ImportResult{BatchFile: batchFile}, fmt.Errorf("read %s: %w", path, err)
	}
	rows, bodies, err := content.SplitCSV(raw)
	if err != nil {
		return ImportResult{BatchFile: batchFile}, fmt.Errorf("split %s: %w", path, err)
	}

	usersDir := filepath.Join(filepath.Dir(path), archive.UsersDir)
	if err := os.MkdirAll(usersDir, 0o755); err != nil {
		return ImportResult{BatchFile: batchFile}, fmt.Errorf("create %s: %w", usersDir, err)
	}

	at := im.now()
	in := make([]ImportRow, 0, len(rows))
	for i, row := range rows {
		ref := row.Get("vk_id", "VK", "vk", "Ссылка на ВК")
		ir := ImportRow{Recipient: ref}
		if id, err := domain.NormalizeRecipientID(ref); err == nil {
			userFile := filepath.Join(usersDir, archive.UserFileName(id, batchFile, i, at))
			if err := writeNew(userFile, bodies[i]); err != nil {
				return ImportResult{BatchFile: batchFile}, err
			}
			ir.ContentRef = userFile
		} else {
			// Leave ContentRef set so the rejection names the recipient problem.
			ir.ContentRef = path
		}
		in = append(in, ir)
	}
	return im.ImportBatch(ctx, batchFile, in)
}

// writeNew creates path and fails if it already exists.
func writeNew(path string, body []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
