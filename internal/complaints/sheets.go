package complaints

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/tbourn/payroll-approval-bot/internal/config"
	"github.com/tbourn/payroll-approval-bot/internal/domain"
)

const sheetTimeFormat = "2006-01-02 15:04:05"

// rowAppender appends one row to a spreadsheet range.
type rowAppender interface {
	AppendRow(ctx context.Context, spreadsheetID, rng string, row []interface{}) error
}

type sheetsAPI struct {
	svc *sheets.Service
}

func (a sheetsAPI) AppendRow(ctx context.Context, spreadsheetID, rng string, row []interface{}) error {
	_, err := a.svc.Spreadsheets.Values.
		Append(spreadsheetID, rng, &sheets.ValueRange{Values: [][]interface{}{row}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// SheetSink appends complaints to a Google Sheet. Tutor complaints go to a
// separate spreadsheet when one is configured.
type SheetSink struct {
	api       rowAppender
	curatorID string
	tutorID   string
	rng       string
	groupID   int64
	location  *time.Location
}

// NewSheetSink authenticates with the service-account credentials file.
func NewSheetSink(ctx context.Context, cfg config.SheetsConfig, groupID int64) (*SheetSink, error) {
	if !cfg.Enabled() {
		return nil, errors.New("sheets sink: credentials file and spreadsheet id are required")
	}
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets sink: %w", err)
	}
	return newSheetSink(sheetsAPI{svc: svc}, cfg, groupID), nil
}

func newSheetSink(api rowAppender, cfg config.SheetsConfig, groupID int64) *SheetSink {
	rng := cfg.Range
	if rng == "" {
		rng = "Sheet1!A:G"
	}
	return &SheetSink{
		api:       api,
		curatorID: cfg.SpreadsheetID,
		tutorID:   cfg.TutorSpreadsheetID,
		rng:       rng,
		groupID:   groupID,
		location:  time.Local,
	}
}

// Record implements Sink.
func (s *SheetSink) Record(ctx context.Context, c domain.Complaint) error {
	id, row := s.curatorID, s.curatorRow(c)
	if c.Kind == domain.KindTutor && s.tutorID != "" {
		id, row = s.tutorID, s.tutorRow(c)
	}
	if err := s.api.AppendRow(ctx, id, s.rng, row); err != nil {
		return fmt.Errorf("append complaint row: %w", err)
	}
	return nil
}

func (s *SheetSink) stamp(c domain.Complaint) string {
	at := c.At
	if at.IsZero() {
		at = time.Now()
	}
	return at.In(s.location).Format(sheetTimeFormat)
}

func (s *SheetSink) dialogLink(recipientID int64) string {
	return fmt.Sprintf("https://vk.com/gim%d?sel=%d", s.groupID, recipientID)
}

// curatorRow: time, profile link, name, reason, batch, content ref, dialog.
func (s *SheetSink) curatorRow(c domain.Complaint) []interface{} {
	return []interface{}{
		s.stamp(c),
		"https://vk.com/id" + strconv.FormatInt(c.RecipientID, 10),
		c.DisplayName,
		c.Reason,
		c.BatchFile,
		c.ContentRef,
		s.dialogLink(c.RecipientID),
	}
}

// tutorRow: time, recipient id, name, reason, batch, dialog.
func (s *SheetSink) tutorRow(c domain.Complaint) []interface{} {
	return []interface{}{
		s.stamp(c),
		strconv.FormatInt(c.RecipientID, 10),
		c.DisplayName,
		c.Reason,
		c.BatchFile,
		s.dialogLink(c.RecipientID),
	}
}
