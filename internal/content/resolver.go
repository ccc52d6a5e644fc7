// Package content resolves a recipient's spreadsheet row and renders the
// texts shown in the approval dialogue.
package content

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/tbourn/payroll-approval-bot/internal/domain"
)

// ErrNoRows is returned for a CSV file without data rows.
var ErrNoRows = errors.New("csv has no data rows")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type csvEntry struct {
	rows     []domain.Row
	modTime  time.Time
	loadedAt time.Time
}

// Resolver loads row-scoped CSV files and caches the parsed rows keyed by
// path. An entry is reused while the file's modification time is unchanged
// and the entry is younger than TTL.
type Resolver struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	files map[string]csvEntry
}

// NewResolver returns a resolver with the given freshness TTL.
func NewResolver(ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Resolver{ttl: ttl, now: time.Now, files: make(map[string]csvEntry)}
}

// Rows returns every data row of the CSV file at path.
func (r *Resolver) Rows(path string) ([]domain.Row, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	now := r.now()

	r.mu.Lock()
	if e, ok := r.files[path]; ok && e.modTime.Equal(st.ModTime()) && now.Sub(e.loadedAt) < r.ttl {
		r.mu.Unlock()
		return e.rows, nil
	}
	r.mu.Unlock()

	rows, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.files[path] = csvEntry{rows: rows, modTime: st.ModTime(), loadedAt: now}
	r.mu.Unlock()
	return rows, nil
}

// Row returns the row of recipientID from the file at ref. Rows are matched
// on the normalized vk_id column; single-row personal files without a match
// fall back to their first row.
func (r *Resolver) Row(ref string, recipientID int64) (domain.Row, error) {
	rows, err := r.Rows(ref)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	want := strconv.FormatInt(recipientID, 10)
	for _, row := range rows {
		raw := row.Get("vk_id")
		if raw == "" {
			continue
		}
		if id, err := domain.NormalizeRecipientID(raw); err == nil && strconv.FormatInt(id, 10) == want {
			return row, nil
		}
	}
	return rows[0], nil
}

// Sweep drops cache entries loaded more than maxAge ago and returns how many
// were dropped.
func (r *Resolver) Sweep(maxAge time.Duration) int {
	cutoff := r.now().Add(-maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for p, e := range r.files {
		if e.loadedAt.Before(cutoff) {
			delete(r.files, p)
			n++
		}
	}
	return n
}

// Len reports the number of cached files.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

// ReadCSV parses a UTF-8 (optionally BOM-prefixed) or Windows-1251 CSV file
// with a header line into rows keyed by header.
func ReadCSV(path string) ([]domain.Row, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCSV(raw)
}

// ParseCSV is ReadCSV over an in-memory file.
func ParseCSV(raw []byte) ([]domain.Row, error) {
	header, records, err := parseRecords(raw)
	if err != nil {
		return nil, err
	}
	rows := make([]domain.Row, 0, len(records))
	for _, rec := range records {
		row := make(domain.Row, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// DecodeText returns raw as UTF-8, converting from Windows-1251 when raw is
// not valid UTF-8.
func DecodeText(raw []byte) ([]byte, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return raw, nil
	}
	out, err := charmap.Windows1251.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode cp1251: %w", err)
	}
	return out, nil
}

func parseRecords(raw []byte) ([]string, [][]string, error) {
	text, err := DecodeText(raw)
	if err != nil {
		return nil, nil, err
	}
	cr := csv.NewReader(bytes.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrNoRows
		}
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	var records [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv: %w", err)
		}
		if blank(rec) {
			continue
		}
		records = append(records, rec)
	}
	return header, records, nil
}

// SplitCSV splits a group file into one single-row file body per data row,
// each repeating the header, encoded as UTF-8.
func SplitCSV(raw []byte) ([]domain.Row, [][]byte, error) {
	header, records, err := parseRecords(raw)
	if err != nil {
		return nil, nil, err
	}
	rows := make([]domain.Row, 0, len(records))
	bodies := make([][]byte, 0, len(records))
	for _, rec := range records {
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		_ = w.Write(header)
		_ = w.Write(rec)
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, nil, err
		}
		row := make(domain.Row, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
		bodies = append(bodies, buf.Bytes())
	}
	return rows, bodies, nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
