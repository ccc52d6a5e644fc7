package content

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/text/encoding/charmap"
)

func writeCSV(t *testing.T, dir, name string, body []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestResolver_MatchesRecipientAndFallsBackToFirstRow(t *testing.T) {
	dir := t.TempDir()
	p := writeCSV(t, dir, "group.csv", []byte("\xEF\xBB\xBFname,vk_id,total\nИван,https://vk.com/id123456,1500\nПётр,id654321,2000\n"))
	r := NewResolver(time.Minute)

	row, err := r.Row(p, 654321)
	if err != nil {
		t.Fatalf("Row: %v", err)
	}
	if row.Get("name") != "Пётр" {
		t.Fatalf("matched wrong row: %+v", row)
	}
	row, err = r.Row(p, 999999)
	if err != nil || row.Get("name") != "Иван" {
		t.Fatalf("fallback row: %v %+v", err, row)
	}
	if _, ok := row["name"]; !ok {
		t.Fatalf("BOM must be stripped from the first header")
	}
}

func TestResolver_CP1251(t *testing.T) {
	enc, err := charmap.Windows1251.NewEncoder().String("Репетитор,ИТОГ\nАнна,3000\n")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	p := writeCSV(t, t.TempDir(), "tutor.csv", []byte(enc))
	row, err := NewResolver(time.Minute).Row(p, 1)
	if err != nil {
		t.Fatalf("Row: %v", err)
	}
	if row.Get("Репетитор") != "Анна" || row.Get("ИТОГ") != "3000" {
		t.Fatalf("cp1251 decode failed: %+v", row)
	}
}

func TestResolver_CacheFollowsModTimeAndTTL(t *testing.T) {
	dir := t.TempDir()
	p := writeCSV(t, dir, "a.csv", []byte("name\nfirst\n"))
	now := time.Now()
	r := NewResolver(time.Minute)
	r.now = func() time.Time { return now }

	rows, err := r.Rows(p)
	if err != nil || rows[0].Get("name") != "first" {
		t.Fatalf("Rows: %v %+v", err, rows)
	}

	// Same mtime within TTL: cached copy is served even if bytes differ.
	st, _ := os.Stat(p)
	if err := os.WriteFile(p, []byte("name\nsecond\n"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := os.Chtimes(p, st.ModTime(), st.ModTime()); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	rows, _ = r.Rows(p)
	if rows[0].Get("name") != "first" {
		t.Fatalf("expected cached row, got %+v", rows)
	}

	// New mtime invalidates.
	later := st.ModTime().Add(2 * time.Second)
	if err := os.Chtimes(p, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	rows, _ = r.Rows(p)
	if rows[0].Get("name") != "second" {
		t.Fatalf("expected reload after mtime change, got %+v", rows)
	}

	// Sweep drops stale entries.
	now = now.Add(2 * time.Hour)
	if n := r.Sweep(time.Hour); n != 1 || r.Len() != 0 {
		t.Fatalf("Sweep removed %d, len=%d", n, r.Len())
	}
}

func TestResolver_Errors(t *testing.T) {
	r := NewResolver(time.Minute)
	if _, err := r.Row(filepath.Join(t.TempDir(), "missing.csv"), 1); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist, got %v", err)
	}
	p := writeCSV(t, t.TempDir(), "empty.csv", []byte("name,total\n"))
	if _, err := r.Row(p, 1); !errors.Is(err, ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestSplitCSV(t *testing.T) {
	rows, bodies, err := SplitCSV([]byte("vk_id,total\n111111,10\n\n222222,\"1 000\"\n"))
	if err != nil {
		t.Fatalf("SplitCSV: %v", err)
	}
	if len(rows) != 2 || len(bodies) != 2 {
		t.Fatalf("rows=%d bodies=%d", len(rows), len(bodies))
	}
	back, err := ParseCSV(bodies[1])
	if err != nil || len(back) != 1 || back[0].Get("total") != "1 000" {
		t.Fatalf("body round-trip: %v %+v", err, back)
	}
}
