package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/payroll-approval-bot/internal/domain"
)

const window = 36 * time.Hour

func seedBatch(t *testing.T, s *Store, batch string, ids ...int64) []domain.PaymentRecord {
	t.Helper()
	rows := make([]domain.NewRecord, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, domain.NewRecord{RecipientID: id, ContentRef: "users/" + batch})
	}
	recs, err := s.InsertBatch(context.Background(), batch, rows)
	if err != nil {
		t.Fatalf("InsertBatch(%s): %v", batch, err)
	}
	return recs
}

func fixedClock(t0 time.Time) func() time.Time { return func() time.Time { return t0 } }

func TestInsertBatch_UniqueTokensAcrossBatches(t *testing.T) {
	db := newTestDB(t, &domain.PaymentRecord{})
	t0 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	s := NewStore(db, window).WithClock(fixedClock(t0))

	ids := make([]int64, 50)
	for i := range ids {
		ids[i] = int64(100000 + i)
	}
	a := seedBatch(t, s, "A.csv", ids...)
	b := seedBatch(t, s, "B.csv", ids...)
	if len(a) != 50 || len(b) != 50 {
		t.Fatalf("expected 50+50 records, got %d+%d", len(a), len(b))
	}

	var tokens []string
	if err := db.Model(&domain.PaymentRecord{}).Pluck("import_token", &tokens).Error; err != nil {
		t.Fatalf("pluck tokens: %v", err)
	}
	seen := map[string]bool{}
	for _, tok := range tokens {
		if tok == "" || seen[tok] {
			t.Fatalf("token %q empty or shared", tok)
		}
		seen[tok] = true
	}
	if len(seen) != 100 {
		t.Fatalf("expected 100 distinct tokens, got %d", len(seen))
	}

	for _, r := range a {
		if r.ID == 0 || r.Status != domain.StatusNew || r.WarningSent || r.ImportState != domain.ImportPending {
			t.Fatalf("bad fresh record: %+v", r)
		}
		if !r.ArchiveAt.Equal(t0.Add(window)) {
			t.Fatalf("archive_at=%v want %v", r.ArchiveAt, t0.Add(window))
		}
	}
}

func TestInsertBatch_EmptyIsNoop(t *testing.T) {
	db := newTestDB(t, &domain.PaymentRecord{})
	recs, err := InsertBatch(context.Background(), db, "A.csv", nil, time.Now(), window)
	if err != nil || recs != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", recs, err)
	}
}

func TestFindByIDAndToken(t *testing.T) {
	db := newTestDB(t, &domain.PaymentRecord{})
	s := NewStore(db, window)
	recs := seedBatch(t, s, "A.csv", 123456)
	ctx := context.Background()

	got, err := s.FindByID(ctx, recs[0].ID)
	if err != nil || got.ImportToken != recs[0].ImportToken {
		t.Fatalf("FindByID: %v %+v", err, got)
	}
	got, err = s.FindByToken(ctx, recs[0].ImportToken)
	if err != nil || got.ID != recs[0].ID {
		t.Fatalf("FindByToken: %v %+v", err, got)
	}
	if _, err := s.FindByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindByToken(ctx, "  "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for blank token, got %v", err)
	}
}

func TestListActiveForRecipient_NewestFirstAndFiltered(t *testing.T) {
	db := newTestDB(t, &domain.PaymentRecord{})
	ctx := context.Background()
	t0 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	old := seedBatch(t, NewStore(db, window).WithClock(fixedClock(t0)), "old.csv", 555555)
	mid := seedBatch(t, NewStore(db, window).WithClock(fixedClock(t0.Add(2*time.Hour))), "mid.csv", 555555)
	newest := seedBatch(t, NewStore(db, window).WithClock(fixedClock(t0.Add(4*time.Hour))), "new.csv", 555555, 666666)
	if err := SetImportState(ctx, db, mid[0].ID, domain.ImportSkipZeroTotal, ""); err != nil {
		t.Fatalf("SetImportState: %v", err)
	}

	// At t0+37h the first batch has expired.
	s := NewStore(db, window).WithClock(fixedClock(t0.Add(37 * time.Hour)))
	got, err := s.ListActiveForRecipient(ctx, 555555)
	if err != nil {
		t.Fatalf("ListActiveForRecipient: %v", err)
	}
	if len(got) != 1 || got[0].ID != newest[0].ID {
		t.Fatalf("expected only newest record, got %+v", got)
	}

	s = NewStore(db, window).WithClock(fixedClock(t0.Add(time.Hour)))
	got, err = s.ListActiveForRecipient(ctx, 555555)
	if err != nil {
		t.Fatalf("ListActiveForRecipient: %v", err)
	}
	if len(got) != 2 || got[0].ID != newest[0].ID || got[1].ID != old[0].ID {
		t.Fatalf("expected [newest, old], got %+v", got)
	}
}

func TestListDueForWarning_WindowAndFilters(t *testing.T) {
	db := newTestDB(t, &domain.PaymentRecord{})
	ctx := context.Background()
	t0 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	s := NewStore(db, window).WithClock(fixedClock(t0))
	recs := seedBatch(t, s, "B1.csv", 111111, 222222, 333333, 444444)

	confirmed := t0.Add(time.Hour)
	if err := s.UpdateStatus(ctx, recs[1].ID, domain.StatusAgreed, nil, &confirmed); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := s.MarkWarned(ctx, recs[2].ID, 333333, t0); err != nil {
		t.Fatalf("MarkWarned: %v", err)
	}
	reason := "Штрафы"
	if err := s.UpdateStatus(ctx, recs[3].ID, domain.StatusDisagreed, &reason, &confirmed); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	// now = t0+28h, look-ahead 8h ± 30m
	now := t0.Add(28 * time.Hour)
	got, err := s.ListDueForWarning(ctx, now.Add(8*time.Hour-30*time.Minute), now.Add(8*time.Hour+30*time.Minute))
	if err != nil {
		t.Fatalf("ListDueForWarning: %v", err)
	}
	if len(got) != 2 || got[0].ID != recs[0].ID || got[1].ID != recs[3].ID {
		t.Fatalf("expected unwarned non-agreed records, got %+v", got)
	}

	// outside the window
	got, err = s.ListDueForWarning(ctx, t0, t0.Add(time.Hour))
	if err != nil || len(got) != 0 {
		t.Fatalf("expected nothing outside window, got %d err=%v", len(got), err)
	}
}

func TestDueBatchesAndDelete_PurgeAnyStatus(t *testing.T) {
	db := newTestDB(t, &domain.PaymentRecord{})
	ctx := context.Background()
	t0 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	s := NewStore(db, window).WithClock(fixedClock(t0))
	b1 := seedBatch(t, s, "B1.csv", 111111, 222222, 333333)
	seedBatch(t, NewStore(db, window).WithClock(fixedClock(t0.Add(10*time.Hour))), "B2.csv", 111111)

	confirmed := t0
	_ = s.UpdateStatus(ctx, b1[0].ID, domain.StatusAgreed, nil, &confirmed)
	_ = s.UpdateStatus(ctx, b1[1].ID, domain.StatusAgreePendingVerify, nil, nil)

	at := t0.Add(window)
	batches, err := s.ListDueBatches(ctx, at)
	if err != nil || len(batches) != 1 || batches[0] != "B1.csv" {
		t.Fatalf("ListDueBatches: %v %v", batches, err)
	}
	n, err := s.DeleteByBatch(ctx, "B1.csv")
	if err != nil || n != 3 {
		t.Fatalf("DeleteByBatch: n=%d err=%v", n, err)
	}
	n, err = s.DeleteByBatch(ctx, "B1.csv")
	if err != nil || n != 0 {
		t.Fatalf("second DeleteByBatch should be a no-op: n=%d err=%v", n, err)
	}
	if left, _ := s.ListDueBatches(ctx, at); len(left) != 0 {
		t.Fatalf("batches left after purge: %v", left)
	}

	active, err := NewStore(db, window).WithClock(fixedClock(at)).ListActiveBatches(ctx)
	if err != nil || len(active) != 1 || active[0] != "B2.csv" {
		t.Fatalf("ListActiveBatches: %v %v", active, err)
	}
}

func TestUpdateStatus_IdempotentAndNotFound(t *testing.T) {
	db := newTestDB(t, &domain.PaymentRecord{})
	ctx := context.Background()
	s := NewStore(db, window)
	recs := seedBatch(t, s, "B1.csv", 123456)

	at := time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		if err := s.UpdateStatus(ctx, recs[0].ID, domain.StatusAgreed, nil, &at); err != nil {
			t.Fatalf("UpdateStatus #%d: %v", i, err)
		}
	}
	got, _ := s.FindByID(ctx, recs[0].ID)
	if got.Status != domain.StatusAgreed || got.ConfirmedAt == nil || !got.ConfirmedAt.Equal(at) || got.DisagreeReason != nil {
		t.Fatalf("unexpected state after double update: %+v", got)
	}

	if err := s.UpdateStatus(ctx, 4242, domain.StatusAgreed, nil, &at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkWarned_OnceAndRecipientScoped(t *testing.T) {
	db := newTestDB(t, &domain.PaymentRecord{})
	ctx := context.Background()
	s := NewStore(db, window)
	recs := seedBatch(t, s, "B1.csv", 123456)

	first := time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC)
	if err := s.MarkWarned(ctx, recs[0].ID, 123456, first); err != nil {
		t.Fatalf("MarkWarned: %v", err)
	}
	if err := s.MarkWarned(ctx, recs[0].ID, 123456, first.Add(time.Hour)); err != nil {
		t.Fatalf("second MarkWarned should be a no-op: %v", err)
	}
	got, _ := s.FindByID(ctx, recs[0].ID)
	if !got.WarningSent || got.WarningSentAt == nil || !got.WarningSentAt.Equal(first) {
		t.Fatalf("warning bookkeeping wrong: %+v", got)
	}
	if err := s.MarkWarned(ctx, recs[0].ID, 999999, first); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other recipient, got %v", err)
	}
}

func TestListPendingAnnouncement_AndSetImportState(t *testing.T) {
	db := newTestDB(t, &domain.PaymentRecord{})
	ctx := context.Background()
	s := NewStore(db, window)
	recs := seedBatch(t, s, "B1.csv", 111111, 222222, 333333)

	if err := s.SetImportState(ctx, recs[0].ID, domain.ImportAnnounced, domain.KindTutor); err != nil {
		t.Fatalf("SetImportState: %v", err)
	}
	pending, err := s.ListPendingAnnouncement(ctx, 1)
	if err != nil || len(pending) != 1 || pending[0].ID != recs[1].ID {
		t.Fatalf("ListPendingAnnouncement: %+v %v", pending, err)
	}
	got, _ := s.FindByID(ctx, recs[0].ID)
	if got.Kind != domain.KindTutor || got.ImportState != domain.ImportAnnounced {
		t.Fatalf("import state not stored: %+v", got)
	}
	if err := s.SetImportState(ctx, 777, domain.ImportAnnounced, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPendingAnnouncement_RotatesAttempted(t *testing.T) {
	db := newTestDB(t, &domain.PaymentRecord{})
	ctx := context.Background()
	t0 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	s := NewStore(db, window).WithClock(fixedClock(t0))
	recs := seedBatch(t, s, "B1.csv", 111111, 222222, 333333)

	if err := s.MarkAnnounceAttempt(ctx, recs[0].ID); err != nil {
		t.Fatalf("MarkAnnounceAttempt: %v", err)
	}
	if err := s.WithClock(fixedClock(t0.Add(-time.Minute))).MarkAnnounceAttempt(ctx, recs[1].ID); err != nil {
		t.Fatalf("MarkAnnounceAttempt: %v", err)
	}
	pending, err := s.ListPendingAnnouncement(ctx, 10)
	if err != nil || len(pending) != 3 {
		t.Fatalf("ListPendingAnnouncement: %+v %v", pending, err)
	}
	want := []uint{recs[2].ID, recs[1].ID, recs[0].ID}
	for i, id := range want {
		if pending[i].ID != id {
			t.Fatalf("order = %d %d %d; want %v", pending[0].ID, pending[1].ID, pending[2].ID, want)
		}
	}
	if err := s.MarkAnnounceAttempt(ctx, 777); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
