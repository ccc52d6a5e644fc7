package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/payroll-approval-bot/internal/cache"
	"github.com/tbourn/payroll-approval-bot/internal/config"
	"github.com/tbourn/payroll-approval-bot/internal/content"
	"github.com/tbourn/payroll-approval-bot/internal/domain"
	"github.com/tbourn/payroll-approval-bot/internal/notify"
	"github.com/tbourn/payroll-approval-bot/internal/repo"
)

const window = 36 * time.Hour

var t0 = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// ----- Fakes -----

type sentMsg struct {
	rid  int64
	text string
	kb   *notify.Keyboard
}

type listCall struct {
	rid   int64
	items []notify.ListItem
	page  int
}

type fakeSender struct {
	mu    sync.Mutex
	msgs  []sentMsg
	lists []listCall
	errs  map[int64][]error // popped per send
}

func newFakeSender() *fakeSender { return &fakeSender{errs: map[int64][]error{}} }

func (f *fakeSender) Send(_ context.Context, rid int64, text string, kb *notify.Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if q := f.errs[rid]; len(q) > 0 {
		f.errs[rid] = q[1:]
		if q[0] != nil {
			return q[0]
		}
	}
	f.msgs = append(f.msgs, sentMsg{rid: rid, text: text, kb: kb})
	return nil
}

func (f *fakeSender) SendList(_ context.Context, rid int64, items []notify.ListItem, page int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, listCall{rid: rid, items: items, page: page})
	return nil
}

func (f *fakeSender) failNext(rid int64, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[rid] = append(f.errs[rid], errs...)
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func (f *fakeSender) last(t *testing.T) sentMsg {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) == 0 {
		t.Fatalf("nothing sent")
	}
	return f.msgs[len(f.msgs)-1]
}

type fakeComplaints struct {
	mu  sync.Mutex
	got []domain.Complaint
}

func (f *fakeComplaints) Publish(_ context.Context, c domain.Complaint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, c)
}

func (f *fakeComplaints) reasons() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.got))
	for _, c := range f.got {
		out = append(out, c.Reason)
	}
	return out
}

type fakeRows struct {
	mu   sync.Mutex
	rows map[string]domain.Row
}

func (f *fakeRows) Row(ref string, _ int64) (domain.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[ref]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("open %s: no such file", ref)
}

func (f *fakeRows) set(ref string, row domain.Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[ref] = row
}

type fakeMover struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func (f *fakeMover) MoveBatch(_ context.Context, batch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, batch)
	return f.errs[batch]
}

// ----- Harness -----

type harness struct {
	db         *gorm.DB
	store      *repo.Store
	cache      *cache.Cache
	rows       *fakeRows
	send       *fakeSender
	complaints *fakeComplaints
	render     *content.Renderer
	now        time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		db:         newTestDB(t),
		rows:       &fakeRows{rows: map[string]domain.Row{}},
		send:       newFakeSender(),
		complaints: &fakeComplaints{},
		render:     content.NewRenderer(window, config.DefaultRules().Retention),
		now:        t0,
	}
	h.store = repo.NewStore(h.db, window).WithClock(func() time.Time { return h.now })
	h.cache = cache.New(h.store, cache.Options{MaxEntries: 100, MaxLastOpened: 100})
	return h
}

func (h *harness) approval(store Records) *Approval {
	if store == nil {
		store = h.store
	}
	a := NewApproval(ApprovalDeps{
		Store:      store,
		Cache:      h.cache,
		Rows:       h.rows,
		Renderer:   h.render,
		Sender:     h.send,
		Complaints: h.complaints,
	})
	a.now = func() time.Time { return h.now }
	a.backoff = 0
	return a
}

func curatorRow(name string) domain.Row {
	return domain.Row{
		"vk_id": "123456789", "name": name, "type": "Групповой", "console": name,
		"Телефон": "79990001122", "total": "3500", "fines": "-200", "groups": "Физика | Группа 7",
	}
}

func tutorRow(name string) domain.Row {
	return domain.Row{"Репетитор": name, "Номер": "79990001122", "ИТОГ": "1000"}
}

// seed inserts one record per recipient into batch with a content row each.
func (h *harness) seed(t *testing.T, batch string, row domain.Row, rids ...int64) []domain.PaymentRecord {
	t.Helper()
	in := make([]domain.NewRecord, 0, len(rids))
	for _, rid := range rids {
		ref := fmt.Sprintf("open/%s/users/%d.csv", batch, rid)
		if row != nil {
			h.rows.set(ref, row)
		}
		in = append(in, domain.NewRecord{RecipientID: rid, ContentRef: ref})
	}
	recs, err := h.store.InsertBatch(context.Background(), batch, in)
	if err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	return recs
}

func (h *harness) record(t *testing.T, id uint) domain.PaymentRecord {
	t.Helper()
	rec, err := h.store.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindByID(%d): %v", id, err)
	}
	return *rec
}

func (h *harness) gone(t *testing.T, id uint) bool {
	t.Helper()
	_, err := h.store.FindByID(context.Background(), id)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("FindByID(%d): %v", id, err)
	}
	return errors.Is(err, repo.ErrNotFound)
}
