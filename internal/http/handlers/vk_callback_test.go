package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/payroll-approval-bot/internal/content"
	"github.com/tbourn/payroll-approval-bot/internal/domain"
	"github.com/tbourn/payroll-approval-bot/internal/notify"
	"github.com/tbourn/payroll-approval-bot/internal/repo"
	"github.com/tbourn/payroll-approval-bot/internal/services"
)

func newStore(t *testing.T) *repo.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "handlers.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.NewStore(db, 36*time.Hour)
}

type fakeQueue struct {
	mu  sync.Mutex
	evs []domain.Inbound
	err error
}

func (q *fakeQueue) Enqueue(ev domain.Inbound) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.evs = append(q.evs, ev)
	return nil
}

type fakeAcker struct {
	answers []notify.EventAnswer
	err     error
}

func (a *fakeAcker) Answer(_ context.Context, ans notify.EventAnswer) error {
	a.answers = append(a.answers, ans)
	return a.err
}

const (
	testGroup  = 4242
	testSecret = "s3cr3t"
)

func newCallbackRouter(t *testing.T) (*gin.Engine, *fakeQueue, *fakeAcker, *repo.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := newStore(t)
	q, a := &fakeQueue{}, &fakeAcker{}
	cb := NewCallback(CallbackConfig{
		GroupID:      testGroup,
		Confirmation: "c0nf1rm",
		Secret:       testSecret,
		DedupTTL:     time.Hour,
	}, store, a, q)
	r := gin.New()
	r.POST("/vk/callback", cb.Handle)
	return r, q, a, store
}

func postCallback(t *testing.T, r http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/vk/callback", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func buttonEvent(eventID string, payload map[string]any) map[string]any {
	return map[string]any{
		"type":     EventMessageEvent,
		"event_id": eventID,
		"group_id": testGroup,
		"secret":   testSecret,
		"object": map[string]any{
			"user_id":  123456789,
			"peer_id":  123456789,
			"event_id": "snack-" + eventID,
			"payload":  payload,
		},
	}
}

func TestCallback_ConfirmationAndGroupCheck(t *testing.T) {
	r, q, _, _ := newCallbackRouter(t)

	w := postCallback(t, r, map[string]any{"type": EventConfirmation, "group_id": testGroup})
	if w.Code != http.StatusOK || w.Body.String() != "c0nf1rm" {
		t.Fatalf("confirmation = %d %q", w.Code, w.Body.String())
	}
	w = postCallback(t, r, map[string]any{"type": EventConfirmation, "group_id": 1})
	if w.Body.String() != "ok" {
		t.Fatalf("foreign group got %q", w.Body.String())
	}
	if len(q.evs) != 0 {
		t.Fatalf("nothing should be queued")
	}
}

func TestCallback_SecretAndMalformed(t *testing.T) {
	r, q, _, _ := newCallbackRouter(t)

	ev := buttonEvent("e1", map[string]any{"cmd": domain.CmdToList})
	ev["secret"] = "wrong"
	if w := postCallback(t, r, ev); w.Code != http.StatusForbidden {
		t.Fatalf("bad secret -> %d", w.Code)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/vk/callback", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed -> %d", w.Code)
	}

	bad := map[string]any{"type": EventMessageNew, "group_id": testGroup, "secret": testSecret, "object": []int{1}}
	if w := postCallback(t, r, bad); w.Code != http.StatusBadRequest {
		t.Fatalf("bad object -> %d", w.Code)
	}
	if len(q.evs) != 0 {
		t.Fatalf("nothing should be queued")
	}
}

func TestCallback_ButtonEventQueuedOnceAndAcknowledged(t *testing.T) {
	r, q, a, _ := newCallbackRouter(t)
	ev := buttonEvent("e-42", map[string]any{
		"cmd":        domain.CmdConfirmPayment,
		"payment_id": "42",
		"choice":     domain.ChoiceAgree,
	})

	for i := 0; i < 2; i++ {
		if w := postCallback(t, r, ev); w.Code != http.StatusOK || w.Body.String() != "ok" {
			t.Fatalf("delivery %d -> %d %q", i+1, w.Code, w.Body.String())
		}
	}
	if len(q.evs) != 1 {
		t.Fatalf("queued %d events; redelivery must be dropped", len(q.evs))
	}
	got := q.evs[0]
	want := domain.ConfirmPayment{Ref: domain.RecordRef{ID: 42}, Agree: true}
	if got.RecipientID != 123456789 || got.EventID != "e-42" || got.Action != want {
		t.Fatalf("inbound = %+v", got)
	}
	if len(a.answers) != 1 || a.answers[0].EventID != "snack-e-42" || a.answers[0].Text != content.TextActionAccepted {
		t.Fatalf("answers = %+v", a.answers)
	}
}

func TestCallback_MessageNew(t *testing.T) {
	r, q, a, _ := newCallbackRouter(t)
	msg := func(eventID string, from, peer int64, text, payload string) map[string]any {
		m := map[string]any{"from_id": from, "peer_id": peer, "text": text}
		if payload != "" {
			m["payload"] = payload
		}
		return map[string]any{
			"type": EventMessageNew, "event_id": eventID, "group_id": testGroup, "secret": testSecret,
			"object": map[string]any{"message": m},
		}
	}

	postCallback(t, r, msg("m1", 123456789, 123456789, "Ведомость 2", ""))
	postCallback(t, r, msg("m2", 123456789, 123456789, "К списку выплат", `{"cmd":"payments_page","page":3}`))
	postCallback(t, r, msg("m3", -4242, 123456789, "outgoing", ""))
	postCallback(t, r, msg("m4", 123456789, 2000000001, "chat", ""))

	if len(q.evs) != 2 {
		t.Fatalf("queued = %+v", q.evs)
	}
	if q.evs[0].Action != (domain.OpenByIndex{Index: 2}) {
		t.Fatalf("text command = %#v", q.evs[0].Action)
	}
	if q.evs[1].Action != (domain.ShowList{Page: 3}) {
		t.Fatalf("payload wins over text, got %#v", q.evs[1].Action)
	}
	if len(a.answers) != 0 {
		t.Fatalf("plain messages are not answered")
	}
}

func TestCallback_FullInboxIsRedeliverable(t *testing.T) {
	r, q, a, _ := newCallbackRouter(t)
	q.err = services.ErrInboxFull
	ev := buttonEvent("e-full", map[string]any{"cmd": domain.CmdToList})

	w := postCallback(t, r, ev)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("full inbox -> %d", w.Code)
	}
	var resp ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != ErrCodeUnavailable {
		t.Fatalf("code = %q", resp.Code)
	}
	if len(a.answers) != 0 {
		t.Fatalf("rejected event must not be acknowledged")
	}

	q.err = nil
	if w := postCallback(t, r, ev); w.Code != http.StatusOK || len(q.evs) != 1 {
		t.Fatalf("redelivery after a full inbox -> %d, queued %d", w.Code, len(q.evs))
	}
}

func TestCallback_AnswerFailureStillOK(t *testing.T) {
	r, q, a, _ := newCallbackRouter(t)
	a.err = errors.New("vk down")
	if w := postCallback(t, r, buttonEvent("e-ans", map[string]any{"cmd": domain.CmdToList})); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(q.evs) != 1 {
		t.Fatalf("event must be queued even when the snackbar fails")
	}
}
