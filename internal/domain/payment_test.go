// internal/domain/payment_test.go
package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&PaymentRecord{}, &InboundEvent{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	if got := (PaymentRecord{}).TableName(); got != "payment_records" {
		t.Fatalf("PaymentRecord table = %q", got)
	}
	if got := (InboundEvent{}).TableName(); got != "inbound_events" {
		t.Fatalf("InboundEvent table = %q", got)
	}
}

func TestPaymentRecord_MigrationIndexesAndDefaults(t *testing.T) {
	db := newDomainDB(t)
	m := db.Migrator()
	for _, idx := range []string{"ux_payment_import_token", "idx_payment_recipient", "idx_payment_batch", "idx_payment_archive_at", "idx_payment_status"} {
		if !m.HasIndex(&PaymentRecord{}, idx) {
			t.Fatalf("missing index %s", idx)
		}
	}

	now := time.Now().UTC()
	rec := &PaymentRecord{
		RecipientID: 123456789,
		BatchFile:   "B1.csv",
		ContentRef:  "users/B1_1.csv",
		ImportToken: "tok-1",
		CreatedAt:   now,
		ArchiveAt:   now.Add(36 * time.Hour),
	}
	if err := db.Omit("Status", "ImportState", "Kind").Create(rec).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	var got PaymentRecord
	if err := db.First(&got, rec.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != StatusNew || got.ImportState != ImportPending || got.Kind != KindCurator {
		t.Fatalf("unexpected defaults: status=%q import=%q kind=%q", got.Status, got.ImportState, got.Kind)
	}
	if got.WarningSent || got.ConfirmedAt != nil || got.Reason() != "" {
		t.Fatalf("fresh record should be unwarned and unconfirmed: %+v", got)
	}

	dup := &PaymentRecord{RecipientID: 2, BatchFile: "B1.csv", ContentRef: "x", ImportToken: "tok-1", CreatedAt: now, ArchiveAt: now}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected unique violation on import token")
	}
}

func TestStatus_TerminalAndValid(t *testing.T) {
	cases := []struct {
		s        Status
		terminal bool
	}{
		{StatusNew, false},
		{StatusAgreePendingVerify, false},
		{StatusAgreePendingPro, false},
		{StatusAgreeDataMismatch, false},
		{StatusAgreeProPending, false},
		{StatusDisagreeSelectPoint, false},
		{StatusAgreed, true},
		{StatusDisagreed, true},
	}
	for _, c := range cases {
		if c.s.Terminal() != c.terminal {
			t.Fatalf("%s terminal=%v", c.s, c.s.Terminal())
		}
		if !c.s.Valid() {
			t.Fatalf("%s should be valid", c.s)
		}
	}
	if Status("imported:abc").Valid() {
		t.Fatalf("unknown status must be invalid")
	}
}

func TestNormalizeRecipientID(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		err  error
	}{
		{"123456789", 123456789, nil},
		{" 42 ", 42, nil},
		{"https://vk.com/id123456", 123456, nil},
		{"ID7654321", 7654321, nil},
		{"profile 9876543 here", 9876543, nil},
		{"", 0, ErrEmptyRecipient},
		{"vk.com/durov", 0, ErrInvalidRecipient},
		{"id12", 0, ErrInvalidRecipient},
	}
	for _, c := range cases {
		got, err := NormalizeRecipientID(c.in)
		if err != c.err {
			t.Fatalf("%q: err=%v want %v", c.in, err, c.err)
		}
		if got != c.want {
			t.Fatalf("%q: got %d want %d", c.in, got, c.want)
		}
	}
}

func TestCategories(t *testing.T) {
	cs := Categories()
	if len(cs) != 9 {
		t.Fatalf("expected 9 categories, got %d", len(cs))
	}
	if !cs[len(cs)-1].IsOther() {
		t.Fatalf("catch-all must be last: %+v", cs[len(cs)-1])
	}
	c, ok := CategoryByLabel("КПИ за продления")
	if !ok || c.Type != "rr" {
		t.Fatalf("lookup rr: %+v ok=%v", c, ok)
	}
	if _, ok := CategoryByLabel("nope"); ok {
		t.Fatalf("unknown label must not resolve")
	}
	cs[0].Label = "mutated"
	if Categories()[0].Label == "mutated" {
		t.Fatalf("Categories must return a copy")
	}
}
