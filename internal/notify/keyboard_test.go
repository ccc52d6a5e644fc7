package notify

import (
	"encoding/json"
	"testing"

	"github.com/tbourn/payroll-approval-bot/internal/domain"
)

func decodeButtons(t *testing.T, k *Keyboard) Keyboard {
	t.Helper()
	var out Keyboard
	if err := json.Unmarshal([]byte(k.JSON()), &out); err != nil {
		t.Fatalf("keyboard json: %v", err)
	}
	return out
}

func TestCategoryKeyboard_Layout(t *testing.T) {
	ref := domain.RecordRef{ID: 9}
	kb := decodeButtons(t, CategoryKeyboard(ref))
	if !kb.Inline {
		t.Fatalf("category keyboard must be inline")
	}
	// 8 points two per row, the catch-all row, the agree row.
	if len(kb.Buttons) != 6 {
		t.Fatalf("rows = %d; want 6", len(kb.Buttons))
	}
	for i := 0; i < 4; i++ {
		if len(kb.Buttons[i]) != 2 {
			t.Fatalf("row %d has %d buttons", i, len(kb.Buttons[i]))
		}
	}
	other := kb.Buttons[4][0]
	if other.Action.Label != domain.OtherReasonLabel {
		t.Fatalf("catch-all row = %q", other.Action.Label)
	}
	agree := kb.Buttons[5][0]
	if agree.Color != ColorPositive {
		t.Fatalf("agree color = %q", agree.Color)
	}
	if a := domain.DecodeAction(agree.Action.Payload, ""); a != (domain.AgreeFromList{Ref: ref}) {
		t.Fatalf("agree payload decodes to %#v", a)
	}
	first := kb.Buttons[0][0]
	want := domain.SelectCategory{Ref: ref, Reason: "Число учеников"}
	if a := domain.DecodeAction(first.Action.Payload, ""); a != want {
		t.Fatalf("first point decodes to %#v", a)
	}
}

func TestYesNoAndDecisionKeyboards_RoundTrip(t *testing.T) {
	ref := domain.RecordRef{ID: 3}
	cases := []struct {
		kb       *Keyboard
		yes, no  domain.Action
		yesLabel string
	}{
		{ConfirmKeyboard(ref), domain.ConfirmPayment{Ref: ref, Agree: true}, domain.ConfirmPayment{Ref: ref}, domain.TextAgree},
		{IdentityKeyboard(ref), domain.VerifyIdentity{Ref: ref, Yes: true}, domain.VerifyIdentity{Ref: ref}, "ДА"},
		{ContractKeyboard(ref), domain.ConfirmContract{Ref: ref, Yes: true}, domain.ConfirmContract{Ref: ref}, "ДА"},
		{FinalAgreementKeyboard(ref), domain.FinalAgreement{Ref: ref, Yes: true}, domain.FinalAgreement{Ref: ref}, "ДА"},
		{DecisionKeyboard(ref, "Штрафы"), domain.DecidePoint{Ref: ref, Reason: "Штрафы", Agree: true}, domain.DecidePoint{Ref: ref, Reason: "Штрафы"}, "Согласен с пунктом"},
	}
	for i, c := range cases {
		kb := decodeButtons(t, c.kb)
		if len(kb.Buttons) != 1 || len(kb.Buttons[0]) != 2 {
			t.Fatalf("case %d: layout %+v", i, kb.Buttons)
		}
		y, n := kb.Buttons[0][0], kb.Buttons[0][1]
		if y.Action.Label != c.yesLabel || y.Color != ColorPositive || n.Color != ColorNegative {
			t.Fatalf("case %d: buttons %+v %+v", i, y, n)
		}
		if a := domain.DecodeAction(y.Action.Payload, ""); a != c.yes {
			t.Fatalf("case %d: yes decodes to %#v", i, a)
		}
		if a := domain.DecodeAction(n.Action.Payload, ""); a != c.no {
			t.Fatalf("case %d: no decodes to %#v", i, a)
		}
	}
}

func TestKeyboard_NilAndEmpty(t *testing.T) {
	var k *Keyboard
	if k.JSON() != "" {
		t.Fatalf("nil keyboard must render empty")
	}
	if got := (&Keyboard{Inline: true}).JSON(); got != `{"one_time":false,"inline":true,"buttons":[]}` {
		t.Fatalf("empty keyboard = %s", got)
	}
}
