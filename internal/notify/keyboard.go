package notify

import (
	"encoding/json"

	"github.com/tbourn/payroll-approval-bot/internal/domain"
)

// Button colors understood by the platform.
const (
	ColorPrimary   = "primary"
	ColorSecondary = "secondary"
	ColorPositive  = "positive"
	ColorNegative  = "negative"
)

// ButtonAction is the action object of a keyboard button.
type ButtonAction struct {
	Type    string `json:"type"`
	Payload string `json:"payload,omitempty"`
	Label   string `json:"label"`
}

// Button is one keyboard button.
type Button struct {
	Action ButtonAction `json:"action"`
	Color  string       `json:"color,omitempty"`
}

// Keyboard is a VK keyboard. Inline keyboards are attached to one message;
// the others replace the recipient's persistent keyboard.
type Keyboard struct {
	OneTime bool       `json:"one_time"`
	Inline  bool       `json:"inline"`
	Buttons [][]Button `json:"buttons"`
}

// JSON renders k for the keyboard request parameter. A nil keyboard renders
// as "".
func (k *Keyboard) JSON() string {
	if k == nil {
		return ""
	}
	if k.Buttons == nil {
		k.Buttons = [][]Button{}
	}
	b, err := json.Marshal(k)
	if err != nil {
		return ""
	}
	return string(b)
}

func button(label string, a domain.Action, color string) Button {
	return Button{
		Action: ButtonAction{Type: "text", Payload: domain.EncodePayload(a), Label: label},
		Color:  color,
	}
}

func inline(rows ...[]Button) *Keyboard {
	return &Keyboard{Inline: true, Buttons: rows}
}

// ConfirmKeyboard offers the initial agree/disagree choice.
func ConfirmKeyboard(ref domain.RecordRef) *Keyboard {
	return inline([]Button{
		button(domain.TextAgree, domain.ConfirmPayment{Ref: ref, Agree: true}, ColorPositive),
		button(domain.TextDisagree, domain.ConfirmPayment{Ref: ref}, ColorNegative),
	})
}

func yesNo(yes, no domain.Action) *Keyboard {
	return inline([]Button{
		button("ДА", yes, ColorPositive),
		button("НЕТ", no, ColorNegative),
	})
}

// IdentityKeyboard answers the name/phone check.
func IdentityKeyboard(ref domain.RecordRef) *Keyboard {
	return yesNo(domain.VerifyIdentity{Ref: ref, Yes: true}, domain.VerifyIdentity{Ref: ref})
}

// ContractKeyboard answers the signed-contract check.
func ContractKeyboard(ref domain.RecordRef) *Keyboard {
	return yesNo(domain.ConfirmContract{Ref: ref, Yes: true}, domain.ConfirmContract{Ref: ref})
}

// FinalAgreementKeyboard answers "are you sure".
func FinalAgreementKeyboard(ref domain.RecordRef) *Keyboard {
	return yesNo(domain.FinalAgreement{Ref: ref, Yes: true}, domain.FinalAgreement{Ref: ref})
}

// ChatBottomKeyboard is the persistent "to the list" keyboard.
func ChatBottomKeyboard() *Keyboard {
	return &Keyboard{Buttons: [][]Button{{
		button(domain.TextToList, domain.ShowList{Page: 1}, ColorPrimary),
	}}}
}

// CategoryKeyboard lists the disagreement points two per row, the catch-all
// point on its own row, and a final "agree with statement" button.
func CategoryKeyboard(ref domain.RecordRef) *Keyboard {
	var rows [][]Button
	var other []Button
	var row []Button
	for _, c := range domain.Categories() {
		b := button(c.Label, domain.SelectCategory{Ref: ref, Reason: c.Label}, ColorPrimary)
		if c.IsOther() {
			other = append(other, b)
			continue
		}
		row = append(row, b)
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if len(other) > 0 {
		rows = append(rows, other)
	}
	rows = append(rows, []Button{button("Согласиться с ведомостью", domain.AgreeFromList{Ref: ref}, ColorPositive)})
	return inline(rows...)
}

// DecisionKeyboard follows a point explanation.
func DecisionKeyboard(ref domain.RecordRef, reason string) *Keyboard {
	return inline([]Button{
		button("Согласен с пунктом", domain.DecidePoint{Ref: ref, Reason: reason, Agree: true}, ColorPositive),
		button("Не согласен с пунктом", domain.DecidePoint{Ref: ref, Reason: reason}, ColorNegative),
	})
}

// ListItem is one record on a list keyboard.
type ListItem struct {
	ID     uint
	Label  string
	Agreed bool
}

// listKeyboard renders one button per item. nextPage > 0 appends an "Ещё"
// button leading to that page.
func listKeyboard(items []ListItem, nextPage int) *Keyboard {
	rows := make([][]Button, 0, len(items)+1)
	for _, it := range items {
		color := ColorPrimary
		if it.Agreed {
			color = ColorPositive
		}
		rows = append(rows, []Button{button(it.Label, domain.OpenStatement{Ref: domain.RecordRef{ID: it.ID}}, color)})
	}
	if nextPage > 0 {
		rows = append(rows, []Button{button("Ещё", domain.ShowList{Page: nextPage}, ColorSecondary)})
	}
	return inline(rows...)
}
