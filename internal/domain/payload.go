package domain

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Button payload commands.
const (
	CmdConfirmPayment   = "confirm_payment"
	CmdAgreeVerify      = "agree_verify"
	CmdAgreePro         = "agree_pro"
	CmdDisagreeReason   = "disagree_reason"
	CmdDisagreeDecision = "disagree_decision"
	CmdAgreePayment     = "agree_payment"
	CmdFinalAgreement   = "final_agreement"
	CmdOpenStatement    = "open_statement"
	CmdPaymentsPage     = "payments_page"
	CmdToList           = "to_list"
)

// Payload choices.
const (
	ChoiceAgree         = "agree"
	ChoiceDisagree      = "disagree"
	ChoiceYes           = "yes"
	ChoiceNo            = "no"
	ChoiceAgreePoint    = "agree_point"
	ChoiceDisagreePoint = "disagree_point"
)

// Free-text commands.
const (
	TextToList      = "К списку выплат"
	TextAgree       = "Согласен с выплатой"
	TextDisagree    = "Не согласен с выплатой"
	TextStatementNo = "Ведомость"
)

// Payload is the JSON object attached to a keyboard button.
type Payload struct {
	Cmd         string   `json:"cmd"`
	PaymentID   idString `json:"payment_id,omitempty"`
	StatementID idString `json:"statement_id,omitempty"`
	Choice      string   `json:"choice,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	Page        int      `json:"page,omitempty"`
}

// idString accepts both JSON strings and numbers.
type idString string

func (s *idString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = idString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = idString(n.String())
	return nil
}

func refOf(id idString) RecordRef {
	raw := strings.TrimSpace(string(id))
	if raw == "" {
		return RecordRef{}
	}
	if n, err := strconv.ParseUint(raw, 10, 64); err == nil && n > 0 {
		return RecordRef{ID: uint(n)}
	}
	return RecordRef{Token: raw}
}

func idOf(r RecordRef) idString {
	if r.ID != 0 {
		return idString(strconv.FormatUint(uint64(r.ID), 10))
	}
	return idString(r.Token)
}

// EncodePayload renders the button payload for a. Actions that are never
// attached to buttons encode to "".
func EncodePayload(a Action) string {
	var p Payload
	switch v := a.(type) {
	case ConfirmPayment:
		p = Payload{Cmd: CmdConfirmPayment, PaymentID: idOf(v.Ref), Choice: pick(v.Agree, ChoiceAgree, ChoiceDisagree)}
	case VerifyIdentity:
		p = Payload{Cmd: CmdAgreeVerify, PaymentID: idOf(v.Ref), Choice: pick(v.Yes, ChoiceYes, ChoiceNo)}
	case ConfirmContract:
		p = Payload{Cmd: CmdAgreePro, PaymentID: idOf(v.Ref), Choice: pick(v.Yes, ChoiceYes, ChoiceNo)}
	case SelectCategory:
		p = Payload{Cmd: CmdDisagreeReason, PaymentID: idOf(v.Ref), Reason: v.Reason}
	case DecidePoint:
		p = Payload{Cmd: CmdDisagreeDecision, PaymentID: idOf(v.Ref), Reason: v.Reason, Choice: pick(v.Agree, ChoiceAgreePoint, ChoiceDisagreePoint)}
	case AgreeFromList:
		p = Payload{Cmd: CmdAgreePayment, PaymentID: idOf(v.Ref)}
	case FinalAgreement:
		p = Payload{Cmd: CmdFinalAgreement, PaymentID: idOf(v.Ref), Choice: pick(v.Yes, ChoiceYes, ChoiceNo)}
	case OpenStatement:
		p = Payload{Cmd: CmdOpenStatement, StatementID: idOf(v.Ref)}
	case ShowList:
		if v.Page > 1 {
			p = Payload{Cmd: CmdPaymentsPage, Page: v.Page}
		} else {
			p = Payload{Cmd: CmdToList}
		}
	default:
		return ""
	}
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(b)
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}

// DecodeAction turns a raw button payload and the message text into an
// Action. A payload with a known command wins; otherwise the text is matched
// against the free-text commands.
func DecodeAction(rawPayload, text string) Action {
	if strings.TrimSpace(rawPayload) != "" {
		var p Payload
		if err := json.Unmarshal([]byte(rawPayload), &p); err == nil && p.Cmd != "" {
			if a := fromPayload(p); a != nil {
				return a
			}
			return Unknown{Raw: rawPayload}
		}
	}
	return fromText(text)
}

func fromPayload(p Payload) Action {
	ref := refOf(p.PaymentID)
	switch p.Cmd {
	case CmdConfirmPayment:
		switch p.Choice {
		case ChoiceAgree:
			return ConfirmPayment{Ref: ref, Agree: true}
		case ChoiceDisagree:
			return ConfirmPayment{Ref: ref}
		}
	case CmdAgreeVerify:
		if yes, ok := yesNo(p.Choice); ok {
			return VerifyIdentity{Ref: ref, Yes: yes}
		}
	case CmdAgreePro:
		if yes, ok := yesNo(p.Choice); ok {
			return ConfirmContract{Ref: ref, Yes: yes}
		}
	case CmdDisagreeReason:
		return SelectCategory{Ref: ref, Reason: p.Reason}
	case CmdDisagreeDecision:
		switch p.Choice {
		case ChoiceAgreePoint:
			return DecidePoint{Ref: ref, Reason: p.Reason, Agree: true}
		case ChoiceDisagreePoint:
			return DecidePoint{Ref: ref, Reason: p.Reason}
		}
	case CmdAgreePayment:
		return AgreeFromList{Ref: ref}
	case CmdFinalAgreement:
		if yes, ok := yesNo(p.Choice); ok {
			return FinalAgreement{Ref: ref, Yes: yes}
		}
	case CmdOpenStatement:
		r := refOf(p.StatementID)
		if r.Empty() {
			r = ref
		}
		return OpenStatement{Ref: r}
	case CmdPaymentsPage:
		page := p.Page
		if page < 1 {
			page = 1
		}
		return ShowList{Page: page}
	case CmdToList:
		return ShowList{Page: 1}
	}
	return nil
}

func yesNo(choice string) (bool, bool) {
	switch choice {
	case ChoiceYes:
		return true, true
	case ChoiceNo:
		return false, true
	}
	return false, false
}

var statementNoRE = regexp.MustCompile(`^(?i:ведомость)\s*№?\s*(\d+)$`)

func fromText(text string) Action {
	t := strings.TrimSpace(text)
	fold := cases.Fold()
	folded := fold.String(t)
	switch folded {
	case fold.String(TextToList):
		return ShowList{Page: 1}
	case fold.String(TextAgree):
		return QuickReply{Agree: true}
	case fold.String(TextDisagree):
		return QuickReply{}
	case fold.String("Начать"), "start", "/start":
		return Start{}
	}
	if m := statementNoRE.FindStringSubmatch(t); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return OpenByIndex{Index: n}
		}
	}
	return FreeText{Text: t}
}
