package domain

// Action is an inbound recipient action decoded once at the transport
// boundary. The set of variants is closed; handlers switch over it.
type Action interface {
	isAction()
}

// RecordRef identifies a record from a button payload. ID is used whenever it
// is set; Token is only consulted for payloads carrying a non-numeric id.
type RecordRef struct {
	ID    uint
	Token string
}

// Empty reports whether the payload named no record at all.
func (r RecordRef) Empty() bool { return r.ID == 0 && r.Token == "" }

// ConfirmPayment is the reply to the initial prompt.
type ConfirmPayment struct {
	Ref   RecordRef
	Agree bool
}

// VerifyIdentity answers the name/phone check.
type VerifyIdentity struct {
	Ref RecordRef
	Yes bool
}

// ConfirmContract answers the signed-contract check.
type ConfirmContract struct {
	Ref RecordRef
	Yes bool
}

// SelectCategory picks a disagreement point by label.
type SelectCategory struct {
	Ref    RecordRef
	Reason string
}

// DecidePoint is the verdict after a point explanation.
type DecidePoint struct {
	Ref    RecordRef
	Reason string
	Agree  bool
}

// AgreeFromList is the "agree with statement" button under the category list.
type AgreeFromList struct {
	Ref RecordRef
}

// FinalAgreement answers "are you sure".
type FinalAgreement struct {
	Ref RecordRef
	Yes bool
}

// OpenStatement opens a record from the list.
type OpenStatement struct {
	Ref RecordRef
}

// ShowList renders the recipient's active records starting at Page (1-based).
type ShowList struct {
	Page int
}

// OpenByIndex opens the Index-th (1-based) record of the list.
type OpenByIndex struct {
	Index int
}

// QuickReply is a typed agree/disagree applied to the last opened record.
type QuickReply struct {
	Agree bool
}

// Start is the greeting command.
type Start struct{}

// FreeText is any text message that matched no command.
type FreeText struct {
	Text string
}

// Unknown is a structured payload with an unrecognized command.
type Unknown struct {
	Raw string
}

func (ConfirmPayment) isAction()  {}
func (VerifyIdentity) isAction()  {}
func (ConfirmContract) isAction() {}
func (SelectCategory) isAction()  {}
func (DecidePoint) isAction()     {}
func (AgreeFromList) isAction()   {}
func (FinalAgreement) isAction()  {}
func (OpenStatement) isAction()   {}
func (ShowList) isAction()        {}
func (OpenByIndex) isAction()     {}
func (QuickReply) isAction()      {}
func (Start) isAction()           {}
func (FreeText) isAction()        {}
func (Unknown) isAction()         {}

// Inbound is one recipient event after decoding.
type Inbound struct {
	EventID     string
	RecipientID int64
	Action      Action
}
