package domain

import "time"

// Complaint reasons reported to the complaint log.
const (
	ReasonIdentityMismatch = "Не те данные в Консоли"
	ReasonProNotAccepted   = "Не принял приглашение в Консоль ПРО"
	ReasonPointSelected    = "Выбран пункт несогласия: "
	ReasonPointDisagreed   = "Не согласен с пунктом: "
	ReasonActionFailed     = "Не удалось обработать действие"
)

// Complaint is a fire-and-forget escalation handed to an operator.
type Complaint struct {
	RecipientID int64     `json:"recipient_id"`
	Reason      string    `json:"reason"`
	BatchFile   string    `json:"batch_file"`
	ContentRef  string    `json:"content_ref"`
	DisplayName string    `json:"display_name"`
	Kind        Kind      `json:"kind"`
	At          time.Time `json:"at"`
}
