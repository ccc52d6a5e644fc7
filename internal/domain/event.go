package domain

import "time"

// InboundEvent remembers a platform event id so that redelivered callbacks
// are acknowledged without being handled twice. Rows expire after the dedup
// TTL and are pruned by the scheduler.
type InboundEvent struct {
	EventID     string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	RecipientID int64     `gorm:"not null;index"`
	Kind        string    `gorm:"type:TEXT NOT NULL"`
	CreatedAt   time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt   time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (InboundEvent) TableName() string { return "inbound_events" }
