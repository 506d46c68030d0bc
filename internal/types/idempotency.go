package types

import (
	"time"
)

// IdempotencyToken deduplicates side-effecting POSTs. The unique index on Key
// is the single serialization point; a failed insert means "already processed".
type IdempotencyToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"size:64;uniqueIndex;not null" json:"key"`
	Route     string    `gorm:"size:128;not null" json:"route"`
	UserID    *uint     `json:"user_id"`
	CaseID    *uint     `json:"case_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (IdempotencyToken) TableName() string {
	return "idempotency_token"
}
