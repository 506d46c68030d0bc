package types

import (
	"time"
)

// TaskMessage is a per-user dashboard notification, appended on assignment and
// consumed when the expert first opens the execute page.
type TaskMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Recipient string    `gorm:"size:128" json:"recipient"`
	CaseID    uint      `gorm:"not null" json:"case_id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Seen      bool      `json:"seen"`
}

func (TaskMessage) TableName() string {
	return "task_message"
}
