package types

import (
	"time"
)

// User lives on the primary bind. DefaultDescriberID is a weak self-reference
// (expert -> their default describer); no FK constraint is declared so the two
// binds stay structurally independent.
type User struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Username           string     `gorm:"size:64;uniqueIndex;not null" json:"username"`
	FullName           string     `gorm:"size:128" json:"full_name"`
	ScreenName         string     `gorm:"size:128" json:"screen_name"`
	PasswordHash       string     `gorm:"size:255;not null" json:"-"`
	Role               string     `gorm:"size:20;not null" json:"role"`
	DefaultDescriberID *uint      `json:"default_describer_id"`
	CookieAckAt        *time.Time `json:"cookie_ack_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}

// DisplayName is the label stored on cases and shown in audit rows.
func (u *User) DisplayName() string {
	if u == nil {
		return "—"
	}
	for _, v := range []string{u.ScreenName, u.Username} {
		if v != "" {
			return v
		}
	}
	return "—"
}
