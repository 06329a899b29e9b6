package models

import (
	"time"

	"github.com/google/uuid"
)

// Invitation gates signup and records the bounded usage session granted to
// the invited email. At most one row exists per normalized email.
type Invitation struct {
	ID                  uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email               string     `gorm:"column:email;type:text;not null;uniqueIndex:invitations_email_key"`
	Code                string     `gorm:"column:code;not null"`
	ClientIP            *string    `gorm:"column:client_ip"`
	IsAccepted          bool       `gorm:"column:is_accepted;not null;default:false"`
	TestSessionStartAt  *time.Time `gorm:"column:test_session_start_at"`
	TestSessionExpireAt *time.Time `gorm:"column:test_session_expire_at"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
