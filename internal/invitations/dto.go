package invitations

import (
	"time"

	"github.com/google/uuid"

	"github.com/stockbookhq/stockbook-backend/pkg/db/models"
)

// IssueInvitationInput captures the data needed to invite an email.
type IssueInvitationInput struct {
	Email    string `json:"email" validate:"required,email"`
	ClientIP string `json:"-"`
}

// AcceptInvitationInput carries the acceptance handshake.
type AcceptInvitationInput struct {
	Email    string `json:"email" validate:"required,email"`
	Code     string `json:"code" validate:"required"`
	ClientIP string `json:"-"`
}

// InvitationDTO is the public projection of an invitation.
type InvitationDTO struct {
	ID                  uuid.UUID  `json:"id"`
	Email               string     `json:"email"`
	IsAccepted          bool       `json:"is_accepted"`
	TestSessionStartAt  *time.Time `json:"test_session_start_at,omitempty"`
	TestSessionExpireAt *time.Time `json:"test_session_expire_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// FromModel converts a persisted invitation into its API projection. The
// invite code is omitted.
func FromModel(invitation *models.Invitation) InvitationDTO {
	if invitation == nil {
		return InvitationDTO{}
	}
	return InvitationDTO{
		ID:                  invitation.ID,
		Email:               invitation.Email,
		IsAccepted:          invitation.IsAccepted,
		TestSessionStartAt:  invitation.TestSessionStartAt,
		TestSessionExpireAt: invitation.TestSessionExpireAt,
		CreatedAt:           invitation.CreatedAt,
	}
}
