package observer

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/optioeducation/optio/core"
	"github.com/optioeducation/optio/core/badge"
	"github.com/optioeducation/optio/core/credit"
	"github.com/optioeducation/optio/core/learning"
	"github.com/optioeducation/optio/core/quest"
)

// Link statuses
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRevoked  = "revoked"
)

// Link grants an observer (parent/mentor/teacher) read access to a student's
// progress once accepted.
type Link struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"student_id"`
	ObserverID    string    `json:"observer_id,omitempty"` // set on acceptance
	ObserverEmail string    `json:"observer_email"`
	Status        string    `json:"status"`
	Token         string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`             // UTC
	RespondedAt   time.Time `json:"responded_at,omitempty"` // UTC
}

// InviteObserver is a student's request to grant an observer access.
type InviteObserver struct {
	Email string `json:"email" validate:"required,email"`
}

func (io *InviteObserver) Validate(validate *validator.Validate) error {
	io.Email = core.CleanString(io.Email, true /* lower */)
	return validate.Struct(io)
}

// AcceptInvite carries the invite token mailed to the observer.
type AcceptInvite struct {
	Token string `json:"token" validate:"required"`
}

func (ai *AcceptInvite) Validate(validate *validator.Validate) error {
	ai.Token = core.CleanString(ai.Token)
	return validate.Struct(ai)
}

// LinkFilter narrows link queries. Zero fields are ignored.
type LinkFilter struct {
	ID         string
	StudentID  string
	ObserverID string
	Status     string
	Token      string
}

// Progress is the observer-readable snapshot of a student's standing.
type Progress struct {
	StudentID      string             `json:"student_id"`
	StudentName    string             `json:"student_name"`
	Balance        credit.Balance     `json:"balance"`
	FinishedQuests []quest.Quest      `json:"finished_quests"`
	InProgress     []quest.Enrollment `json:"in_progress"`
	Badges         []badge.UserBadge  `json:"badges"`
	RecentEvents   []learning.Event   `json:"recent_events"`
}
