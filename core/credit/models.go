package credit

import "time"

// Ledger kinds
const (
	KindXP     = "xp"
	KindCredit = "credit"
)

// Ledger reason codes
const (
	ReasonTaskCompleted       = "task_completed"
	ReasonQuestCompleted      = "quest_completed"
	ReasonBadgeAwarded        = "badge_awarded"
	ReasonAdminAdjustment     = "admin_adjustment"
	ReasonVerificationRevoked = "verification_revoked"
)

// LedgerEntry is an append-only record; balances are sums over entries.
// Corrections are compensating entries, never updates or deletes.
type LedgerEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	Ref       string    `json:"ref,omitempty"`  // task/quest/badge ID the entry relates to
	Note      string    `json:"note,omitempty"` // free text for admin adjustments
	CreatedAt time.Time `json:"created_at"`     // UTC
}

// Balance is a user's current totals per kind.
type Balance struct {
	UserID  string `json:"user_id"`
	XP      int    `json:"xp"`
	Credits int    `json:"credits"`
}

// EntryFilter narrows ledger queries. Zero fields are ignored.
type EntryFilter struct {
	UserID string
	Kind   string
	Reason string
	Ref    string
	Since  time.Time
}
