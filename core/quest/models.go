package quest

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/optioeducation/optio/core"
)

// Quest sources
const (
	SourceCustom      = "custom"
	SourceAIGenerated = "ai-generated"
)

// Task evidence requirements
const (
	EvidenceNone     = "none"
	EvidenceText     = "text"
	EvidenceLink     = "link"
	EvidenceDocument = "document"
)

// Task completion statuses
const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusRejected = "rejected"
)

// Pillars categorize quests. The list mirrors the product's learning pillars.
var Pillars = []string{
	"stem",
	"arts-creativity",
	"language-communication",
	"society-culture",
	"life-wellness",
}

type Quest struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Pillar      string    `json:"pillar"`
	Source      string    `json:"source"`
	XPReward    int       `json:"xp_reward"` // bonus on finishing all tasks
	IsActive    *bool     `json:"is_active"`
	Tasks       []Task    `json:"tasks,omitempty"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

func (q *Quest) SetActive(active bool) {
	q.IsActive = &active
}

func (q *Quest) Active() bool {
	return q.IsActive != nil && *q.IsActive
}

type Task struct {
	ID          string `json:"id"`
	QuestID     string `json:"quest_id"`
	Ordinal     int    `json:"ordinal"`
	Title       string `json:"title"`
	Description string `json:"description"`
	XP          int    `json:"xp"`
	Evidence    string `json:"evidence"` // none|text|link|document
}

// RequiresEvidence reports whether completing the task needs an evidence payload
// and teacher verification.
func (t Task) RequiresEvidence() bool {
	return t.Evidence != "" && t.Evidence != EvidenceNone
}

type Enrollment struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	QuestID    string    `json:"quest_id"`
	StartedAt  time.Time `json:"started_at"`  // UTC
	FinishedAt time.Time `json:"finished_at"` // UTC; zero while in progress
}

func (e Enrollment) Finished() bool {
	return !e.FinishedAt.IsZero()
}

type TaskCompletion struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	QuestID      string    `json:"quest_id"`
	TaskID       string    `json:"task_id"`
	Status       string    `json:"status"`
	EvidenceText string    `json:"evidence_text,omitempty"`
	EvidenceURL  string    `json:"evidence_url,omitempty"`
	CompletedAt  time.Time `json:"completed_at"` // UTC
	VerifiedBy   string    `json:"verified_by,omitempty"`
	VerifiedAt   time.Time `json:"verified_at,omitempty"` // UTC
}

// NewQuest contains information needed to create a new Quest with its tasks.
type NewQuest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description" validate:"required"`
	Pillar      string    `json:"pillar" validate:"required,pillar"`
	Source      string    `json:"source" validate:"omitempty,oneof=custom ai-generated"`
	XPReward    int       `json:"xp_reward" validate:"min=0"`
	IsActive    *bool     `json:"is_active"`
	Tasks       []NewTask `json:"tasks" validate:"required,min=1,dive"`
}

type NewTask struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	XP          int    `json:"xp" validate:"min=0"`
	Evidence    string `json:"evidence" validate:"omitempty,oneof=none text link document"`
}

func (nq *NewQuest) Validate(validate *validator.Validate) error {
	nq.Title = core.CleanString(nq.Title)
	nq.Description = core.CleanString(nq.Description)
	nq.Pillar = core.CleanString(nq.Pillar, true /* lower */)
	for i := range nq.Tasks {
		nq.Tasks[i].Title = core.CleanString(nq.Tasks[i].Title)
		if nq.Tasks[i].Evidence == "" {
			nq.Tasks[i].Evidence = EvidenceNone
		}
	}
	if nq.Source == "" {
		nq.Source = SourceCustom
	}
	return validate.Struct(nq)
}

// UpdateQuest defines what information may be provided to modify an existing Quest.
// Tasks are replaced wholesale when provided.
type UpdateQuest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Pillar      string    `json:"pillar" validate:"omitempty,pillar"`
	XPReward    *int      `json:"xp_reward"`
	IsActive    *bool     `json:"is_active"`
	Tasks       []NewTask `json:"tasks" validate:"omitempty,min=1,dive"`
}

func (uq *UpdateQuest) Validate(validate *validator.Validate, orig Quest) error {
	if title := core.CleanString(uq.Title); title != "" {
		uq.Title = title
	} else {
		uq.Title = orig.Title
	}
	if desc := core.CleanString(uq.Description); desc != "" {
		uq.Description = desc
	} else {
		uq.Description = orig.Description
	}
	if pillar := core.CleanString(uq.Pillar, true /* lower */); pillar != "" {
		uq.Pillar = pillar
	} else {
		uq.Pillar = orig.Pillar
	}
	for i := range uq.Tasks {
		uq.Tasks[i].Title = core.CleanString(uq.Tasks[i].Title)
		if uq.Tasks[i].Evidence == "" {
			uq.Tasks[i].Evidence = EvidenceNone
		}
	}
	return validate.Struct(uq)
}

// TaskSubmission is a user's evidence payload for completing a task.
type TaskSubmission struct {
	TaskID       string `json:"task_id" validate:"required"`
	EvidenceText string `json:"evidence_text"`
	EvidenceURL  string `json:"evidence_url" validate:"omitempty,url"`
}

func (ts *TaskSubmission) Validate(validate *validator.Validate) error {
	ts.EvidenceText = core.CleanString(ts.EvidenceText)
	ts.EvidenceURL = core.CleanString(ts.EvidenceURL)
	return validate.Struct(ts)
}

type QueryFilter struct {
	Search     string `query:"search"`
	Pillar     string `query:"pillar"`
	Source     string `query:"source"`
	IsActive   *bool  `query:"is_active"`
	EnrolledBy string `query:"-"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Pillar == "" && qf.Source == "" && qf.IsActive == nil && qf.EnrolledBy == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Pillar = core.CleanString(qf.Pillar, true /* lower */)
	qf.Source = core.CleanString(qf.Source, true /* lower */)
}

// CompletionFilter narrows task completion queries. Zero fields are ignored.
type CompletionFilter struct {
	UserID  string
	QuestID string
	TaskID  string
	Status  string
}
