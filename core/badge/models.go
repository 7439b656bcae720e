package badge

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/optioeducation/optio/core"
)

// Badge is an achievement awarded for finishing a set of quests.
type Badge struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Pillar      string    `json:"pillar"`
	ImageKey    string    `json:"image_key,omitempty"`
	QuestIDs    []string  `json:"quest_ids"`
	XPBonus     int       `json:"xp_bonus"`
	IsActive    *bool     `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

func (b *Badge) SetActive(active bool) {
	b.IsActive = &active
}

func (b *Badge) Active() bool {
	return b.IsActive != nil && *b.IsActive
}

type UserBadge struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	BadgeID   string    `json:"badge_id"`
	AwardedAt time.Time `json:"awarded_at"` // UTC

	Badge *Badge `json:"badge,omitempty"`
}

// NewBadge contains information needed to create a new Badge.
type NewBadge struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	Pillar      string   `json:"pillar" validate:"omitempty,pillar"`
	ImageKey    string   `json:"image_key"`
	QuestIDs    []string `json:"quest_ids" validate:"required,min=1,dive,required"`
	XPBonus     int      `json:"xp_bonus" validate:"min=0"`
	IsActive    *bool    `json:"is_active"`
}

func (nb *NewBadge) Validate(validate *validator.Validate) error {
	nb.Name = core.CleanString(nb.Name)
	nb.Description = core.CleanString(nb.Description)
	nb.Pillar = core.CleanString(nb.Pillar, true /* lower */)
	return validate.Struct(nb)
}

// UpdateBadge defines what information may be provided to modify an existing Badge.
// QuestIDs are replaced wholesale when provided.
type UpdateBadge struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Pillar      string   `json:"pillar" validate:"omitempty,pillar"`
	ImageKey    string   `json:"image_key"`
	QuestIDs    []string `json:"quest_ids" validate:"omitempty,min=1,dive,required"`
	XPBonus     *int     `json:"xp_bonus"`
	IsActive    *bool    `json:"is_active"`
}

func (ub *UpdateBadge) Validate(validate *validator.Validate, orig Badge) error {
	if name := core.CleanString(ub.Name); name != "" {
		ub.Name = name
	} else {
		ub.Name = orig.Name
	}
	if desc := core.CleanString(ub.Description); desc != "" {
		ub.Description = desc
	} else {
		ub.Description = orig.Description
	}
	if pillar := core.CleanString(ub.Pillar, true /* lower */); pillar != "" {
		ub.Pillar = pillar
	} else {
		ub.Pillar = orig.Pillar
	}
	return validate.Struct(ub)
}

type QueryFilter struct {
	Search   string `query:"search"`
	Pillar   string `query:"pillar"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Pillar == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Pillar = core.CleanString(qf.Pillar, true /* lower */)
}
