package badge

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/optioeducation/optio/core"
	"github.com/optioeducation/optio/core/credit"
	"github.com/optioeducation/optio/core/learning"
	"github.com/optioeducation/optio/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("badge not found")
	ErrAlreadyAwarded = errors.New("badge already awarded")
)

type (
	Repository interface {
		CreateBadge(ctx context.Context, b Badge) (Badge, error)
		GetBadgeByID(ctx context.Context, id string) (Badge, error)
		// QueryBadges applies AND operation on available QueryFilter fields.
		QueryBadges(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Badge, error)
		UpdateBadge(ctx context.Context, b Badge, xpBonus *int, isActive *bool) (Badge, error)
		DeleteBadgesByID(ctx context.Context, ids ...string) error
		CreateUserBadge(ctx context.Context, ub UserBadge) (UserBadge, error)
		// QueryUserBadges returns a user's badges, newest first, badge preloaded.
		QueryUserBadges(ctx context.Context, userID string) ([]UserBadge, error)
	}

	Service interface {
		Create(ctx context.Context, nb NewBadge) (Badge, error)
		GetByID(ctx context.Context, id string) (Badge, error)
		Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Badge, error)
		Update(ctx context.Context, id string, ub UpdateBadge) (Badge, error)
		Delete(ctx context.Context, ids ...string) error
		BadgesOf(ctx context.Context, userID string) ([]UserBadge, error)
		// EvaluateForUser awards every active badge whose entire quest set is
		// covered by finishedQuestIDs and which the user does not already hold.
		EvaluateForUser(ctx context.Context, usr user.User, finishedQuestIDs []string) ([]Badge, error)
	}

	service struct {
		repo        Repository
		creditSvc   credit.Service
		learningSvc learning.Service
		mailSvc     core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, creditSvc credit.Service, learningSvc learning.Service, mailSvc core.EmailService) Service {
	return &service{
		repo:        repo,
		creditSvc:   creditSvc,
		learningSvc: learningSvc,
		mailSvc:     mailSvc,
	}
}

func (svc *service) Create(ctx context.Context, nb NewBadge) (Badge, error) {
	now := time.Now().UTC()
	b := Badge{
		Name:        nb.Name,
		Description: nb.Description,
		Pillar:      nb.Pillar,
		ImageKey:    nb.ImageKey,
		QuestIDs:    nb.QuestIDs,
		XPBonus:     nb.XPBonus,
		IsActive:    nb.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if b.IsActive == nil {
		b.SetActive(true)
	}
	return svc.repo.CreateBadge(ctx, b)
}

func (svc *service) GetByID(ctx context.Context, id string) (Badge, error) {
	return svc.repo.GetBadgeByID(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Badge, error) {
	return svc.repo.QueryBadges(ctx, filter, ordering...)
}

func (svc *service) Update(ctx context.Context, id string, ub UpdateBadge) (Badge, error) {
	b := Badge{
		ID:          id,
		Name:        ub.Name,
		Description: ub.Description,
		Pillar:      ub.Pillar,
		ImageKey:    ub.ImageKey,
		QuestIDs:    ub.QuestIDs,
		UpdatedAt:   time.Now().UTC(),
	}
	return svc.repo.UpdateBadge(ctx, b, ub.XPBonus, ub.IsActive)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteBadgesByID(ctx, ids...)
}

func (svc *service) BadgesOf(ctx context.Context, userID string) ([]UserBadge, error) {
	return svc.repo.QueryUserBadges(ctx, userID)
}

func (svc *service) EvaluateForUser(ctx context.Context, usr user.User, finishedQuestIDs []string) ([]Badge, error) {
	active := true
	badges, err := svc.repo.QueryBadges(ctx, &QueryFilter{IsActive: &active})
	if err != nil {
		return nil, errors.Wrap(err, "querying active badges")
	}

	held, err := svc.repo.QueryUserBadges(ctx, usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying user badges")
	}
	heldIDs := make(map[string]bool, len(held))
	for _, ub := range held {
		heldIDs[ub.BadgeID] = true
	}

	finished := make(map[string]bool, len(finishedQuestIDs))
	for _, id := range finishedQuestIDs {
		finished[id] = true
	}

	var awarded []Badge
	for _, b := range badges {
		if heldIDs[b.ID] || len(b.QuestIDs) == 0 {
			continue
		}
		covered := true
		for _, qid := range b.QuestIDs {
			if !finished[qid] {
				covered = false
				break
			}
		}
		if !covered {
			continue
		}

		if _, err = svc.repo.CreateUserBadge(ctx, UserBadge{
			UserID:    usr.ID,
			BadgeID:   b.ID,
			AwardedAt: time.Now().UTC(),
		}); err != nil {
			if errors.Cause(err) == ErrAlreadyAwarded {
				continue
			}
			return awarded, errors.Wrap(err, "awarding badge")
		}

		if b.XPBonus > 0 {
			if _, err = svc.creditSvc.Append(ctx, usr.ID, credit.KindXP, b.XPBonus, credit.ReasonBadgeAwarded, b.ID); err != nil {
				return awarded, errors.Wrap(err, "crediting badge bonus")
			}
		}
		if _, err = svc.learningSvc.Record(ctx, usr.ID, learning.EventBadgeAwarded, b.ID,
			struct {
				Name string `json:"name"`
			}{b.Name},
		); err != nil {
			return awarded, errors.Wrap(err, "recording badge event")
		}

		svc.sendAwardMail(usr, b)
		awarded = append(awarded, b)
	}
	return awarded, nil
}

func (svc *service) sendAwardMail(usr user.User, b Badge) {
	if usr.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "You earned a badge!",
		TemplateName: "badge-awarded",
		TemplateData: struct {
			Name  string
			Badge string
		}{usr.Name, b.Name},
	})
}
