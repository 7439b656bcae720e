package observer

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/optioeducation/optio/core"
	"github.com/optioeducation/optio/core/badge"
	"github.com/optioeducation/optio/core/credit"
	"github.com/optioeducation/optio/core/learning"
	"github.com/optioeducation/optio/core/quest"
	"github.com/optioeducation/optio/core/user"
)

var (
	// errors
	ErrNotFound      = errors.New("observer link not found")
	ErrLinkExists    = errors.New("an observer link with this email already exists")
	ErrInvalidInvite = errors.New("invalid or expired invite")
	ErrNotAccepted   = errors.New("observer link not accepted")
	ErrSelfObserve   = errors.New("cannot observe yourself")
)

type (
	Repository interface {
		CreateLink(ctx context.Context, l Link) (Link, error)
		GetLink(ctx context.Context, filter LinkFilter) (Link, error)
		// QueryLinks returns links newest first.
		QueryLinks(ctx context.Context, filter LinkFilter) ([]Link, error)
		UpdateLink(ctx context.Context, l Link) (Link, error)
	}

	Service interface {
		Invite(ctx context.Context, student user.User, inv InviteObserver) (Link, error)
		Accept(ctx context.Context, obs user.User, token string) (Link, error)
		Revoke(ctx context.Context, actor user.User, linkID string) (Link, error)
		StudentsOf(ctx context.Context, observerID string) ([]Link, error)
		ObserversOf(ctx context.Context, studentID string) ([]Link, error)
		CanObserve(ctx context.Context, observerID, studentID string) (bool, error)
		AcceptedLinks(ctx context.Context) ([]Link, error)
		ProgressOf(ctx context.Context, studentID string, eventsSince time.Time) (Progress, error)
	}

	service struct {
		repo        Repository
		userSvc     user.Service
		questSvc    quest.Service
		badgeSvc    badge.Service
		creditSvc   credit.Service
		learningSvc learning.Service
		mailSvc     core.EmailService
		conf        *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	userSvc user.Service,
	questSvc quest.Service,
	badgeSvc badge.Service,
	creditSvc credit.Service,
	learningSvc learning.Service,
	mailSvc core.EmailService,
	conf *core.Config,
) Service {
	return &service{
		repo:        repo,
		userSvc:     userSvc,
		questSvc:    questSvc,
		badgeSvc:    badgeSvc,
		creditSvc:   creditSvc,
		learningSvc: learningSvc,
		mailSvc:     mailSvc,
		conf:        conf,
	}
}

// Invite creates a pending link and mails the observer an invite token.
func (svc *service) Invite(ctx context.Context, student user.User, inv InviteObserver) (Link, error) {
	if inv.Email == core.CleanString(student.Email, true /* lower */) {
		return Link{}, core.NewValidationError(ErrSelfObserve, core.FieldError{Field: "email", Error: ErrSelfObserve.Error()})
	}

	existing, err := svc.repo.QueryLinks(ctx, LinkFilter{StudentID: student.ID})
	if err != nil {
		return Link{}, errors.Wrap(err, "querying links")
	}
	for _, l := range existing {
		if l.ObserverEmail == inv.Email && l.Status != StatusRevoked {
			return Link{}, core.NewValidationError(ErrLinkExists, core.FieldError{Field: "email", Error: ErrLinkExists.Error()})
		}
	}

	link, err := svc.repo.CreateLink(ctx, Link{
		StudentID:     student.ID,
		ObserverEmail: inv.Email,
		Status:        StatusPending,
		Token:         uuid.New().String(),
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return Link{}, err
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: link.ObserverEmail}},
		Subject:      "Invitation to follow a learner's progress",
		TemplateName: "observer-invite",
		TemplateData: struct {
			Student string
			Token   string
		}{student.Name, link.Token},
	})
	return link, nil
}

func (svc *service) Accept(ctx context.Context, obs user.User, token string) (Link, error) {
	link, err := svc.repo.GetLink(ctx, LinkFilter{Token: token})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Link{}, core.NewValidationError(ErrInvalidInvite)
		}
		return Link{}, err
	}
	if link.Status != StatusPending {
		return Link{}, core.NewValidationError(ErrInvalidInvite)
	}
	if link.StudentID == obs.ID {
		return Link{}, core.NewValidationError(ErrSelfObserve)
	}

	link.ObserverID = obs.ID
	link.Status = StatusAccepted
	link.RespondedAt = time.Now().UTC()
	link, err = svc.repo.UpdateLink(ctx, link)
	if err != nil {
		return Link{}, err
	}

	if _, err = svc.learningSvc.Record(ctx, link.StudentID, learning.EventObserverLinked, link.ID,
		struct {
			Observer string `json:"observer"`
		}{obs.Name},
	); err != nil {
		return link, errors.Wrap(err, "recording observer event")
	}
	return link, nil
}

// Revoke ends a link; either party (or an admin) may revoke.
func (svc *service) Revoke(ctx context.Context, actor user.User, linkID string) (Link, error) {
	link, err := svc.repo.GetLink(ctx, LinkFilter{ID: linkID})
	if err != nil {
		return Link{}, err
	}
	if !(actor.IsAdmin() || actor.ID == link.StudentID || actor.ID == link.ObserverID) {
		return Link{}, ErrNotFound
	}
	link.Status = StatusRevoked
	link.RespondedAt = time.Now().UTC()
	return svc.repo.UpdateLink(ctx, link)
}

func (svc *service) StudentsOf(ctx context.Context, observerID string) ([]Link, error) {
	return svc.repo.QueryLinks(ctx, LinkFilter{ObserverID: observerID, Status: StatusAccepted})
}

func (svc *service) ObserversOf(ctx context.Context, studentID string) ([]Link, error) {
	return svc.repo.QueryLinks(ctx, LinkFilter{StudentID: studentID})
}

func (svc *service) CanObserve(ctx context.Context, observerID, studentID string) (bool, error) {
	_, err := svc.repo.GetLink(ctx, LinkFilter{ObserverID: observerID, StudentID: studentID, Status: StatusAccepted})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (svc *service) AcceptedLinks(ctx context.Context) ([]Link, error) {
	return svc.repo.QueryLinks(ctx, LinkFilter{Status: StatusAccepted})
}

// ProgressOf assembles the observer-readable snapshot of a student.
func (svc *service) ProgressOf(ctx context.Context, studentID string, eventsSince time.Time) (Progress, error) {
	student, err := svc.userSvc.GetByID(ctx, studentID)
	if err != nil {
		return Progress{}, err
	}

	balance, err := svc.creditSvc.BalanceOf(ctx, studentID)
	if err != nil {
		return Progress{}, err
	}

	enrollments, err := svc.questSvc.EnrollmentsOf(ctx, studentID)
	if err != nil {
		return Progress{}, err
	}
	var inProgress []quest.Enrollment
	var finished []quest.Quest
	for _, enr := range enrollments {
		if !enr.Finished() {
			inProgress = append(inProgress, enr)
			continue
		}
		q, err := svc.questSvc.GetByID(ctx, enr.QuestID)
		if err != nil {
			if errors.Cause(err) == quest.ErrNotFound {
				continue
			}
			return Progress{}, err
		}
		finished = append(finished, q)
	}

	badges, err := svc.badgeSvc.BadgesOf(ctx, studentID)
	if err != nil {
		return Progress{}, err
	}

	events, err := svc.learningSvc.RecentOf(ctx, studentID, eventsSince)
	if err != nil {
		return Progress{}, err
	}

	return Progress{
		StudentID:      student.ID,
		StudentName:    student.Name,
		Balance:        balance,
		FinishedQuests: finished,
		InProgress:     inProgress,
		Badges:         badges,
		RecentEvents:   events,
	}, nil
}
