package quest

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/optioeducation/optio/core"
	"github.com/optioeducation/optio/core/badge"
	"github.com/optioeducation/optio/core/credit"
	"github.com/optioeducation/optio/core/learning"
	"github.com/optioeducation/optio/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("quest not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrCompletionNotFound = errors.New("task completion not found")
	ErrQuestInactive      = errors.New("quest is not active")
	ErrAlreadyEnrolled    = errors.New("already enrolled in this quest")
	ErrNotEnrolled        = errors.New("not enrolled in this quest")
	ErrTaskCompleted      = errors.New("task already completed")
	ErrEvidenceRequired   = errors.New("this task requires evidence")
	ErrAlreadyReviewed    = errors.New("completion already reviewed")
)

type (
	Repository interface {
		CreateQuest(ctx context.Context, q Quest) (Quest, error)
		// GetQuestByID returns the quest with its tasks, ordinal order.
		GetQuestByID(ctx context.Context, id string) (Quest, error)
		// QueryQuests applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Quest.Title or Quest.Description.
		QueryQuests(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Quest, error)
		// UpdateQuest replaces tasks wholesale when q.Tasks is non-nil.
		UpdateQuest(ctx context.Context, q Quest, xpReward *int, isActive *bool) (Quest, error)
		DeleteQuestsByID(ctx context.Context, ids ...string) error

		GetTaskByID(ctx context.Context, id string) (Task, error)

		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, userID, questID string) (Enrollment, error)
		QueryEnrollments(ctx context.Context, userID string) ([]Enrollment, error)
		FinishEnrollment(ctx context.Context, id string, at time.Time) (Enrollment, error)

		CreateTaskCompletion(ctx context.Context, tc TaskCompletion) (TaskCompletion, error)
		GetTaskCompletionByID(ctx context.Context, id string) (TaskCompletion, error)
		// QueryTaskCompletions returns completions newest first.
		QueryTaskCompletions(ctx context.Context, filter CompletionFilter) ([]TaskCompletion, error)
		ReviewTaskCompletion(ctx context.Context, id, status, verifiedBy string, at time.Time) (TaskCompletion, error)
	}

	Service interface {
		Create(ctx context.Context, nq NewQuest) (Quest, error)
		GetByID(ctx context.Context, id string) (Quest, error)
		Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Quest, error)
		Update(ctx context.Context, id string, uq UpdateQuest) (Quest, error)
		Delete(ctx context.Context, ids ...string) error

		Enroll(ctx context.Context, usr user.User, questID string) (Enrollment, error)
		EnrollmentsOf(ctx context.Context, userID string) ([]Enrollment, error)
		CompleteTask(ctx context.Context, usr user.User, sub TaskSubmission) (TaskCompletion, error)
		CompletionsOf(ctx context.Context, userID string) ([]TaskCompletion, error)
		FinishedQuestIDs(ctx context.Context, userID string) ([]string, error)

		PendingVerifications(ctx context.Context) ([]TaskCompletion, error)
		// Review verifies or rejects a pending completion. Rejection revokes
		// the XP awarded for the task.
		Review(ctx context.Context, completionID string, verifier user.User, approve bool) (TaskCompletion, error)
	}

	service struct {
		repo        Repository
		creditSvc   credit.Service
		learningSvc learning.Service
		badgeSvc    badge.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, creditSvc credit.Service, learningSvc learning.Service, badgeSvc badge.Service) Service {
	return &service{
		repo:        repo,
		creditSvc:   creditSvc,
		learningSvc: learningSvc,
		badgeSvc:    badgeSvc,
	}
}

func (svc *service) Create(ctx context.Context, nq NewQuest) (Quest, error) {
	now := time.Now().UTC()
	q := Quest{
		Title:       nq.Title,
		Description: nq.Description,
		Pillar:      nq.Pillar,
		Source:      nq.Source,
		XPReward:    nq.XPReward,
		IsActive:    nq.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if q.IsActive == nil {
		q.SetActive(true)
	}
	for i, nt := range nq.Tasks {
		q.Tasks = append(q.Tasks, Task{
			Ordinal:     i + 1,
			Title:       nt.Title,
			Description: nt.Description,
			XP:          nt.XP,
			Evidence:    nt.Evidence,
		})
	}
	return svc.repo.CreateQuest(ctx, q)
}

func (svc *service) GetByID(ctx context.Context, id string) (Quest, error) {
	return svc.repo.GetQuestByID(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Quest, error) {
	return svc.repo.QueryQuests(ctx, filter, ordering...)
}

func (svc *service) Update(ctx context.Context, id string, uq UpdateQuest) (Quest, error) {
	q := Quest{
		ID:          id,
		Title:       uq.Title,
		Description: uq.Description,
		Pillar:      uq.Pillar,
		UpdatedAt:   time.Now().UTC(),
	}
	for i, nt := range uq.Tasks {
		q.Tasks = append(q.Tasks, Task{
			QuestID:     id,
			Ordinal:     i + 1,
			Title:       nt.Title,
			Description: nt.Description,
			XP:          nt.XP,
			Evidence:    nt.Evidence,
		})
	}
	return svc.repo.UpdateQuest(ctx, q, uq.XPReward, uq.IsActive)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteQuestsByID(ctx, ids...)
}

func (svc *service) Enroll(ctx context.Context, usr user.User, questID string) (Enrollment, error) {
	q, err := svc.repo.GetQuestByID(ctx, questID)
	if err != nil {
		return Enrollment{}, err
	}
	if !q.Active() {
		return Enrollment{}, ErrQuestInactive
	}

	if _, err = svc.repo.GetEnrollment(ctx, usr.ID, questID); err == nil {
		return Enrollment{}, ErrAlreadyEnrolled
	} else if errors.Cause(err) != ErrNotEnrolled {
		return Enrollment{}, err
	}

	enr, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		UserID:    usr.ID,
		QuestID:   questID,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		return Enrollment{}, err
	}

	if _, err = svc.learningSvc.Record(ctx, usr.ID, learning.EventEnrolled, questID,
		struct {
			Title string `json:"title"`
		}{q.Title},
	); err != nil {
		return enr, errors.Wrap(err, "recording enrollment event")
	}
	return enr, nil
}

func (svc *service) EnrollmentsOf(ctx context.Context, userID string) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, userID)
}

// CompleteTask records a task completion with its evidence, awards the task XP
// and, when it was the quest's final open task, finishes the enrollment,
// awards the quest bonus and triggers badge evaluation.
func (svc *service) CompleteTask(ctx context.Context, usr user.User, sub TaskSubmission) (TaskCompletion, error) {
	task, err := svc.repo.GetTaskByID(ctx, sub.TaskID)
	if err != nil {
		return TaskCompletion{}, err
	}
	q, err := svc.repo.GetQuestByID(ctx, task.QuestID)
	if err != nil {
		return TaskCompletion{}, err
	}

	enr, err := svc.repo.GetEnrollment(ctx, usr.ID, task.QuestID)
	if err != nil {
		return TaskCompletion{}, err
	}

	// duplicate completion guard
	existing, err := svc.repo.QueryTaskCompletions(ctx, CompletionFilter{UserID: usr.ID, TaskID: task.ID})
	if err != nil {
		return TaskCompletion{}, err
	}
	for _, tc := range existing {
		if tc.Status != StatusRejected {
			return TaskCompletion{}, core.NewValidationError(ErrTaskCompleted)
		}
	}

	status := StatusVerified
	if task.RequiresEvidence() {
		if sub.EvidenceText == "" && sub.EvidenceURL == "" {
			return TaskCompletion{}, core.NewValidationError(ErrEvidenceRequired,
				core.FieldError{Field: "evidence_text", Error: ErrEvidenceRequired.Error()})
		}
		status = StatusPending
	}

	tc, err := svc.repo.CreateTaskCompletion(ctx, TaskCompletion{
		UserID:       usr.ID,
		QuestID:      task.QuestID,
		TaskID:       task.ID,
		Status:       status,
		EvidenceText: sub.EvidenceText,
		EvidenceURL:  sub.EvidenceURL,
		CompletedAt:  time.Now().UTC(),
	})
	if err != nil {
		return TaskCompletion{}, err
	}

	if task.XP > 0 {
		if _, err = svc.creditSvc.Append(ctx, usr.ID, credit.KindXP, task.XP, credit.ReasonTaskCompleted, task.ID); err != nil {
			return tc, errors.Wrap(err, "crediting task xp")
		}
	}
	if _, err = svc.learningSvc.Record(ctx, usr.ID, learning.EventTaskCompleted, task.ID,
		struct {
			Quest string `json:"quest"`
			Task  string `json:"task"`
			XP    int    `json:"xp"`
		}{q.Title, task.Title, task.XP},
	); err != nil {
		return tc, errors.Wrap(err, "recording completion event")
	}

	done, err := svc.questDone(ctx, usr.ID, q)
	if err != nil {
		return tc, err
	}
	if done && !enr.Finished() {
		if err = svc.finishQuest(ctx, usr, q, enr); err != nil {
			return tc, err
		}
	}
	return tc, nil
}

// questDone reports whether the user holds a non-rejected completion for every task.
func (svc *service) questDone(ctx context.Context, userID string, q Quest) (bool, error) {
	completions, err := svc.repo.QueryTaskCompletions(ctx, CompletionFilter{UserID: userID, QuestID: q.ID})
	if err != nil {
		return false, err
	}
	completed := make(map[string]bool, len(completions))
	for _, tc := range completions {
		if tc.Status != StatusRejected {
			completed[tc.TaskID] = true
		}
	}
	for _, t := range q.Tasks {
		if !completed[t.ID] {
			return false, nil
		}
	}
	return len(q.Tasks) > 0, nil
}

func (svc *service) finishQuest(ctx context.Context, usr user.User, q Quest, enr Enrollment) error {
	if _, err := svc.repo.FinishEnrollment(ctx, enr.ID, time.Now().UTC()); err != nil {
		return errors.Wrap(err, "finishing enrollment")
	}
	if q.XPReward > 0 {
		if _, err := svc.creditSvc.Append(ctx, usr.ID, credit.KindXP, q.XPReward, credit.ReasonQuestCompleted, q.ID); err != nil {
			return errors.Wrap(err, "crediting quest bonus")
		}
	}
	if _, err := svc.learningSvc.Record(ctx, usr.ID, learning.EventQuestCompleted, q.ID,
		struct {
			Title string `json:"title"`
		}{q.Title},
	); err != nil {
		return errors.Wrap(err, "recording quest completion event")
	}

	finished, err := svc.FinishedQuestIDs(ctx, usr.ID)
	if err != nil {
		return err
	}
	if _, err = svc.badgeSvc.EvaluateForUser(ctx, usr, finished); err != nil {
		return errors.Wrap(err, "evaluating badges")
	}
	return nil
}

func (svc *service) CompletionsOf(ctx context.Context, userID string) ([]TaskCompletion, error) {
	return svc.repo.QueryTaskCompletions(ctx, CompletionFilter{UserID: userID})
}

func (svc *service) FinishedQuestIDs(ctx context.Context, userID string) ([]string, error) {
	enrollments, err := svc.repo.QueryEnrollments(ctx, userID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, enr := range enrollments {
		if enr.Finished() {
			ids = append(ids, enr.QuestID)
		}
	}
	return ids, nil
}

func (svc *service) PendingVerifications(ctx context.Context) ([]TaskCompletion, error) {
	return svc.repo.QueryTaskCompletions(ctx, CompletionFilter{Status: StatusPending})
}

func (svc *service) Review(ctx context.Context, completionID string, verifier user.User, approve bool) (TaskCompletion, error) {
	tc, err := svc.repo.GetTaskCompletionByID(ctx, completionID)
	if err != nil {
		return TaskCompletion{}, err
	}
	if tc.Status != StatusPending {
		return TaskCompletion{}, core.NewValidationError(ErrAlreadyReviewed)
	}

	status := StatusVerified
	if !approve {
		status = StatusRejected
	}
	tc, err = svc.repo.ReviewTaskCompletion(ctx, tc.ID, status, verifier.ID, time.Now().UTC())
	if err != nil {
		return TaskCompletion{}, err
	}

	if !approve {
		if _, err = svc.creditSvc.Revoke(ctx, tc.UserID, tc.TaskID); err != nil && errors.Cause(err) != credit.ErrNotFound {
			return tc, errors.Wrap(err, "revoking task xp")
		}
	}
	return tc, nil
}
