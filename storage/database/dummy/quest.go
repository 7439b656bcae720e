package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/optioeducation/optio/core"
	"github.com/optioeducation/optio/core/quest"
)

type questRepository struct {
	db *questTable
}

var _ quest.Repository = (*questRepository)(nil) // interface compliance check

func NewQuestRepository(db *DB) quest.Repository {
	return &questRepository{db: db.quest}
}

func (repo *questRepository) query() []quest.Quest {
	quests := make([]quest.Quest, 0, len(repo.db.quests))
	for _, q := range repo.db.quests {
		quests = append(quests, *q)
	}
	sort.Slice(quests, func(i, j int) bool { return quests[i].CreatedAt.After(quests[j].CreatedAt) })
	return quests
}

func (repo *questRepository) CreateQuest(ctx context.Context, q quest.Quest) (quest.Quest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	q.ID = uuid.New().String()
	for i := range q.Tasks {
		q.Tasks[i].ID = uuid.New().String()
		q.Tasks[i].QuestID = q.ID
	}
	repo.db.quests[q.ID] = &q
	return q, nil
}

func (repo *questRepository) GetQuestByID(ctx context.Context, id string) (quest.Quest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if q, ok := repo.db.quests[id]; ok {
		return *q, nil
	}
	return quest.Quest{}, quest.ErrNotFound
}

func (repo *questRepository) QueryQuests(ctx context.Context, filter *quest.QueryFilter, ordering ...core.DBOrdering) ([]quest.Quest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	quests := repo.query()
	if filter == nil {
		return quests, nil
	}

	if filter.Search != "" {
		var filtered []quest.Quest
		search := strings.ToLower(filter.Search)
		for _, q := range quests {
			if strings.Contains(strings.ToLower(q.Title), search) ||
				strings.Contains(strings.ToLower(q.Description), search) {
				filtered = append(filtered, q)
			}
		}
		quests = filtered
	}
	if quests != nil && filter.Pillar != "" {
		var filtered []quest.Quest
		for _, q := range quests {
			if q.Pillar == filter.Pillar {
				filtered = append(filtered, q)
			}
		}
		quests = filtered
	}
	if quests != nil && filter.Source != "" {
		var filtered []quest.Quest
		for _, q := range quests {
			if q.Source == filter.Source {
				filtered = append(filtered, q)
			}
		}
		quests = filtered
	}
	if quests != nil && filter.IsActive != nil {
		var filtered []quest.Quest
		for _, q := range quests {
			if q.Active() == *filter.IsActive {
				filtered = append(filtered, q)
			}
		}
		quests = filtered
	}
	if quests != nil && filter.EnrolledBy != "" {
		enrolled := make(map[string]bool)
		for _, enr := range repo.db.enrollments {
			if enr.UserID == filter.EnrolledBy {
				enrolled[enr.QuestID] = true
			}
		}
		var filtered []quest.Quest
		for _, q := range quests {
			if enrolled[q.ID] {
				filtered = append(filtered, q)
			}
		}
		quests = filtered
	}
	return quests, nil
}

func (repo *questRepository) UpdateQuest(ctx context.Context, q quest.Quest, xpReward *int, isActive *bool) (quest.Quest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// only save set fields
	orig, ok := repo.db.quests[q.ID]
	if !ok {
		return quest.Quest{}, quest.ErrNotFound
	}
	if q.Title != "" {
		orig.Title = q.Title
	}
	if q.Description != "" {
		orig.Description = q.Description
	}
	if q.Pillar != "" {
		orig.Pillar = q.Pillar
	}
	if xpReward != nil {
		orig.XPReward = *xpReward
	}
	if isActive != nil {
		orig.SetActive(*isActive)
	}
	if q.Tasks != nil {
		for i := range q.Tasks {
			q.Tasks[i].ID = uuid.New().String()
			q.Tasks[i].QuestID = q.ID
		}
		orig.Tasks = q.Tasks
	}
	orig.UpdatedAt = q.UpdatedAt

	repo.db.quests[q.ID] = orig
	return *orig, nil
}

func (repo *questRepository) DeleteQuestsByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.quests, id)
	}
	return nil
}

func (repo *questRepository) GetTaskByID(ctx context.Context, id string) (quest.Task, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, q := range repo.db.quests {
		for _, t := range q.Tasks {
			if t.ID == id {
				return t, nil
			}
		}
	}
	return quest.Task{}, quest.ErrTaskNotFound
}

func (repo *questRepository) CreateEnrollment(ctx context.Context, e quest.Enrollment) (quest.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, enr := range repo.db.enrollments {
		if enr.UserID == e.UserID && enr.QuestID == e.QuestID {
			return quest.Enrollment{}, quest.ErrAlreadyEnrolled
		}
	}
	e.ID = uuid.New().String()
	repo.db.enrollments[e.ID] = &e
	return e, nil
}

func (repo *questRepository) GetEnrollment(ctx context.Context, userID, questID string) (quest.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.UserID == userID && enr.QuestID == questID {
			return *enr, nil
		}
	}
	return quest.Enrollment{}, quest.ErrNotEnrolled
}

func (repo *questRepository) QueryEnrollments(ctx context.Context, userID string) ([]quest.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var enrollments []quest.Enrollment
	for _, enr := range repo.db.enrollments {
		if enr.UserID == userID {
			enrollments = append(enrollments, *enr)
		}
	}
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].StartedAt.After(enrollments[j].StartedAt) })
	return enrollments, nil
}

func (repo *questRepository) FinishEnrollment(ctx context.Context, id string, at time.Time) (quest.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	enr, ok := repo.db.enrollments[id]
	if !ok {
		return quest.Enrollment{}, quest.ErrNotEnrolled
	}
	enr.FinishedAt = at
	return *enr, nil
}

func (repo *questRepository) CreateTaskCompletion(ctx context.Context, tc quest.TaskCompletion) (quest.TaskCompletion, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.completions {
		if existing.UserID == tc.UserID && existing.TaskID == tc.TaskID && existing.Status != quest.StatusRejected {
			return quest.TaskCompletion{}, quest.ErrTaskCompleted
		}
	}
	tc.ID = uuid.New().String()
	repo.db.completions[tc.ID] = &tc
	return tc, nil
}

func (repo *questRepository) GetTaskCompletionByID(ctx context.Context, id string) (quest.TaskCompletion, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if tc, ok := repo.db.completions[id]; ok {
		return *tc, nil
	}
	return quest.TaskCompletion{}, quest.ErrCompletionNotFound
}

func (repo *questRepository) QueryTaskCompletions(ctx context.Context, filter quest.CompletionFilter) ([]quest.TaskCompletion, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var completions []quest.TaskCompletion
	for _, tc := range repo.db.completions {
		if filter.UserID != "" && tc.UserID != filter.UserID {
			continue
		}
		if filter.QuestID != "" && tc.QuestID != filter.QuestID {
			continue
		}
		if filter.TaskID != "" && tc.TaskID != filter.TaskID {
			continue
		}
		if filter.Status != "" && tc.Status != filter.Status {
			continue
		}
		completions = append(completions, *tc)
	}
	sort.Slice(completions, func(i, j int) bool { return completions[i].CompletedAt.After(completions[j].CompletedAt) })
	return completions, nil
}

func (repo *questRepository) ReviewTaskCompletion(ctx context.Context, id, status, verifiedBy string, at time.Time) (quest.TaskCompletion, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	tc, ok := repo.db.completions[id]
	if !ok {
		return quest.TaskCompletion{}, quest.ErrCompletionNotFound
	}
	tc.Status = status
	tc.VerifiedBy = verifiedBy
	tc.VerifiedAt = at
	return *tc, nil
}
