package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/optioeducation/optio/core"
	"github.com/optioeducation/optio/core/quest"
)

type questRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Pillar      string    `db:"pillar"`
	Source      string    `db:"source"`
	XPReward    int       `db:"xp_reward"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r questRow) quest() quest.Quest {
	q := quest.Quest{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Pillar:      r.Pillar,
		Source:      r.Source,
		XPReward:    r.XPReward,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	q.SetActive(r.IsActive)
	return q
}

type taskRow struct {
	ID          string `db:"id"`
	QuestID     string `db:"quest_id"`
	Ordinal     int    `db:"ordinal"`
	Title       string `db:"title"`
	Description string `db:"description"`
	XP          int    `db:"xp"`
	Evidence    string `db:"evidence"`
}

func (r taskRow) task() quest.Task {
	return quest.Task(r)
}

type enrollmentRow struct {
	ID         string       `db:"id"`
	UserID     string       `db:"user_id"`
	QuestID    string       `db:"quest_id"`
	StartedAt  time.Time    `db:"started_at"`
	FinishedAt sql.NullTime `db:"finished_at"`
}

func (r enrollmentRow) enrollment() quest.Enrollment {
	enr := quest.Enrollment{
		ID:        r.ID,
		UserID:    r.UserID,
		QuestID:   r.QuestID,
		StartedAt: r.StartedAt.UTC(),
	}
	if r.FinishedAt.Valid {
		enr.FinishedAt = r.FinishedAt.Time.UTC()
	}
	return enr
}

type completionRow struct {
	ID           string         `db:"id"`
	UserID       string         `db:"user_id"`
	QuestID      string         `db:"quest_id"`
	TaskID       string         `db:"task_id"`
	Status       string         `db:"status"`
	EvidenceText string         `db:"evidence_text"`
	EvidenceURL  string         `db:"evidence_url"`
	CompletedAt  time.Time      `db:"completed_at"`
	VerifiedBy   sql.NullString `db:"verified_by"`
	VerifiedAt   sql.NullTime   `db:"verified_at"`
}

func (r completionRow) completion() quest.TaskCompletion {
	tc := quest.TaskCompletion{
		ID:           r.ID,
		UserID:       r.UserID,
		QuestID:      r.QuestID,
		TaskID:       r.TaskID,
		Status:       r.Status,
		EvidenceText: r.EvidenceText,
		EvidenceURL:  r.EvidenceURL,
		CompletedAt:  r.CompletedAt.UTC(),
		VerifiedBy:   r.VerifiedBy.String,
	}
	if r.VerifiedAt.Valid {
		tc.VerifiedAt = r.VerifiedAt.Time.UTC()
	}
	return tc
}

type questRepository struct {
	db *sqlx.DB
}

var _ quest.Repository = (*questRepository)(nil) // interface compliance check

func NewQuestRepository(db *sqlx.DB) *questRepository {
	return &questRepository{db: db}
}

func (repo questRepository) CreateQuest(ctx context.Context, q quest.Quest) (quest.Quest, error) {
	q.ID = uuid.New().String()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return quest.Quest{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO quest (id, title, description, pillar, source, xp_reward, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		q.ID, q.Title, q.Description, q.Pillar, q.Source, q.XPReward, q.Active(), q.CreatedAt, q.UpdatedAt,
	)
	if err != nil {
		return quest.Quest{}, errors.Wrap(err, "inserting quest")
	}

	if q.Tasks, err = insertTasks(ctx, tx, q.ID, q.Tasks); err != nil {
		return quest.Quest{}, err
	}

	if err = tx.Commit(); err != nil {
		return quest.Quest{}, errors.Wrap(err, "committing quest")
	}
	return q, nil
}

func insertTasks(ctx context.Context, tx *sqlx.Tx, questID string, tasks []quest.Task) ([]quest.Task, error) {
	for i := range tasks {
		tasks[i].ID = uuid.New().String()
		tasks[i].QuestID = questID
		_, err := tx.ExecContext(ctx,
			`INSERT INTO quest_task (id, quest_id, ordinal, title, description, xp, evidence)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			tasks[i].ID, questID, tasks[i].Ordinal, tasks[i].Title, tasks[i].Description, tasks[i].XP, tasks[i].Evidence,
		)
		if err != nil {
			return nil, errors.Wrap(err, "inserting task")
		}
	}
	return tasks, nil
}

func (repo questRepository) GetQuestByID(ctx context.Context, id string) (quest.Quest, error) {
	var row questRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM quest WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return quest.Quest{}, quest.ErrNotFound
		}
		return quest.Quest{}, errors.Wrap(err, "getting quest")
	}

	q := row.quest()
	var taskRows []taskRow
	err := repo.db.SelectContext(ctx, &taskRows,
		`SELECT * FROM quest_task WHERE quest_id = $1 ORDER BY ordinal`, id)
	if err != nil {
		return quest.Quest{}, errors.Wrap(err, "getting quest tasks")
	}
	for _, tr := range taskRows {
		q.Tasks = append(q.Tasks, tr.task())
	}
	return q, nil
}

func (repo questRepository) QueryQuests(ctx context.Context, filter *quest.QueryFilter, ordering ...core.DBOrdering) ([]quest.Quest, error) {
	var b condBuilder
	if filter != nil {
		if filter.Search != "" {
			search := "%" + filter.Search + "%"
			b.add("(title ILIKE ? OR description ILIKE ?)", search, search)
		}
		if filter.Pillar != "" {
			b.add("pillar = ?", filter.Pillar)
		}
		if filter.Source != "" {
			b.add("source = ?", filter.Source)
		}
		if filter.IsActive != nil {
			b.add("is_active = ?", *filter.IsActive)
		}
		if filter.EnrolledBy != "" {
			b.add("EXISTS (SELECT 1 FROM quest_enrollment e WHERE e.quest_id = quest.id AND e.user_id = ?)", filter.EnrolledBy)
		}
	}

	query := `SELECT * FROM quest` + b.where() + orderClause(ordering, "created_at DESC")
	var rows []questRow
	if err := repo.db.SelectContext(ctx, &rows, query, b.args...); err != nil {
		return nil, errors.Wrap(err, "querying quests")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	quests := make([]quest.Quest, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		quests = append(quests, r.quest())
		ids = append(ids, r.ID)
	}

	// preload tasks
	taskQuery, args, err := sqlx.In(`SELECT * FROM quest_task WHERE quest_id IN (?) ORDER BY ordinal`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building task query")
	}
	var taskRows []taskRow
	if err = repo.db.SelectContext(ctx, &taskRows, repo.db.Rebind(taskQuery), args...); err != nil {
		return nil, errors.Wrap(err, "querying quest tasks")
	}
	byQuest := make(map[string][]quest.Task, len(quests))
	for _, tr := range taskRows {
		byQuest[tr.QuestID] = append(byQuest[tr.QuestID], tr.task())
	}
	for i := range quests {
		quests[i].Tasks = byQuest[quests[i].ID]
	}
	return quests, nil
}

func (repo questRepository) UpdateQuest(ctx context.Context, q quest.Quest, xpReward *int, isActive *bool) (quest.Quest, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return quest.Quest{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	var b condBuilder // SET builder
	if q.Title != "" {
		b.add("title = ?", q.Title)
	}
	if q.Description != "" {
		b.add("description = ?", q.Description)
	}
	if q.Pillar != "" {
		b.add("pillar = ?", q.Pillar)
	}
	if xpReward != nil {
		b.add("xp_reward = ?", *xpReward)
	}
	if isActive != nil {
		b.add("is_active = ?", *isActive)
	}
	b.add("updated_at = ?", q.UpdatedAt)

	b.args = append(b.args, q.ID)
	query := `UPDATE quest SET ` + b.set() + ` WHERE id = $` + strconv.Itoa(len(b.args)) + ` RETURNING *`

	var row questRow
	if err = tx.GetContext(ctx, &row, query, b.args...); err != nil {
		if err == sql.ErrNoRows {
			return quest.Quest{}, quest.ErrNotFound
		}
		return quest.Quest{}, errors.Wrap(err, "updating quest")
	}
	updated := row.quest()

	if q.Tasks != nil {
		if _, err = tx.ExecContext(ctx, `DELETE FROM quest_task WHERE quest_id = $1`, q.ID); err != nil {
			return quest.Quest{}, errors.Wrap(err, "clearing quest tasks")
		}
		if updated.Tasks, err = insertTasks(ctx, tx, q.ID, q.Tasks); err != nil {
			return quest.Quest{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return quest.Quest{}, errors.Wrap(err, "committing quest update")
	}
	return updated, nil
}

func (repo questRepository) DeleteQuestsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM quest WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting quests")
	}
	return nil
}

func (repo questRepository) GetTaskByID(ctx context.Context, id string) (quest.Task, error) {
	var row taskRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM quest_task WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return quest.Task{}, quest.ErrTaskNotFound
		}
		return quest.Task{}, errors.Wrap(err, "getting task")
	}
	return row.task(), nil
}

func (repo questRepository) CreateEnrollment(ctx context.Context, e quest.Enrollment) (quest.Enrollment, error) {
	e.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO quest_enrollment (id, user_id, quest_id, started_at) VALUES ($1, $2, $3, $4)`,
		e.ID, e.UserID, e.QuestID, e.StartedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return quest.Enrollment{}, quest.ErrAlreadyEnrolled
		}
		return quest.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return e, nil
}

func (repo questRepository) GetEnrollment(ctx context.Context, userID, questID string) (quest.Enrollment, error) {
	var row enrollmentRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM quest_enrollment WHERE user_id = $1 AND quest_id = $2`, userID, questID)
	if err != nil {
		if err == sql.ErrNoRows {
			return quest.Enrollment{}, quest.ErrNotEnrolled
		}
		return quest.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	return row.enrollment(), nil
}

func (repo questRepository) QueryEnrollments(ctx context.Context, userID string) ([]quest.Enrollment, error) {
	var rows []enrollmentRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM quest_enrollment WHERE user_id = $1 ORDER BY started_at DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]quest.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrollments = append(enrollments, r.enrollment())
	}
	return enrollments, nil
}

func (repo questRepository) FinishEnrollment(ctx context.Context, id string, at time.Time) (quest.Enrollment, error) {
	var row enrollmentRow
	err := repo.db.GetContext(ctx, &row,
		`UPDATE quest_enrollment SET finished_at = $1 WHERE id = $2 RETURNING *`, at.UTC(), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return quest.Enrollment{}, quest.ErrNotEnrolled
		}
		return quest.Enrollment{}, errors.Wrap(err, "finishing enrollment")
	}
	return row.enrollment(), nil
}

func (repo questRepository) CreateTaskCompletion(ctx context.Context, tc quest.TaskCompletion) (quest.TaskCompletion, error) {
	tc.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO quest_task_completion (id, user_id, quest_id, task_id, status, evidence_text, evidence_url, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tc.ID, tc.UserID, tc.QuestID, tc.TaskID, tc.Status, tc.EvidenceText, tc.EvidenceURL, tc.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return quest.TaskCompletion{}, quest.ErrTaskCompleted
		}
		return quest.TaskCompletion{}, errors.Wrap(err, "inserting task completion")
	}
	return tc, nil
}

func (repo questRepository) GetTaskCompletionByID(ctx context.Context, id string) (quest.TaskCompletion, error) {
	var row completionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM quest_task_completion WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return quest.TaskCompletion{}, quest.ErrCompletionNotFound
		}
		return quest.TaskCompletion{}, errors.Wrap(err, "getting task completion")
	}
	return row.completion(), nil
}

func (repo questRepository) QueryTaskCompletions(ctx context.Context, filter quest.CompletionFilter) ([]quest.TaskCompletion, error) {
	var b condBuilder
	if filter.UserID != "" {
		b.add("user_id = ?", filter.UserID)
	}
	if filter.QuestID != "" {
		b.add("quest_id = ?", filter.QuestID)
	}
	if filter.TaskID != "" {
		b.add("task_id = ?", filter.TaskID)
	}
	if filter.Status != "" {
		b.add("status = ?", filter.Status)
	}

	query := `SELECT * FROM quest_task_completion` + b.where() + ` ORDER BY completed_at DESC`
	var rows []completionRow
	if err := repo.db.SelectContext(ctx, &rows, query, b.args...); err != nil {
		return nil, errors.Wrap(err, "querying task completions")
	}
	completions := make([]quest.TaskCompletion, 0, len(rows))
	for _, r := range rows {
		completions = append(completions, r.completion())
	}
	return completions, nil
}

func (repo questRepository) ReviewTaskCompletion(ctx context.Context, id, status, verifiedBy string, at time.Time) (quest.TaskCompletion, error) {
	var row completionRow
	err := repo.db.GetContext(ctx, &row,
		`UPDATE quest_task_completion SET status = $1, verified_by = $2, verified_at = $3 WHERE id = $4 RETURNING *`,
		status, verifiedBy, at.UTC(), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return quest.TaskCompletion{}, quest.ErrCompletionNotFound
		}
		return quest.TaskCompletion{}, errors.Wrap(err, "reviewing task completion")
	}
	return row.completion(), nil
}
