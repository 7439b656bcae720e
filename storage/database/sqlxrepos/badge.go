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
	"github.com/optioeducation/optio/core/badge"
)

type badgeRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Pillar      string    `db:"pillar"`
	ImageKey    string    `db:"image_key"`
	XPBonus     int       `db:"xp_bonus"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r badgeRow) badge() badge.Badge {
	b := badge.Badge{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Pillar:      r.Pillar,
		ImageKey:    r.ImageKey,
		XPBonus:     r.XPBonus,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	b.SetActive(r.IsActive)
	return b
}

type badgeQuestRow struct {
	BadgeID string `db:"badge_id"`
	QuestID string `db:"quest_id"`
}

type userBadgeRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	BadgeID   string    `db:"badge_id"`
	AwardedAt time.Time `db:"awarded_at"`
}

type badgeRepository struct {
	db *sqlx.DB
}

var _ badge.Repository = (*badgeRepository)(nil) // interface compliance check

func NewBadgeRepository(db *sqlx.DB) *badgeRepository {
	return &badgeRepository{db: db}
}

func (repo badgeRepository) CreateBadge(ctx context.Context, b badge.Badge) (badge.Badge, error) {
	b.ID = uuid.New().String()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return badge.Badge{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO badge (id, name, description, pillar, image_key, xp_bonus, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.Name, b.Description, b.Pillar, b.ImageKey, b.XPBonus, b.Active(), b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return badge.Badge{}, errors.Wrap(err, "inserting badge")
	}

	if err = insertBadgeQuests(ctx, tx, b.ID, b.QuestIDs); err != nil {
		return badge.Badge{}, err
	}

	if err = tx.Commit(); err != nil {
		return badge.Badge{}, errors.Wrap(err, "committing badge")
	}
	return b, nil
}

func insertBadgeQuests(ctx context.Context, tx *sqlx.Tx, badgeID string, questIDs []string) error {
	for _, qid := range questIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO badge_quest (badge_id, quest_id) VALUES ($1, $2)`, badgeID, qid)
		if err != nil {
			return errors.Wrap(err, "inserting badge quest")
		}
	}
	return nil
}

func (repo badgeRepository) GetBadgeByID(ctx context.Context, id string) (badge.Badge, error) {
	var row badgeRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM badge WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return badge.Badge{}, badge.ErrNotFound
		}
		return badge.Badge{}, errors.Wrap(err, "getting badge")
	}

	b := row.badge()
	err := repo.db.SelectContext(ctx, &b.QuestIDs,
		`SELECT quest_id FROM badge_quest WHERE badge_id = $1`, id)
	if err != nil {
		return badge.Badge{}, errors.Wrap(err, "getting badge quests")
	}
	return b, nil
}

func (repo badgeRepository) QueryBadges(ctx context.Context, filter *badge.QueryFilter, ordering ...core.DBOrdering) ([]badge.Badge, error) {
	var b condBuilder
	if filter != nil {
		if filter.Search != "" {
			search := "%" + filter.Search + "%"
			b.add("(name ILIKE ? OR description ILIKE ?)", search, search)
		}
		if filter.Pillar != "" {
			b.add("pillar = ?", filter.Pillar)
		}
		if filter.IsActive != nil {
			b.add("is_active = ?", *filter.IsActive)
		}
	}

	query := `SELECT * FROM badge` + b.where() + orderClause(ordering, "created_at DESC")
	var rows []badgeRow
	if err := repo.db.SelectContext(ctx, &rows, query, b.args...); err != nil {
		return nil, errors.Wrap(err, "querying badges")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	badges := make([]badge.Badge, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		badges = append(badges, r.badge())
		ids = append(ids, r.ID)
	}

	// preload quest sets
	bqQuery, args, err := sqlx.In(`SELECT * FROM badge_quest WHERE badge_id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building badge quest query")
	}
	var bqRows []badgeQuestRow
	if err = repo.db.SelectContext(ctx, &bqRows, repo.db.Rebind(bqQuery), args...); err != nil {
		return nil, errors.Wrap(err, "querying badge quests")
	}
	byBadge := make(map[string][]string, len(badges))
	for _, bq := range bqRows {
		byBadge[bq.BadgeID] = append(byBadge[bq.BadgeID], bq.QuestID)
	}
	for i := range badges {
		badges[i].QuestIDs = byBadge[badges[i].ID]
	}
	return badges, nil
}

func (repo badgeRepository) UpdateBadge(ctx context.Context, b badge.Badge, xpBonus *int, isActive *bool) (badge.Badge, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return badge.Badge{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	var sb condBuilder // SET builder
	if b.Name != "" {
		sb.add("name = ?", b.Name)
	}
	if b.Description != "" {
		sb.add("description = ?", b.Description)
	}
	if b.Pillar != "" {
		sb.add("pillar = ?", b.Pillar)
	}
	if b.ImageKey != "" {
		sb.add("image_key = ?", b.ImageKey)
	}
	if xpBonus != nil {
		sb.add("xp_bonus = ?", *xpBonus)
	}
	if isActive != nil {
		sb.add("is_active = ?", *isActive)
	}
	sb.add("updated_at = ?", b.UpdatedAt)

	sb.args = append(sb.args, b.ID)
	query := `UPDATE badge SET ` + sb.set() + ` WHERE id = $` + strconv.Itoa(len(sb.args)) + ` RETURNING *`

	var row badgeRow
	if err = tx.GetContext(ctx, &row, query, sb.args...); err != nil {
		if err == sql.ErrNoRows {
			return badge.Badge{}, badge.ErrNotFound
		}
		return badge.Badge{}, errors.Wrap(err, "updating badge")
	}
	updated := row.badge()
	updated.QuestIDs = b.QuestIDs

	if b.QuestIDs != nil {
		if _, err = tx.ExecContext(ctx, `DELETE FROM badge_quest WHERE badge_id = $1`, b.ID); err != nil {
			return badge.Badge{}, errors.Wrap(err, "clearing badge quests")
		}
		if err = insertBadgeQuests(ctx, tx, b.ID, b.QuestIDs); err != nil {
			return badge.Badge{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return badge.Badge{}, errors.Wrap(err, "committing badge update")
	}
	return updated, nil
}

func (repo badgeRepository) DeleteBadgesByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM badge WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting badges")
	}
	return nil
}

func (repo badgeRepository) CreateUserBadge(ctx context.Context, ub badge.UserBadge) (badge.UserBadge, error) {
	ub.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO user_badge (id, user_id, badge_id, awarded_at) VALUES ($1, $2, $3, $4)`,
		ub.ID, ub.UserID, ub.BadgeID, ub.AwardedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return badge.UserBadge{}, badge.ErrAlreadyAwarded
		}
		return badge.UserBadge{}, errors.Wrap(err, "inserting user badge")
	}
	return ub, nil
}

func (repo badgeRepository) QueryUserBadges(ctx context.Context, userID string) ([]badge.UserBadge, error) {
	var rows []userBadgeRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM user_badge WHERE user_id = $1 ORDER BY awarded_at DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying user badges")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.BadgeID)
	}
	bQuery, args, err := sqlx.In(`SELECT * FROM badge WHERE id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building badge query")
	}
	var bRows []badgeRow
	if err = repo.db.SelectContext(ctx, &bRows, repo.db.Rebind(bQuery), args...); err != nil {
		return nil, errors.Wrap(err, "querying badges")
	}
	byID := make(map[string]badge.Badge, len(bRows))
	for _, br := range bRows {
		byID[br.ID] = br.badge()
	}

	userBadges := make([]badge.UserBadge, 0, len(rows))
	for _, r := range rows {
		ub := badge.UserBadge{
			ID:        r.ID,
			UserID:    r.UserID,
			BadgeID:   r.BadgeID,
			AwardedAt: r.AwardedAt.UTC(),
		}
		if b, ok := byID[r.BadgeID]; ok {
			ub.Badge = &b
		}
		userBadges = append(userBadges, ub)
	}
	return userBadges, nil
}
