package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/optioeducation/optio/core"
	"github.com/optioeducation/optio/core/badge"
)

type badgeRepository struct {
	db *badgeTable
}

var _ badge.Repository = (*badgeRepository)(nil) // interface compliance check

func NewBadgeRepository(db *DB) badge.Repository {
	return &badgeRepository{db: db.badge}
}

func (repo *badgeRepository) query() []badge.Badge {
	badges := make([]badge.Badge, 0, len(repo.db.badges))
	for _, b := range repo.db.badges {
		badges = append(badges, *b)
	}
	sort.Slice(badges, func(i, j int) bool { return badges[i].CreatedAt.After(badges[j].CreatedAt) })
	return badges
}

func (repo *badgeRepository) CreateBadge(ctx context.Context, b badge.Badge) (badge.Badge, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	b.ID = uuid.New().String()
	repo.db.badges[b.ID] = &b
	return b, nil
}

func (repo *badgeRepository) GetBadgeByID(ctx context.Context, id string) (badge.Badge, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if b, ok := repo.db.badges[id]; ok {
		return *b, nil
	}
	return badge.Badge{}, badge.ErrNotFound
}

func (repo *badgeRepository) QueryBadges(ctx context.Context, filter *badge.QueryFilter, ordering ...core.DBOrdering) ([]badge.Badge, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	badges := repo.query()
	if filter == nil {
		return badges, nil
	}

	if filter.Search != "" {
		var filtered []badge.Badge
		search := strings.ToLower(filter.Search)
		for _, b := range badges {
			if strings.Contains(strings.ToLower(b.Name), search) ||
				strings.Contains(strings.ToLower(b.Description), search) {
				filtered = append(filtered, b)
			}
		}
		badges = filtered
	}
	if badges != nil && filter.Pillar != "" {
		var filtered []badge.Badge
		for _, b := range badges {
			if b.Pillar == filter.Pillar {
				filtered = append(filtered, b)
			}
		}
		badges = filtered
	}
	if badges != nil && filter.IsActive != nil {
		var filtered []badge.Badge
		for _, b := range badges {
			if b.Active() == *filter.IsActive {
				filtered = append(filtered, b)
			}
		}
		badges = filtered
	}
	return badges, nil
}

func (repo *badgeRepository) UpdateBadge(ctx context.Context, b badge.Badge, xpBonus *int, isActive *bool) (badge.Badge, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// only save set fields
	orig, ok := repo.db.badges[b.ID]
	if !ok {
		return badge.Badge{}, badge.ErrNotFound
	}
	if b.Name != "" {
		orig.Name = b.Name
	}
	if b.Description != "" {
		orig.Description = b.Description
	}
	if b.Pillar != "" {
		orig.Pillar = b.Pillar
	}
	if b.ImageKey != "" {
		orig.ImageKey = b.ImageKey
	}
	if b.QuestIDs != nil {
		orig.QuestIDs = b.QuestIDs
	}
	if xpBonus != nil {
		orig.XPBonus = *xpBonus
	}
	if isActive != nil {
		orig.SetActive(*isActive)
	}
	orig.UpdatedAt = b.UpdatedAt

	repo.db.badges[b.ID] = orig
	return *orig, nil
}

func (repo *badgeRepository) DeleteBadgesByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.badges, id)
	}
	return nil
}

func (repo *badgeRepository) CreateUserBadge(ctx context.Context, ub badge.UserBadge) (badge.UserBadge, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.userBadges {
		if existing.UserID == ub.UserID && existing.BadgeID == ub.BadgeID {
			return badge.UserBadge{}, badge.ErrAlreadyAwarded
		}
	}
	ub.ID = uuid.New().String()
	repo.db.userBadges[ub.ID] = &ub
	return ub, nil
}

func (repo *badgeRepository) QueryUserBadges(ctx context.Context, userID string) ([]badge.UserBadge, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var userBadges []badge.UserBadge
	for _, ub := range repo.db.userBadges {
		if ub.UserID != userID {
			continue
		}
		held := *ub
		if b, ok := repo.db.badges[ub.BadgeID]; ok {
			bCopy := *b
			held.Badge = &bCopy
		}
		userBadges = append(userBadges, held)
	}
	sort.Slice(userBadges, func(i, j int) bool { return userBadges[i].AwardedAt.After(userBadges[j].AwardedAt) })
	return userBadges, nil
}
