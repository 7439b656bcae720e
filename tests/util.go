package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/optioeducation/optio/core/badge"
	"github.com/optioeducation/optio/core/quest"
	"github.com/optioeducation/optio/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateQuest(
	t *testing.T,
	repo quest.Repository,
	title, pillar string,
	xpReward int,
	isActive bool,
	tasks ...quest.Task,
) quest.Quest {
	t.Helper()

	now := time.Now().UTC()
	q := quest.Quest{
		Title:       title,
		Description: title + " description",
		Pillar:      pillar,
		Source:      quest.SourceCustom,
		XPReward:    xpReward,
		Tasks:       tasks,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	q.SetActive(isActive)
	for i := range q.Tasks {
		if q.Tasks[i].Ordinal == 0 {
			q.Tasks[i].Ordinal = i + 1
		}
		if q.Tasks[i].Evidence == "" {
			q.Tasks[i].Evidence = quest.EvidenceNone
		}
	}
	q, err := repo.CreateQuest(context.Background(), q)
	if err != nil {
		t.Fatalf("CreateQuest() failed: %v", err)
	}
	return q
}

func CreateBadge(
	t *testing.T,
	repo badge.Repository,
	name string,
	questIDs []string,
	xpBonus int,
	isActive bool,
) badge.Badge {
	t.Helper()

	now := time.Now().UTC()
	b := badge.Badge{
		Name:      name,
		QuestIDs:  questIDs,
		XPBonus:   xpBonus,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.SetActive(isActive)
	b, err := repo.CreateBadge(context.Background(), b)
	if err != nil {
		t.Fatalf("CreateBadge() failed: %v", err)
	}
	return b
}
