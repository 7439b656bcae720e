package dummydb

import (
	"sync"

	"github.com/optioeducation/optio/core/badge"
	"github.com/optioeducation/optio/core/credit"
	"github.com/optioeducation/optio/core/learning"
	"github.com/optioeducation/optio/core/observer"
	"github.com/optioeducation/optio/core/quest"
	"github.com/optioeducation/optio/core/user"
)

// DB is an in-memory stand-in for the real database, used in tests.
type (
	DB struct {
		user     *userTable
		quest    *questTable
		badge    *badgeTable
		credit   *creditTable
		learning *learningTable
		observer *observerTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	questTable struct {
		sync.RWMutex
		quests      map[string]*quest.Quest
		enrollments map[string]*quest.Enrollment
		completions map[string]*quest.TaskCompletion
	}

	badgeTable struct {
		sync.RWMutex
		badges     map[string]*badge.Badge
		userBadges map[string]*badge.UserBadge
	}

	creditTable struct {
		sync.RWMutex
		entries []credit.LedgerEntry
	}

	learningTable struct {
		sync.RWMutex
		events []learning.Event
	}

	observerTable struct {
		sync.RWMutex
		links map[string]*observer.Link
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		quest: &questTable{
			quests:      make(map[string]*quest.Quest),
			enrollments: make(map[string]*quest.Enrollment),
			completions: make(map[string]*quest.TaskCompletion),
		},
		badge: &badgeTable{
			badges:     make(map[string]*badge.Badge),
			userBadges: make(map[string]*badge.UserBadge),
		},
		credit:   &creditTable{},
		learning: &learningTable{},
		observer: &observerTable{links: make(map[string]*observer.Link)},
	}
	return db, nil
}
