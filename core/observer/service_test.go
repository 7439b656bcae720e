package observer_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optioeducation/optio/core"
	"github.com/optioeducation/optio/core/badge"
	"github.com/optioeducation/optio/core/credit"
	"github.com/optioeducation/optio/core/learning"
	"github.com/optioeducation/optio/core/observer"
	"github.com/optioeducation/optio/core/quest"
	"github.com/optioeducation/optio/core/user"
	emailsvc "github.com/optioeducation/optio/services/email"
	dummydb "github.com/optioeducation/optio/storage/database/dummy"
	testutil "github.com/optioeducation/optio/tests"
)

type testDeps struct {
	userRepo  user.Repository
	questRepo quest.Repository
	questSvc  quest.Service
	creditSvc credit.Service
	svc       observer.Service
}

type nopLogger struct{}

func (nopLogger) Enable(enabled bool)                   {}
func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

func newTestDeps(t *testing.T) testDeps {
	t.Helper()
	emailsvc.ClearSentMessages()

	conf := &core.Config{TestMode: true, AppName: "Optio", WorkDir: core.Getwd()}
	core.ParseEmailTemplates(conf, nopLogger{})
	db, _ := dummydb.Open()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	creditSvc := credit.NewService(dummydb.NewCreditRepository(db))
	learningSvc := learning.NewService(dummydb.NewLearningRepository(db))
	badgeSvc := badge.NewService(dummydb.NewBadgeRepository(db), creditSvc, learningSvc, mailSvc)
	questRepo := dummydb.NewQuestRepository(db)
	questSvc := quest.NewService(questRepo, creditSvc, learningSvc, badgeSvc)
	userRepo := dummydb.NewUserRepository(db)
	userSvc := user.NewService(userRepo, mailSvc, conf)
	return testDeps{
		userRepo:  userRepo,
		questRepo: questRepo,
		questSvc:  questSvc,
		creditSvc: creditSvc,
		svc: observer.NewService(
			dummydb.NewObserverRepository(db),
			userSvc, questSvc, badgeSvc, creditSvc, learningSvc, mailSvc, conf,
		),
	}
}

func Test_service_InviteAcceptRevoke(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()

	studentUsr := testutil.CreateUser(t, deps.userRepo, "Hero", "hero", "hero@test.test", "", user.StudentRoles, true)
	observerUsr := testutil.CreateUser(t, deps.userRepo, "Mom", "supermom", "mom@test.test", "", user.ObserverRoles, true)

	// self-invite is rejected
	_, err := deps.svc.Invite(ctx, studentUsr, observer.InviteObserver{Email: studentUsr.Email})
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, observer.ErrSelfObserve, errors.Cause(verr.Err))

	link, err := deps.svc.Invite(ctx, studentUsr, observer.InviteObserver{Email: observerUsr.Email})
	require.NoError(t, err)
	assert.Equal(t, observer.StatusPending, link.Status)
	assert.NotEmpty(t, link.Token)

	// the invite email carries the token
	require.Len(t, emailsvc.SentMessages, 1)
	assert.Equal(t, observerUsr.Email, emailsvc.SentMessages[0].To[0].Address)

	// a live link blocks a second invite to the same email
	_, err = deps.svc.Invite(ctx, studentUsr, observer.InviteObserver{Email: observerUsr.Email})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, observer.ErrLinkExists, errors.Cause(verr.Err))

	// bad token
	_, err = deps.svc.Accept(ctx, observerUsr, "nope")
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, observer.ErrInvalidInvite, errors.Cause(verr.Err))

	accepted, err := deps.svc.Accept(ctx, observerUsr, link.Token)
	require.NoError(t, err)
	assert.Equal(t, observer.StatusAccepted, accepted.Status)
	assert.Equal(t, observerUsr.ID, accepted.ObserverID)
	assert.False(t, accepted.RespondedAt.IsZero())

	// an accepted invite cannot be accepted twice
	_, err = deps.svc.Accept(ctx, observerUsr, link.Token)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, observer.ErrInvalidInvite, errors.Cause(verr.Err))

	ok, err := deps.svc.CanObserve(ctx, observerUsr.ID, studentUsr.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	students, err := deps.svc.StudentsOf(ctx, observerUsr.ID)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, studentUsr.ID, students[0].StudentID)

	// a stranger cannot revoke
	stranger := testutil.CreateUser(t, deps.userRepo, "Stranger", "stranger", "stranger@test.test", "", user.StudentRoles, true)
	_, err = deps.svc.Revoke(ctx, stranger, accepted.ID)
	assert.Equal(t, observer.ErrNotFound, errors.Cause(err))

	// the student can
	revoked, err := deps.svc.Revoke(ctx, studentUsr, accepted.ID)
	require.NoError(t, err)
	assert.Equal(t, observer.StatusRevoked, revoked.Status)

	ok, err = deps.svc.CanObserve(ctx, observerUsr.ID, studentUsr.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_service_ProgressOf(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()

	studentUsr := testutil.CreateUser(t, deps.userRepo, "Hero", "hero", "hero@test.test", "", user.StudentRoles, true)

	done := testutil.CreateQuest(t, deps.questRepo, "Done Quest", "stem", 30, true,
		quest.Task{Title: "T1", XP: 10})
	open := testutil.CreateQuest(t, deps.questRepo, "Open Quest", "arts-creativity", 0, true,
		quest.Task{Title: "T1", XP: 5})

	_, err := deps.questSvc.Enroll(ctx, studentUsr, done.ID)
	require.NoError(t, err)
	_, err = deps.questSvc.Enroll(ctx, studentUsr, open.ID)
	require.NoError(t, err)
	_, err = deps.questSvc.CompleteTask(ctx, studentUsr, quest.TaskSubmission{TaskID: done.Tasks[0].ID})
	require.NoError(t, err)

	progress, err := deps.svc.ProgressOf(ctx, studentUsr.ID, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)

	assert.Equal(t, studentUsr.ID, progress.StudentID)
	assert.Equal(t, "Hero", progress.StudentName)
	assert.Equal(t, 40, progress.Balance.XP) // task + quest bonus

	require.Len(t, progress.FinishedQuests, 1)
	assert.Equal(t, done.ID, progress.FinishedQuests[0].ID)
	require.Len(t, progress.InProgress, 1)
	assert.Equal(t, open.ID, progress.InProgress[0].QuestID)

	// enrolled x2, task completed, quest completed
	assert.Len(t, progress.RecentEvents, 4)

	// unknown student
	_, err = deps.svc.ProgressOf(ctx, "nobody", time.Now())
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))
}
