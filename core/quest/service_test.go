package quest_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optioeducation/optio/core"
	"github.com/optioeducation/optio/core/badge"
	"github.com/optioeducation/optio/core/credit"
	"github.com/optioeducation/optio/core/learning"
	"github.com/optioeducation/optio/core/quest"
	"github.com/optioeducation/optio/core/user"
	emailsvc "github.com/optioeducation/optio/services/email"
	dummydb "github.com/optioeducation/optio/storage/database/dummy"
	testutil "github.com/optioeducation/optio/tests"
)

type testDeps struct {
	questRepo quest.Repository
	badgeRepo badge.Repository
	creditSvc credit.Service
	svc       quest.Service
}

func newTestDeps() testDeps {
	db, _ := dummydb.Open()
	creditSvc := credit.NewService(dummydb.NewCreditRepository(db))
	learningSvc := learning.NewService(dummydb.NewLearningRepository(db))
	mailSvc := emailsvc.NewConsoleServiceMock(&core.Config{TestMode: true})
	badgeRepo := dummydb.NewBadgeRepository(db)
	badgeSvc := badge.NewService(badgeRepo, creditSvc, learningSvc, mailSvc)
	questRepo := dummydb.NewQuestRepository(db)
	return testDeps{
		questRepo: questRepo,
		badgeRepo: badgeRepo,
		creditSvc: creditSvc,
		svc:       quest.NewService(questRepo, creditSvc, learningSvc, badgeSvc),
	}
}

func student() user.User {
	usr := user.User{ID: "student-1", Name: "Hero", Username: "hero", Email: "hero@test.test", Roles: user.StudentRoles}
	usr.SetActive(true)
	return usr
}

func Test_service_Enroll(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	usr := student()

	inactive := testutil.CreateQuest(t, deps.questRepo, "Hidden Quest", "stem", 0, false,
		quest.Task{Title: "T1", XP: 10})
	_, err := deps.svc.Enroll(ctx, usr, inactive.ID)
	assert.Equal(t, quest.ErrQuestInactive, errors.Cause(err))

	_, err = deps.svc.Enroll(ctx, usr, "no-such-quest")
	assert.Equal(t, quest.ErrNotFound, errors.Cause(err))

	q := testutil.CreateQuest(t, deps.questRepo, "Weather Station", "stem", 50, true,
		quest.Task{Title: "T1", XP: 10})
	enr, err := deps.svc.Enroll(ctx, usr, q.ID)
	require.NoError(t, err)
	assert.Equal(t, usr.ID, enr.UserID)
	assert.False(t, enr.StartedAt.IsZero())
	assert.False(t, enr.Finished())

	_, err = deps.svc.Enroll(ctx, usr, q.ID)
	assert.Equal(t, quest.ErrAlreadyEnrolled, errors.Cause(err))
}

func Test_service_CompleteTask(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	usr := student()

	q := testutil.CreateQuest(t, deps.questRepo, "Weather Station", "stem", 50, true,
		quest.Task{Title: "Pick sensors", XP: 10},
		quest.Task{Title: "Log data", XP: 20, Evidence: quest.EvidenceText},
	)

	// must be enrolled first
	_, err := deps.svc.CompleteTask(ctx, usr, quest.TaskSubmission{TaskID: q.Tasks[0].ID})
	assert.Equal(t, quest.ErrNotEnrolled, errors.Cause(err))

	_, err = deps.svc.Enroll(ctx, usr, q.ID)
	require.NoError(t, err)

	// evidence-free tasks verify instantly and credit XP
	tc, err := deps.svc.CompleteTask(ctx, usr, quest.TaskSubmission{TaskID: q.Tasks[0].ID})
	require.NoError(t, err)
	assert.Equal(t, quest.StatusVerified, tc.Status)

	balance, err := deps.creditSvc.BalanceOf(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, balance.XP)

	// duplicate completion is rejected
	_, err = deps.svc.CompleteTask(ctx, usr, quest.TaskSubmission{TaskID: q.Tasks[0].ID})
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, quest.ErrTaskCompleted, errors.Cause(verr.Err))

	// evidence-requiring task without payload is rejected
	_, err = deps.svc.CompleteTask(ctx, usr, quest.TaskSubmission{TaskID: q.Tasks[1].ID})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, quest.ErrEvidenceRequired, errors.Cause(verr.Err))

	// with evidence it lands in the verification queue; XP is still credited
	tc, err = deps.svc.CompleteTask(ctx, usr, quest.TaskSubmission{
		TaskID:       q.Tasks[1].ID,
		EvidenceText: "a week of readings",
	})
	require.NoError(t, err)
	assert.Equal(t, quest.StatusPending, tc.Status)

	balance, err = deps.creditSvc.BalanceOf(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 10+20+50, balance.XP) // both tasks + quest bonus

	pending, err := deps.svc.PendingVerifications(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, tc.ID, pending[0].ID)
}

func Test_service_finishQuestAwardsBadge(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	usr := student()

	q1 := testutil.CreateQuest(t, deps.questRepo, "Quest One", "stem", 30, true,
		quest.Task{Title: "T1", XP: 10})
	q2 := testutil.CreateQuest(t, deps.questRepo, "Quest Two", "stem", 0, true,
		quest.Task{Title: "T1", XP: 5})
	b := testutil.CreateBadge(t, deps.badgeRepo, "Curious Mind", []string{q1.ID, q2.ID}, 25, true)

	_, err := deps.svc.Enroll(ctx, usr, q1.ID)
	require.NoError(t, err)
	_, err = deps.svc.CompleteTask(ctx, usr, quest.TaskSubmission{TaskID: q1.Tasks[0].ID})
	require.NoError(t, err)

	// only one of the badge's quests is done
	held, err := deps.badgeRepo.QueryUserBadges(ctx, usr.ID)
	require.NoError(t, err)
	assert.Empty(t, held)

	_, err = deps.svc.Enroll(ctx, usr, q2.ID)
	require.NoError(t, err)
	_, err = deps.svc.CompleteTask(ctx, usr, quest.TaskSubmission{TaskID: q2.Tasks[0].ID})
	require.NoError(t, err)

	finished, err := deps.svc.FinishedQuestIDs(ctx, usr.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{q1.ID, q2.ID}, finished)

	held, err = deps.badgeRepo.QueryUserBadges(ctx, usr.ID)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, b.ID, held[0].BadgeID)

	balance, err := deps.creditSvc.BalanceOf(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 10+30+5+25, balance.XP) // tasks + q1 bonus + badge bonus
}

func Test_service_Review(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	usr := student()
	teacher := user.User{ID: "teacher-1", Name: "Teach", Roles: user.TeacherRoles}

	q := testutil.CreateQuest(t, deps.questRepo, "Essay Quest", "language-communication", 0, true,
		quest.Task{Title: "Write essay", XP: 40, Evidence: quest.EvidenceText})

	_, err := deps.svc.Enroll(ctx, usr, q.ID)
	require.NoError(t, err)
	tc, err := deps.svc.CompleteTask(ctx, usr, quest.TaskSubmission{
		TaskID:       q.Tasks[0].ID,
		EvidenceText: "my essay",
	})
	require.NoError(t, err)
	require.Equal(t, quest.StatusPending, tc.Status)

	// approve
	reviewed, err := deps.svc.Review(ctx, tc.ID, teacher, true)
	require.NoError(t, err)
	assert.Equal(t, quest.StatusVerified, reviewed.Status)
	assert.Equal(t, teacher.ID, reviewed.VerifiedBy)
	assert.False(t, reviewed.VerifiedAt.IsZero())

	// re-review is rejected
	_, err = deps.svc.Review(ctx, tc.ID, teacher, false)
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, quest.ErrAlreadyReviewed, errors.Cause(verr.Err))
}

func Test_service_ReviewRejectRevokesXP(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	usr := student()
	teacher := user.User{ID: "teacher-1", Name: "Teach", Roles: user.TeacherRoles}

	q := testutil.CreateQuest(t, deps.questRepo, "Essay Quest", "language-communication", 0, true,
		quest.Task{Title: "Write essay", XP: 40, Evidence: quest.EvidenceText},
		quest.Task{Title: "Present it", XP: 10},
	)

	_, err := deps.svc.Enroll(ctx, usr, q.ID)
	require.NoError(t, err)
	tc, err := deps.svc.CompleteTask(ctx, usr, quest.TaskSubmission{
		TaskID:       q.Tasks[0].ID,
		EvidenceText: "my essay",
	})
	require.NoError(t, err)

	balance, err := deps.creditSvc.BalanceOf(ctx, usr.ID)
	require.NoError(t, err)
	require.Equal(t, 40, balance.XP)

	reviewed, err := deps.svc.Review(ctx, tc.ID, teacher, false)
	require.NoError(t, err)
	assert.Equal(t, quest.StatusRejected, reviewed.Status)

	// the award is compensated, not deleted
	balance, err = deps.creditSvc.BalanceOf(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.XP)

	history, err := deps.creditSvc.HistoryOf(ctx, usr.ID, core.DBPage{})
	require.NoError(t, err)
	assert.Len(t, history, 2)

	// a rejected completion may be resubmitted
	tc2, err := deps.svc.CompleteTask(ctx, usr, quest.TaskSubmission{
		TaskID:       q.Tasks[0].ID,
		EvidenceText: "my better essay",
	})
	require.NoError(t, err)
	assert.Equal(t, quest.StatusPending, tc2.Status)
	assert.NotEqual(t, tc.ID, tc2.ID)
}
