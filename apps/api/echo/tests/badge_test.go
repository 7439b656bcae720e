package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/optioeducation/optio/core/badge"
	"github.com/optioeducation/optio/core/observer"
	"github.com/optioeducation/optio/core/quest"
	"github.com/optioeducation/optio/core/user"
	testutil "github.com/optioeducation/optio/tests"
)

func Test_badgeApi_queryAndMine(t *testing.T) {
	a := setup(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, a.userRepo, "Hero", "hero", "hero@test.test", "", user.StudentRoles, true)
	admin := testutil.CreateUser(t, a.userRepo, "Admin", "admin1", "admin@test.test", "", user.AdminRoles, true)

	q := testutil.CreateQuest(t, a.questRepo, "Weather Station", "stem", 0, true,
		quest.Task{Title: "T1", XP: 10})
	active := testutil.CreateBadge(t, a.badgeRepo, "Finisher", []string{q.ID}, 25, true)
	retired := testutil.CreateBadge(t, a.badgeRepo, "Retired", []string{q.ID}, 0, false)

	// earn the badge
	if _, err := a.questSvc.Enroll(ctx, student, q.ID); err != nil {
		t.Fatalf("Enroll(): %v", err)
	}
	if _, err := a.questSvc.CompleteTask(ctx, student, quest.TaskSubmission{TaskID: q.Tasks[0].ID}); err != nil {
		t.Fatalf("CompleteTask(): %v", err)
	}

	studentToken := a.getToken(t, student)

	tests := []httpTest{
		{name: "auth required", path: "/v1/badges", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "students see only active badges", path: "/v1/badges", token: studentToken, wantData: marshallList(t, active)},
		{
			name: "inactive badge is hidden from students", path: "/v1/badges/" + retired.ID, token: studentToken,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, errNotFound),
		},
		{name: "admins see inactive badges", path: "/v1/badges/" + retired.ID, token: a.getToken(t, admin), wantData: marshallObj(t, retired)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, a.do(t, tt))
		})
	}

	tt := httpTest{name: "mine", path: "/v1/badges/mine", token: studentToken}
	rec := a.do(t, tt)
	checkCodeAndData(t, tt, rec)

	var awards []badge.UserBadge
	if err := json.Unmarshal(rec.Body.Bytes(), &awards); err != nil {
		t.Fatalf("unmarshalling awards: %v", err)
	}
	if len(awards) != 1 || awards[0].BadgeID != active.ID {
		t.Errorf("awards = %+v, want one %q award", awards, active.ID)
	}
}

func Test_badgeApi_userBadgesAccess(t *testing.T) {
	a := setup(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, a.userRepo, "Hero", "hero", "hero@test.test", "", user.StudentRoles, true)
	observerUsr := testutil.CreateUser(t, a.userRepo, "Mom", "supermom", "mom@test.test", "", user.ObserverRoles, true)
	stranger := testutil.CreateUser(t, a.userRepo, "Stranger", "stranger", "stranger@test.test", "", user.StudentRoles, true)
	admin := testutil.CreateUser(t, a.userRepo, "Admin", "admin1", "admin@test.test", "", user.AdminRoles, true)

	link, err := a.observerSvc.Invite(ctx, student, observer.InviteObserver{Email: observerUsr.Email})
	if err != nil {
		t.Fatalf("Invite(): %v", err)
	}
	if _, err = a.observerSvc.Accept(ctx, observerUsr, link.Token); err != nil {
		t.Fatalf("Accept(): %v", err)
	}

	path := "/v1/badges/users/" + student.ID

	tests := []httpTest{
		{name: "self", path: path, token: a.getToken(t, student), wantData: marshallList(t)},
		{name: "admin", path: path, token: a.getToken(t, admin), wantData: marshallList(t)},
		{name: "accepted observer", path: path, token: a.getToken(t, observerUsr), wantData: marshallList(t)},
		{
			name: "stranger", path: path, token: a.getToken(t, stranger),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, a.do(t, tt))
		})
	}
}
