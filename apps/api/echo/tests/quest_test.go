package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/optioeducation/optio/core/quest"
	"github.com/optioeducation/optio/core/user"
	testutil "github.com/optioeducation/optio/tests"
)

func Test_questApi_catalog(t *testing.T) {
	a := setup(t)

	student := testutil.CreateUser(t, a.userRepo, "Hero", "hero", "hero@test.test", "", user.StudentRoles, true)
	admin := testutil.CreateUser(t, a.userRepo, "Admin", "admin1", "admin@test.test", "", user.AdminRoles, true)

	active := testutil.CreateQuest(t, a.questRepo, "Weather Station", "stem", 50, true,
		quest.Task{Title: "T1", XP: 10})
	hidden := testutil.CreateQuest(t, a.questRepo, "Draft Quest", "stem", 0, false,
		quest.Task{Title: "T1", XP: 10})

	studentToken := a.getToken(t, student)
	adminToken := a.getToken(t, admin)

	tests := []httpTest{
		{name: "auth required", path: "/v1/quests", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "students see only active quests", path: "/v1/quests", token: studentToken, wantData: marshallList(t, active)},
		{
			name: "inactive quest is hidden from students", path: "/v1/quests/" + hidden.ID, token: studentToken,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, errNotFound),
		},
		{name: "admins see inactive quests", path: "/v1/quests/" + hidden.ID, token: adminToken, wantData: marshallObj(t, hidden)},
		{name: "filter by pillar", path: "/v1/quests?pillar=arts-creativity", token: studentToken, wantData: marshallList(t)},
		{
			name: "create requires admin", method: http.MethodPost, path: "/v1/quests", token: studentToken,
			body:     []byte(`{}`),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, a.do(t, tt))
		})
	}
}

func Test_questApi_create(t *testing.T) {
	a := setup(t)

	admin := testutil.CreateUser(t, a.userRepo, "Admin", "admin1", "admin@test.test", "", user.AdminRoles, true)
	adminToken := a.getToken(t, admin)

	body := []byte(`{
		"title": "Weather Station",
		"description": "Build one.",
		"pillar": "stem",
		"xp_reward": 50,
		"tasks": [
			{"title": "Pick sensors", "xp": 20},
			{"title": "Log data", "xp": 30, "evidence": "text"}
		]
	}`)

	tt := httpTest{name: "create", method: http.MethodPost, path: "/v1/quests", token: adminToken, body: body, wantCode: http.StatusCreated}
	rec := a.do(t, tt)
	checkCodeAndData(t, tt, rec)

	var q quest.Quest
	if err := json.Unmarshal(rec.Body.Bytes(), &q); err != nil {
		t.Fatalf("unmarshalling quest: %v", err)
	}
	if len(q.Tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(q.Tasks))
	}
	if q.Tasks[0].Ordinal != 1 || q.Tasks[1].Ordinal != 2 {
		t.Errorf("task ordinals = %d,%d; want 1,2", q.Tasks[0].Ordinal, q.Tasks[1].Ordinal)
	}
	if q.Tasks[0].Evidence != quest.EvidenceNone {
		t.Errorf("evidence = %q, want %q", q.Tasks[0].Evidence, quest.EvidenceNone)
	}
	if !q.Active() {
		t.Error("new quest should be active by default")
	}

	// invalid pillar is rejected
	tt = httpTest{
		name: "bad pillar", method: http.MethodPost, path: "/v1/quests", token: adminToken,
		body: []byte(`{"title": "X", "description": "Y", "pillar": "alchemy", "tasks": [{"title": "T"}]}`),

		wantCode: http.StatusBadRequest,
	}
	checkCodeAndData(t, tt, a.do(t, tt))
}

func Test_questApi_enrollAndComplete(t *testing.T) {
	a := setup(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, a.userRepo, "Hero", "hero", "hero@test.test", "", user.StudentRoles, true)
	teacher := testutil.CreateUser(t, a.userRepo, "Teach", "teach1", "teach@test.test", "", user.TeacherRoles, true)

	q := testutil.CreateQuest(t, a.questRepo, "Weather Station", "stem", 50, true,
		quest.Task{Title: "Pick sensors", XP: 20},
		quest.Task{Title: "Log data", XP: 30, Evidence: quest.EvidenceText},
	)

	studentToken := a.getToken(t, student)
	teacherToken := a.getToken(t, teacher)

	// enroll
	tt := httpTest{name: "enroll", method: http.MethodPost, path: "/v1/quests/" + q.ID + "/enroll", token: studentToken, wantCode: http.StatusCreated}
	checkCodeAndData(t, tt, a.do(t, tt))

	// re-enroll is rejected
	tt = httpTest{
		name: "re-enroll", method: http.MethodPost, path: "/v1/quests/" + q.ID + "/enroll", token: studentToken,
		wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: quest.ErrAlreadyEnrolled.Error()}),
	}
	checkCodeAndData(t, tt, a.do(t, tt))

	// complete the evidence-free task
	tt = httpTest{
		name: "complete task", method: http.MethodPost, path: "/v1/quests/completions", token: studentToken,
		body:     marshallObj(t, quest.TaskSubmission{TaskID: q.Tasks[0].ID}),
		wantCode: http.StatusCreated,
	}
	rec := a.do(t, tt)
	checkCodeAndData(t, tt, rec)

	var tc quest.TaskCompletion
	if err := json.Unmarshal(rec.Body.Bytes(), &tc); err != nil {
		t.Fatalf("unmarshalling completion: %v", err)
	}
	if tc.Status != quest.StatusVerified {
		t.Errorf("status = %q, want %q", tc.Status, quest.StatusVerified)
	}

	// submit the evidence task
	tt = httpTest{
		name: "submit evidence", method: http.MethodPost, path: "/v1/quests/completions", token: studentToken,
		body:     marshallObj(t, quest.TaskSubmission{TaskID: q.Tasks[1].ID, EvidenceText: "readings"}),
		wantCode: http.StatusCreated,
	}
	rec = a.do(t, tt)
	checkCodeAndData(t, tt, rec)
	if err := json.Unmarshal(rec.Body.Bytes(), &tc); err != nil {
		t.Fatalf("unmarshalling completion: %v", err)
	}
	if tc.Status != quest.StatusPending {
		t.Errorf("status = %q, want %q", tc.Status, quest.StatusPending)
	}

	// students cannot review
	tt = httpTest{
		name: "review requires verifier", path: "/v1/quests/verifications", token: studentToken,
		wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden),
	}
	checkCodeAndData(t, tt, a.do(t, tt))

	// teacher sees the queue and approves
	tt = httpTest{name: "verification queue", path: "/v1/quests/verifications", token: teacherToken}
	rec = a.do(t, tt)
	checkCodeAndData(t, tt, rec)

	var queue []quest.TaskCompletion
	if err := json.Unmarshal(rec.Body.Bytes(), &queue); err != nil {
		t.Fatalf("unmarshalling queue: %v", err)
	}
	if len(queue) != 1 {
		t.Fatalf("queue length = %d, want 1", len(queue))
	}

	tt = httpTest{
		name: "approve", method: http.MethodPost, path: "/v1/quests/verifications/" + queue[0].ID, token: teacherToken,
		body: []byte(`{"approve": true}`),
	}
	rec = a.do(t, tt)
	checkCodeAndData(t, tt, rec)
	if err := json.Unmarshal(rec.Body.Bytes(), &tc); err != nil {
		t.Fatalf("unmarshalling completion: %v", err)
	}
	if tc.Status != quest.StatusVerified {
		t.Errorf("status = %q, want %q", tc.Status, quest.StatusVerified)
	}
	if tc.VerifiedBy != teacher.ID {
		t.Errorf("verified_by = %q, want %q", tc.VerifiedBy, teacher.ID)
	}

	// both tasks done: the enrollment is finished and XP credited
	enrollments, err := a.questSvc.EnrollmentsOf(ctx, student.ID)
	if err != nil {
		t.Fatalf("EnrollmentsOf(): %v", err)
	}
	if len(enrollments) != 1 || !enrollments[0].Finished() {
		t.Errorf("enrollment not finished: %+v", enrollments)
	}

	balance, err := a.creditSvc.BalanceOf(ctx, student.ID)
	if err != nil {
		t.Fatalf("BalanceOf(): %v", err)
	}
	if want := 20 + 30 + 50; balance.XP != want {
		t.Errorf("XP = %d, want %d", balance.XP, want)
	}
}
