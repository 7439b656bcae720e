package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/optioeducation/optio/core/user"
	testutil "github.com/optioeducation/optio/tests"
)

const testPassword = "g00d-N-Str0ng!"

func Test_userApi_login(t *testing.T) {
	a := setup(t)

	usr := testutil.CreateUser(t, a.userRepo, "Hero", "hero", "hero@test.test", testPassword, user.StudentRoles, true)
	testutil.CreateUser(t, a.userRepo, "Ghost", "ghost", "ghost@test.test", testPassword, user.StudentRoles, false)

	tests := []httpTest{
		{
			name: "empty payload", method: http.MethodPost, path: "/v1/users/login",
			body: []byte(`{}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/users/login",
			body:     []byte(`{"username": "nobody", "password": "nope"}`),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/users/login",
			body:     []byte(`{"username": "hero", "password": "nope"}`),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", method: http.MethodPost, path: "/v1/users/login",
			body:     []byte(`{"username": "ghost", "password": "` + testPassword + `"}`),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "login by username", method: http.MethodPost, path: "/v1/users/login",
			body: []byte(`{"username": "hero", "password": "` + testPassword + `"}`),
		},
		{
			name: "login by email", method: http.MethodPost, path: "/v1/users/login",
			body: []byte(`{"username": "hero@test.test", "password": "` + testPassword + `"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, tt)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == 0 && rec.Code == http.StatusOK {
				var resp struct {
					Token string `json:"token"`
				}
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("unmarshalling login response: %v", err)
				}
				if resp.Token == "" {
					t.Error("login returned an empty token")
				}
			}
		})
	}

	// login bumps LastLogin
	usr, err := a.userSvc.GetByID(context.Background(), usr.ID)
	if err != nil {
		t.Fatalf("GetByID(): %v", err)
	}
	if usr.LastLogin.IsZero() {
		t.Error("LastLogin was not set")
	}
}

func Test_userApi_tokenRefresh(t *testing.T) {
	a := setup(t)

	usr := testutil.CreateUser(t, a.userRepo, "Hero", "hero", "hero@test.test", testPassword, user.StudentRoles, true)
	token := a.getToken(t, usr)

	tt := httpTest{name: "refresh", method: http.MethodPost, path: "/v1/users/token-refresh", token: token}
	rec := a.do(t, tt)
	checkCodeAndData(t, tt, rec)

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshalling refresh response: %v", err)
	}
	if resp.Token == "" {
		t.Error("refresh returned an empty token")
	}
}

func Test_userApi_query(t *testing.T) {
	a := setup(t)

	now := time.Now()
	student := testutil.CreateUser(t, a.userRepo, "Hero", "hero", "hero@test.test", "", user.StudentRoles, true, now)
	admin := testutil.CreateUser(t, a.userRepo, "Admin", "admin1", "admin@test.test", "", user.AdminRoles, true, now.Add(time.Hour))

	tests := []httpTest{
		{name: "auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "admin required", path: "/v1/users", token: a.getToken(t, student), wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden)},
		{name: "get all", path: "/v1/users", token: a.getToken(t, admin), wantData: marshallList(t, admin, student)},
		{name: "search", path: "/v1/users?search=hero", token: a.getToken(t, admin), wantData: marshallList(t, student)},
		{name: "filter role", path: "/v1/users?role=admin:", token: a.getToken(t, admin), wantData: marshallList(t, admin)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, a.do(t, tt))
		})
	}
}

func Test_userApi_detail(t *testing.T) {
	a := setup(t)

	student := testutil.CreateUser(t, a.userRepo, "Hero", "hero", "hero@test.test", "", user.StudentRoles, true)
	other := testutil.CreateUser(t, a.userRepo, "Other", "other1", "other@test.test", "", user.StudentRoles, true)
	admin := testutil.CreateUser(t, a.userRepo, "Admin", "admin1", "admin@test.test", "", user.AdminRoles, true)

	studentToken := a.getToken(t, student)
	adminToken := a.getToken(t, admin)

	tests := []httpTest{
		{name: "own profile", path: "/v1/users/" + student.ID, token: studentToken, wantData: marshallObj(t, student)},
		{
			name: "other's profile is hidden", path: "/v1/users/" + other.ID, token: studentToken,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, errNotFound),
		},
		{name: "admin sees any profile", path: "/v1/users/" + other.ID, token: adminToken, wantData: marshallObj(t, other)},
		{
			name: "non-admin cannot change roles", method: http.MethodPut, path: "/v1/users/" + student.ID, token: studentToken,
			body:     []byte(`{"roles": ["admin:"]}`),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden),
		},
		{
			name: "self-delete is forbidden", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: adminToken,
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden),
		},
		{name: "admin deletes a user", method: http.MethodDelete, path: "/v1/users/" + other.ID, token: adminToken, wantCode: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, a.do(t, tt))
		})
	}
}

func Test_userApi_register(t *testing.T) {
	a := setup(t)

	admin := testutil.CreateUser(t, a.userRepo, "Admin", "admin1", "admin@test.test", "", user.AdminRoles, true)
	adminToken := a.getToken(t, admin)

	body := []byte(`{
		"name": "New Kid",
		"username": "newkid",
		"email": "newkid@test.test",
		"password": "` + testPassword + `",
		"password_confirm": "` + testPassword + `",
		"roles": ["student:"]
	}`)

	tt := httpTest{name: "register", method: http.MethodPost, path: "/v1/users/register", token: adminToken, body: body, wantCode: http.StatusCreated}
	rec := a.do(t, tt)
	checkCodeAndData(t, tt, rec)

	// duplicate username is rejected
	tt = httpTest{name: "dup", method: http.MethodPost, path: "/v1/users/register", token: adminToken, body: body, wantCode: http.StatusBadRequest}
	checkCodeAndData(t, tt, a.do(t, tt))
}
