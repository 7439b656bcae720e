package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	. "github.com/optioeducation/optio/apps/api/echo"
	"github.com/optioeducation/optio/core"
	"github.com/optioeducation/optio/core/badge"
	"github.com/optioeducation/optio/core/credit"
	"github.com/optioeducation/optio/core/generator"
	"github.com/optioeducation/optio/core/learning"
	"github.com/optioeducation/optio/core/observer"
	"github.com/optioeducation/optio/core/quest"
	"github.com/optioeducation/optio/core/user"
	emailsvc "github.com/optioeducation/optio/services/email"
	dummydb "github.com/optioeducation/optio/storage/database/dummy"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

type testApp struct {
	conf *core.Config
	app  Server

	userRepo     user.Repository
	questRepo    quest.Repository
	badgeRepo    badge.Repository
	observerRepo observer.Repository

	userSvc     user.Service
	questSvc    quest.Service
	creditSvc   credit.Service
	observerSvc observer.Service
}

type nopLogger struct{}

func (nopLogger) Enable(enabled bool)                   {}
func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

// setup builds a full server on a fresh in-memory database.
func setup(t *testing.T) *testApp {
	t.Helper()
	emailsvc.ClearSentMessages()

	conf := &core.Config{
		TestMode:  true,
		AppName:   "Optio",
		SecretKey: []byte("test-secret"),
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: time.Hour,
		},
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		LLM:                       core.LLMConfig{SimilarityThreshold: .8, MaxDrafts: 10},
	}

	db, _ := dummydb.Open()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	userRepo := dummydb.NewUserRepository(db)
	questRepo := dummydb.NewQuestRepository(db)
	badgeRepo := dummydb.NewBadgeRepository(db)
	observerRepo := dummydb.NewObserverRepository(db)

	creditSvc := credit.NewService(dummydb.NewCreditRepository(db))
	learningSvc := learning.NewService(dummydb.NewLearningRepository(db))
	badgeSvc := badge.NewService(badgeRepo, creditSvc, learningSvc, mailSvc)
	questSvc := quest.NewService(questRepo, creditSvc, learningSvc, badgeSvc)
	userSvc := user.NewService(userRepo, mailSvc, conf)
	observerSvc := observer.NewService(observerRepo, userSvc, questSvc, badgeSvc, creditSvc, learningSvc, mailSvc, conf)
	generatorSvc := generator.NewService(nil, questSvc, conf.LLM, nopLogger{})

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	quest.InitValidators(validate, translator)

	app := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     nopLogger{},
		Validate:   validate,
		Translator: translator,

		UserSvc:      userSvc,
		QuestSvc:     questSvc,
		BadgeSvc:     badgeSvc,
		CreditSvc:    creditSvc,
		LearningSvc:  learningSvc,
		ObserverSvc:  observerSvc,
		GeneratorSvc: generatorSvc,

		DisableReqLogs: true,
	})

	return &testApp{
		conf:         conf,
		app:          app,
		userRepo:     userRepo,
		questRepo:    questRepo,
		badgeRepo:    badgeRepo,
		observerRepo: observerRepo,
		userSvc:      userSvc,
		questSvc:     questSvc,
		creditSvc:    creditSvc,
		observerSvc:  observerSvc,
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (a *testApp) do(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	t.Helper()
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	a.app.ServeHTTP(rec, req)
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func (a *testApp) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	claims := GetUserClaims(a.conf, usr)
	token, err := GenerateToken(a.conf, claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func marshallList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marshallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	if rec.Code != wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
