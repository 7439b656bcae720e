package generator_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optioeducation/optio/core"
	"github.com/optioeducation/optio/core/badge"
	"github.com/optioeducation/optio/core/credit"
	"github.com/optioeducation/optio/core/generator"
	"github.com/optioeducation/optio/core/learning"
	"github.com/optioeducation/optio/core/quest"
	emailsvc "github.com/optioeducation/optio/services/email"
	dummydb "github.com/optioeducation/optio/storage/database/dummy"
	testutil "github.com/optioeducation/optio/tests"
)

type nopLogger struct{}

func (nopLogger) Enable(enabled bool)                   {}
func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

func newQuestService(db *dummydb.DB) (quest.Service, quest.Repository) {
	creditSvc := credit.NewService(dummydb.NewCreditRepository(db))
	learningSvc := learning.NewService(dummydb.NewLearningRepository(db))
	mailSvc := emailsvc.NewConsoleServiceMock(&core.Config{TestMode: true})
	badgeSvc := badge.NewService(dummydb.NewBadgeRepository(db), creditSvc, learningSvc, mailSvc)
	repo := dummydb.NewQuestRepository(db)
	return quest.NewService(repo, creditSvc, learningSvc, badgeSvc), repo
}

// newLLMServer fakes the chat completions endpoint, always answering content.
func newLLMServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func llmConf(baseURL string) core.LLMConfig {
	return core.LLMConfig{
		BaseURL:             baseURL,
		APIKey:              "test-key",
		Model:               "test-model",
		SimilarityThreshold: .8,
		MaxDrafts:           10,
		Timeout:             5 * time.Second,
	}
}

const draftsJSON = `[
	{
		"title": "Build a Weather Station",
		"description": "Assemble a station and log readings.",
		"tasks": [{"title": "Pick sensors", "xp": 20, "evidence": "text"}],
		"xp_reward": 50
	},
	{
		"title": "Start a Nature Journal",
		"description": "Observe and sketch local wildlife.",
		"tasks": [{"title": "First entry", "xp": 10}],
		"xp_reward": 30
	}
]`

func Test_service_Generate(t *testing.T) {
	srv := newLLMServer(t, draftsJSON)
	defer srv.Close()

	db, _ := dummydb.Open()
	questSvc, _ := newQuestService(db)
	conf := llmConf(srv.URL)
	svc := generator.NewService(generator.NewClient(conf, nopLogger{}), questSvc, conf, nopLogger{})

	drafts, err := svc.Generate(context.Background(), generator.GenerateRequest{
		Topic:  "weather",
		Pillar: "stem",
		Count:  2,
	})
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	for _, d := range drafts {
		assert.False(t, d.Duplicate)
		assert.NotEmpty(t, d.QuestID)
	}

	// persisted as inactive ai-generated quests pending admin review
	q, err := questSvc.GetByID(context.Background(), drafts[0].QuestID)
	require.NoError(t, err)
	assert.Equal(t, quest.SourceAIGenerated, q.Source)
	assert.False(t, q.Active())
	require.Len(t, q.Tasks, 1)
	assert.Equal(t, quest.EvidenceText, q.Tasks[0].Evidence)

	// missing evidence defaults to none
	q2, err := questSvc.GetByID(context.Background(), drafts[1].QuestID)
	require.NoError(t, err)
	assert.Equal(t, quest.EvidenceNone, q2.Tasks[0].Evidence)
}

func Test_service_GenerateFlagsDuplicates(t *testing.T) {
	srv := newLLMServer(t, draftsJSON)
	defer srv.Close()

	db, _ := dummydb.Open()
	questSvc, questRepo := newQuestService(db)
	existing := testutil.CreateQuest(t, questRepo, "Build a Weather Station", "stem", 50, true,
		quest.Task{Title: "Pick sensors", XP: 20})

	conf := llmConf(srv.URL)
	svc := generator.NewService(generator.NewClient(conf, nopLogger{}), questSvc, conf, nopLogger{})

	drafts, err := svc.Generate(context.Background(), generator.GenerateRequest{
		Topic:  "weather",
		Pillar: "stem",
		Count:  2,
	})
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	dup := drafts[0]
	assert.True(t, dup.Duplicate)
	assert.Equal(t, existing.ID, dup.SimilarTo)
	assert.GreaterOrEqual(t, dup.Similarity, conf.SimilarityThreshold)
	assert.Empty(t, dup.QuestID) // duplicates are not persisted

	assert.False(t, drafts[1].Duplicate)
	assert.NotEmpty(t, drafts[1].QuestID)
}

func Test_service_GenerateToleratesMarkdownFences(t *testing.T) {
	srv := newLLMServer(t, "```json\n"+draftsJSON+"\n```")
	defer srv.Close()

	db, _ := dummydb.Open()
	questSvc, _ := newQuestService(db)
	conf := llmConf(srv.URL)
	svc := generator.NewService(generator.NewClient(conf, nopLogger{}), questSvc, conf, nopLogger{})

	drafts, err := svc.Generate(context.Background(), generator.GenerateRequest{
		Topic:  "weather",
		Pillar: "stem",
		Count:  2,
	})
	require.NoError(t, err)
	assert.Len(t, drafts, 2)
}

func Test_service_GenerateBadPayload(t *testing.T) {
	srv := newLLMServer(t, "I'm sorry, I can't help with that.")
	defer srv.Close()

	db, _ := dummydb.Open()
	questSvc, _ := newQuestService(db)
	conf := llmConf(srv.URL)
	svc := generator.NewService(generator.NewClient(conf, nopLogger{}), questSvc, conf, nopLogger{})

	_, err := svc.Generate(context.Background(), generator.GenerateRequest{
		Topic:  "weather",
		Pillar: "stem",
		Count:  1,
	})
	assert.Equal(t, generator.ErrBadDraft, errors.Cause(err))
}

func Test_service_GenerateCapsCount(t *testing.T) {
	srv := newLLMServer(t, draftsJSON)
	defer srv.Close()

	db, _ := dummydb.Open()
	questSvc, _ := newQuestService(db)
	conf := llmConf(srv.URL)
	conf.MaxDrafts = 1
	svc := generator.NewService(generator.NewClient(conf, nopLogger{}), questSvc, conf, nopLogger{})

	drafts, err := svc.Generate(context.Background(), generator.GenerateRequest{
		Topic:  "weather",
		Pillar: "stem",
		Count:  5,
	})
	require.NoError(t, err)
	assert.Len(t, drafts, 1)
}
