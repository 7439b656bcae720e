package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/optioeducation/optio/core"
	"github.com/optioeducation/optio/core/quest"
)

var ErrBadDraft = errors.New("could not parse generated quests")

const systemPrompt = `You are a curriculum designer for a self-directed learning platform.
You design quests: small, concrete learning projects a student completes through tasks.
Respond ONLY with a JSON array, no prose and no markdown fences. Each element:
{"title": string, "description": string, "tasks": [{"title": string, "description": string, "xp": int, "evidence": "none"|"text"|"link"|"document"}], "xp_reward": int}
Tasks should be actionable and verifiable. XP per task between 10 and 100; xp_reward between 20 and 200.`

type (
	// GenerateRequest asks for count quest drafts about a topic.
	GenerateRequest struct {
		Topic  string `json:"topic" validate:"required"`
		Pillar string `json:"pillar" validate:"required,pillar"`
		Count  int    `json:"count" validate:"min=1"`
	}

	// Draft is a generated quest candidate. Duplicates are flagged and not persisted.
	Draft struct {
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Tasks       []quest.NewTask `json:"tasks"`
		XPReward    int             `json:"xp_reward"`
		Duplicate   bool            `json:"duplicate"`
		SimilarTo   string          `json:"similar_to,omitempty"`
		Similarity  float64         `json:"similarity,omitempty"`
		QuestID     string          `json:"quest_id,omitempty"` // set when persisted
	}

	Service interface {
		// Generate drafts quests via the LLM, flags near-duplicates of existing
		// quests and persists the rest as inactive ai-generated quests.
		Generate(ctx context.Context, req GenerateRequest) ([]Draft, error)
	}

	service struct {
		client   Client
		questSvc quest.Service
		conf     core.LLMConfig
		logger   core.Logger
	}
)

func (gr *GenerateRequest) Validate(validate *validator.Validate) error {
	gr.Topic = core.CleanString(gr.Topic)
	gr.Pillar = core.CleanString(gr.Pillar, true /* lower */)
	if gr.Count == 0 {
		gr.Count = 1
	}
	return validate.Struct(gr)
}

var _ Service = (*service)(nil)

func NewService(client Client, questSvc quest.Service, conf core.LLMConfig, logger core.Logger) Service {
	return &service{
		client:   client,
		questSvc: questSvc,
		conf:     conf,
		logger:   logger,
	}
}

func (svc *service) Generate(ctx context.Context, req GenerateRequest) ([]Draft, error) {
	count := req.Count
	if count > svc.conf.MaxDrafts {
		count = svc.conf.MaxDrafts
	}

	prompt := fmt.Sprintf("Design %d quests about %q for the %q pillar.", count, req.Topic, req.Pillar)
	content, err := svc.client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, errors.Wrap(err, "completing draft request")
	}

	drafts, err := parseDrafts(content)
	if err != nil {
		return nil, err
	}
	if len(drafts) > count {
		drafts = drafts[:count]
	}

	existing, err := svc.questSvc.Query(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying existing quests")
	}

	for i := range drafts {
		draft := &drafts[i]
		svc.flagDuplicate(draft, existing)
		if draft.Duplicate {
			continue
		}

		nq := quest.NewQuest{
			Title:       draft.Title,
			Description: draft.Description,
			Pillar:      req.Pillar,
			Source:      quest.SourceAIGenerated,
			XPReward:    draft.XPReward,
			Tasks:       draft.Tasks,
		}
		// drafts await admin review before going live
		inactive := false
		nq.IsActive = &inactive

		q, err := svc.questSvc.Create(ctx, nq)
		if err != nil {
			svc.logger.Error(fmt.Sprintf("persisting generated quest %q: %v", draft.Title, err), err)
			continue
		}
		draft.QuestID = q.ID
	}
	return drafts, nil
}

// flagDuplicate marks the draft when its title or description is too similar
// to an existing quest's.
func (svc *service) flagDuplicate(draft *Draft, existing []quest.Quest) {
	for _, q := range existing {
		sim := core.SimilarityRatio(strings.ToLower(draft.Title), strings.ToLower(q.Title))
		if dsim := core.SimilarityRatio(strings.ToLower(draft.Description), strings.ToLower(q.Description)); dsim > sim {
			sim = dsim
		}
		if sim >= svc.conf.SimilarityThreshold {
			draft.Duplicate = true
			draft.SimilarTo = q.ID
			draft.Similarity = sim
			return
		}
	}
}

// parseDrafts decodes the model output, tolerating stray markdown fences.
func parseDrafts(content string) ([]Draft, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}

	var drafts []Draft
	if err := json.Unmarshal([]byte(content), &drafts); err != nil {
		return nil, errors.Wrap(ErrBadDraft, err.Error())
	}

	valid := drafts[:0]
	for _, d := range drafts {
		if d.Title == "" || len(d.Tasks) == 0 {
			continue
		}
		for i := range d.Tasks {
			if d.Tasks[i].Evidence == "" {
				d.Tasks[i].Evidence = quest.EvidenceNone
			}
		}
		valid = append(valid, d)
	}
	if len(valid) == 0 {
		return nil, ErrBadDraft
	}
	return valid, nil
}
