package main

import (
	"context"
	"time"

	"github.com/optioeducation/optio/core/badge"
	"github.com/optioeducation/optio/core/quest"
)

// seedDemo loads a small demo catalog: one quest per pillar and a badge
// spanning two of them. Safe to run on an empty database only.
func (cli *commandLine) seedDemo() error {
	ctx := context.Background()
	now := time.Now().UTC()

	existing, err := cli.questRepo.QueryQuests(ctx, nil)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Println("database already contains quests; skipping demo seed")
		return nil
	}

	quests := []quest.Quest{
		{
			Title:       "Build a Weather Station",
			Description: "Assemble a simple weather station and log a week of readings.",
			Pillar:      "stem",
			Source:      quest.SourceCustom,
			XPReward:    50,
			Tasks: []quest.Task{
				{Ordinal: 1, Title: "Research sensors", Description: "Pick a thermometer and a rain gauge.", XP: 20, Evidence: quest.EvidenceText},
				{Ordinal: 2, Title: "Record a week of data", Description: "Log temperature and rainfall daily.", XP: 40, Evidence: quest.EvidenceDocument},
				{Ordinal: 3, Title: "Chart your findings", XP: 30, Evidence: quest.EvidenceLink},
			},
		},
		{
			Title:       "Sketchbook Challenge",
			Description: "Fill ten pages of a sketchbook exploring one subject.",
			Pillar:      "arts-creativity",
			Source:      quest.SourceCustom,
			XPReward:    40,
			Tasks: []quest.Task{
				{Ordinal: 1, Title: "Choose a subject", XP: 10, Evidence: quest.EvidenceNone},
				{Ordinal: 2, Title: "Sketch ten pages", XP: 60, Evidence: quest.EvidenceDocument},
			},
		},
		{
			Title:       "Interview a Neighbor",
			Description: "Prepare, conduct and write up an interview with someone in your community.",
			Pillar:      "society-culture",
			Source:      quest.SourceCustom,
			XPReward:    30,
			Tasks: []quest.Task{
				{Ordinal: 1, Title: "Write your questions", XP: 15, Evidence: quest.EvidenceText},
				{Ordinal: 2, Title: "Conduct the interview", XP: 25, Evidence: quest.EvidenceNone},
				{Ordinal: 3, Title: "Write it up", XP: 30, Evidence: quest.EvidenceText},
			},
		},
	}

	questIDs := make([]string, 0, len(quests))
	for _, q := range quests {
		q.SetActive(true)
		q.CreatedAt, q.UpdatedAt = now, now
		created, err := cli.questRepo.CreateQuest(ctx, q)
		if err != nil {
			return err
		}
		questIDs = append(questIDs, created.ID)
		logger.Printf("seeded quest %q", created.Title)
	}

	b := badge.Badge{
		Name:        "Curious Mind",
		Description: "Awarded for finishing the starter STEM and culture quests.",
		QuestIDs:    []string{questIDs[0], questIDs[2]},
		XPBonus:     25,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	b.SetActive(true)
	created, err := cli.badgeRepo.CreateBadge(ctx, b)
	if err != nil {
		return err
	}
	logger.Printf("seeded badge %q", created.Name)
	return nil
}
