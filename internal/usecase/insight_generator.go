package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"Wonderland/internal/agent"
	"Wonderland/internal/domain/models"
	drepo "Wonderland/internal/domain/repository"
	"Wonderland/internal/market"
	"Wonderland/pkg/logger"

	"github.com/google/uuid"
)

const defaultInstruct = "as default"

const insightSystemPrompt = "You are a professional crypto investor. Please analyze the current market situation."

// PairBrief is a tracked pair with the reading guide handed to the oracle.
type PairBrief struct {
	Pair        market.Pair
	Description string
}

// InsightGenerator turns the ratio digest into a stored market insight.
type InsightGenerator struct {
	state     *market.State
	pairs     []PairBrief
	thinking  *agent.Thinking
	journal   drepo.Journal
	instructs drepo.InstructStore
	notifier  drepo.Notifier
	platform  string
	model     string
	logger    *logger.Logger
}

func NewInsightGenerator(
	state *market.State,
	pairs []PairBrief,
	thinking *agent.Thinking,
	journal drepo.Journal,
	instructs drepo.InstructStore,
	notifier drepo.Notifier,
	platform, model string,
	lgr *logger.Logger,
) *InsightGenerator {
	return &InsightGenerator{
		state:     state,
		pairs:     pairs,
		thinking:  thinking,
		journal:   journal,
		instructs: instructs,
		notifier:  notifier,
		platform:  platform,
		model:     model,
		logger:    lgr.With(logger.Component("insight_generator")),
	}
}

func (g *InsightGenerator) marketPairs() []market.Pair {
	out := make([]market.Pair, 0, len(g.pairs))
	for _, p := range g.pairs {
		out = append(out, p.Pair)
	}
	return out
}

// Run stores the market snapshot whatever the oracle does, then the insight
// when the oracle answers.
func (g *InsightGenerator) Run(ctx context.Context) error {
	report := g.state.GenerateRate(g.marketPairs())

	snap := &models.MarketSnapshot{
		ID:        uuid.NewString(),
		Digest:    report.Formatted,
		Pairs:     report.MarketData,
		Prices:    g.state.Snapshot(),
		Timestamp: time.Now().UTC(),
	}
	if err := g.journal.SaveMarketSnapshot(ctx, snap); err != nil {
		g.logger.Error("save market snapshot", logger.Error(err))
	}

	instruct := latestInstruct(ctx, g.instructs, models.InstructMarket, g.logger)
	content, err := g.thinking.Response(ctx, models.Prompt{
		System:   insightSystemPrompt,
		Input:    MarketPrompt(g.pairs, instruct, report.Formatted),
		Model:    g.model,
		Platform: g.platform,
	})
	if err != nil {
		return fmt.Errorf("generate insight: %w", err)
	}

	insight := &models.Insight{
		ID:        uuid.NewString(),
		Content:   content,
		Platform:  g.platform,
		Model:     g.model,
		Timestamp: time.Now().UTC(),
	}
	if err := g.journal.SaveInsight(ctx, insight); err != nil {
		return fmt.Errorf("save insight: %w", err)
	}
	g.logger.Info("insight stored", logger.String("id", insight.ID), logger.Int("chars", len(content)))

	if g.notifier != nil {
		if err := g.notifier.Notify(ctx, content); err != nil {
			g.logger.Warn("queue insight notification", logger.Error(err))
		}
	}
	return nil
}

// MarketPrompt renders the insight request: preference, pair guide and digest.
func MarketPrompt(pairs []PairBrief, instruct, digest string) string {
	var b strings.Builder
	b.WriteString("Here are crypto asset ratio data for the last month. Please analyze them. ")
	b.WriteString("What do you think of the current market situation, and of each asset against its quote?\n\n")
	b.WriteString("[Preference Instruct]\n")
	b.WriteString(instruct)
	b.WriteString("\n\n[Pair Indicators Interpretation]\n")
	for _, p := range pairs {
		fmt.Fprintf(&b, "- %s: %s\n", p.Pair, p.Description)
	}
	b.WriteString("\n[ratio data]\n")
	b.WriteString(digest)
	return b.String()
}

// latestInstruct falls back to the default preference when none is stored
// or the store is unreachable.
func latestInstruct(ctx context.Context, store drepo.InstructStore, kind models.InstructKind, lgr *logger.Logger) string {
	if store == nil {
		return defaultInstruct
	}
	in, err := store.LatestInstruct(ctx, kind)
	if err != nil {
		if !errors.Is(err, drepo.ErrNotFound) {
			lgr.Warn("load instruct", logger.String("kind", string(kind)), logger.Error(err))
		}
		return defaultInstruct
	}
	if in == nil || strings.TrimSpace(in.Instruct) == "" {
		return defaultInstruct
	}
	return in.Instruct
}
