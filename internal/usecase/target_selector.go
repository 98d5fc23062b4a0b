package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"Wonderland/internal/agent"
	"Wonderland/internal/domain/models"
	drepo "Wonderland/internal/domain/repository"
	"Wonderland/internal/portfolio"
	"Wonderland/pkg/logger"
	"Wonderland/pkg/util"

	"github.com/google/uuid"
)

// AdjustPortfolioTool is the function the trading model must call.
const AdjustPortfolioTool = "adjust_portfolio"

// TokenBrief is a tracked token as presented to the trading model.
type TokenBrief struct {
	CoinType    string
	Symbol      string
	Name        string
	Description string
}

// WeightField is the tool argument carrying the token's target weight.
func (t TokenBrief) WeightField() string {
	return strings.ToLower(t.Symbol) + "_weight"
}

type Rebalancer interface {
	Rebalance(ctx context.Context, holdings []models.TokenHolding, target []models.TargetAllocation) (*portfolio.Result, error)
}

type invalidator interface {
	Invalidate(ctx context.Context)
}

// TargetSelector asks the trading model for target weights and hands them
// to the rebalancer.
type TargetSelector struct {
	holdings   drepo.HoldingsProvider
	journal    drepo.Journal
	instructs  drepo.InstructStore
	thinking   *agent.Thinking
	rebalancer Rebalancer
	tokens     []TokenBrief
	platform   string
	model      string
	logger     *logger.Logger
}

func NewTargetSelector(
	holdings drepo.HoldingsProvider,
	journal drepo.Journal,
	instructs drepo.InstructStore,
	thinking *agent.Thinking,
	rebalancer Rebalancer,
	tokens []TokenBrief,
	platform, model string,
	lgr *logger.Logger,
) *TargetSelector {
	return &TargetSelector{
		holdings:   holdings,
		journal:    journal,
		instructs:  instructs,
		thinking:   thinking,
		rebalancer: rebalancer,
		tokens:     tokens,
		platform:   platform,
		model:      model,
		logger:     lgr.With(logger.Component("target_selector")),
	}
}

// Run returns an error only when no rebalance could start. Failed swaps
// inside a run are reported in the stored action, not as an error.
func (s *TargetSelector) Run(ctx context.Context) error {
	snap, err := s.holdings.Holdings(ctx)
	if err != nil {
		return fmt.Errorf("load holdings: %w", err)
	}
	insight, err := s.journal.LatestInsight(ctx)
	if err != nil {
		return fmt.Errorf("load insight: %w", err)
	}

	instruct := latestInstruct(ctx, s.instructs, models.InstructTrading, s.logger)
	call, err := s.thinking.Decide(ctx, models.Prompt{
		System:   TradingPrompt(snap.Holdings, s.tokens, instruct),
		Input:    "The market insight is\n" + insight.Content,
		Model:    s.model,
		Platform: s.platform,
	}, s.ToolSpec())
	if err != nil {
		return fmt.Errorf("select target: %w", err)
	}

	target, reason, err := s.DecodeTarget(call.Arguments)
	if err != nil {
		return err
	}
	s.logger.Info("target selected", logger.String("target", formatTarget(target)), logger.String("reason", reason))

	res, err := s.rebalancer.Rebalance(ctx, snap.Holdings, target)
	if err != nil {
		return fmt.Errorf("rebalance: %w", err)
	}

	action := &models.PortfolioAction{
		ID:        uuid.NewString(),
		Action:    AdjustPortfolioTool + ": " + formatTarget(res.Target),
		Reason:    reason,
		Details:   res.Details(),
		Timestamp: time.Now().UTC(),
	}
	if err := s.journal.SaveAction(ctx, action); err != nil {
		s.logger.Error("save portfolio action", logger.Error(err))
	}

	if inv, ok := s.holdings.(invalidator); ok {
		inv.Invalidate(ctx)
	}
	return nil
}

// ToolSpec declares one bounded weight per tracked token plus the rationale.
func (s *TargetSelector) ToolSpec() models.ToolSpec {
	props := map[string]interface{}{
		"thinking": map[string]interface{}{
			"type":        "string",
			"description": "The reason for the portfolio adjustment",
		},
	}
	required := []string{"thinking"}
	for _, t := range s.tokens {
		props[t.WeightField()] = map[string]interface{}{
			"type":        "number",
			"minimum":     0,
			"maximum":     100,
			"description": fmt.Sprintf("The weight of %s holding in the portfolio", t.Symbol),
		}
		required = append(required, t.WeightField())
	}
	return models.ToolSpec{
		Name:        AdjustPortfolioTool,
		Description: "Adjust the portfolio by setting the weight of each tracked token. The weights should sum to 100.",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
	}
}

// Weights maps a tracked coin type to its target percentage.
type Weights map[string]float64

// Allocations lists w in tracked order. Tokens without a weight are left
// out so the rebalancer rejects the set.
func (w Weights) Allocations(tokens []TokenBrief) []models.TargetAllocation {
	out := make([]models.TargetAllocation, 0, len(tokens))
	for _, t := range tokens {
		pct, ok := w[t.CoinType]
		if !ok {
			continue
		}
		out = append(out, models.TargetAllocation{
			CoinType:         t.CoinType,
			CoinSymbol:       t.Symbol,
			TargetPercentage: pct,
		})
	}
	return out
}

// DecodeWeights reads the tool arguments into weights keyed by coin type,
// plus the model's stated reason.
func (s *TargetSelector) DecodeWeights(args json.RawMessage) (Weights, string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(args, &raw); err != nil {
		return nil, "", fmt.Errorf("decode %s arguments: %w", AdjustPortfolioTool, err)
	}

	var reason string
	if v, ok := raw["thinking"]; ok {
		_ = json.Unmarshal(v, &reason)
	}

	w := make(Weights, len(s.tokens))
	for _, t := range s.tokens {
		v, ok := raw[t.WeightField()]
		if !ok {
			continue
		}
		var pct float64
		if err := json.Unmarshal(v, &pct); err != nil {
			return nil, "", fmt.Errorf("decode %s: %w", t.WeightField(), err)
		}
		w[t.CoinType] = pct
	}
	return w, reason, nil
}

// DecodeTarget is DecodeWeights rendered as allocations in tracked order.
func (s *TargetSelector) DecodeTarget(args json.RawMessage) ([]models.TargetAllocation, string, error) {
	w, reason, err := s.DecodeWeights(args)
	if err != nil {
		return nil, "", err
	}
	return w.Allocations(s.tokens), reason, nil
}

func formatTarget(target []models.TargetAllocation) string {
	parts := make([]string, 0, len(target))
	for _, t := range target {
		name := t.CoinSymbol
		if name == "" {
			name = util.TokenName(t.CoinType)
		}
		parts = append(parts, fmt.Sprintf("%s:%g%%", name, t.TargetPercentage))
	}
	return strings.Join(parts, ", ")
}

// TradingPrompt is the system prompt for target selection.
func TradingPrompt(current []models.TokenHolding, tokens []TokenBrief, instruct string) string {
	var b strings.Builder
	b.WriteString("You are a professional trader managing a portfolio of a stable coin and a few volatile tokens. ")
	b.WriteString("Adjust the weight of each token holding to get the best return for the market situation.\n\n")
	fmt.Fprintf(&b, "User preference is: %s\n\n", instruct)
	b.WriteString("Current portfolio:\n")
	for _, h := range current {
		fmt.Fprintf(&b, "- %s: %.2f%% (value: %.2f USD)\n", h.CoinSymbol, h.Percentage, h.BalanceUsd)
	}
	b.WriteString("\nTokens:\n")
	for _, t := range tokens {
		fmt.Fprintf(&b, "- %s (%s): %s\n", t.Name, t.Symbol, t.Description)
	}
	return b.String()
}
