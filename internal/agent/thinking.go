package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"Wonderland/internal/domain/models"
	"Wonderland/internal/domain/repository"
	"Wonderland/pkg/logger"
)

// ErrOracle marks any failed or sentinel oracle response.
var ErrOracle = errors.New("oracle error")

// errorSentinel is the literal reply some upstream bridges return on failure.
const errorSentinel = "error"

// Thinking wraps the oracle with default platform and model tier.
type Thinking struct {
	oracle          repository.Oracle
	defaultPlatform string
	defaultModel    string
	logger          *logger.Logger
}

func NewThinking(oracle repository.Oracle, platform, model string, lgr *logger.Logger) *Thinking {
	return &Thinking{
		oracle:          oracle,
		defaultPlatform: platform,
		defaultModel:    model,
		logger:          lgr.With(logger.Component("thinking")),
	}
}

func (t *Thinking) withDefaults(p models.Prompt) models.Prompt {
	if p.Platform == "" {
		p.Platform = t.defaultPlatform
	}
	if p.Model == "" {
		p.Model = t.defaultModel
	}
	return p
}

// Response asks for free text.
func (t *Thinking) Response(ctx context.Context, p models.Prompt) (string, error) {
	p = t.withDefaults(p)
	start := time.Now()
	out, err := t.oracle.Complete(ctx, p)
	if err != nil {
		return "", fmt.Errorf("%w: %s/%s: %v", ErrOracle, p.Platform, p.Model, err)
	}
	out = strings.TrimSpace(out)
	if out == "" || out == errorSentinel {
		return "", fmt.Errorf("%w: %s/%s returned %q", ErrOracle, p.Platform, p.Model, out)
	}
	t.logger.Debug("oracle response",
		logger.String("platform", p.Platform),
		logger.String("model", p.Model),
		logger.Int("chars", len(out)),
		logger.Duration("elapsed_ms", time.Since(start)))
	return out, nil
}

// Decide forces one call of tool and returns its arguments.
func (t *Thinking) Decide(ctx context.Context, p models.Prompt, tool models.ToolSpec) (*models.ToolCall, error) {
	p = t.withDefaults(p)
	call, err := t.oracle.CallTool(ctx, p, tool)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s tool %s: %v", ErrOracle, p.Platform, p.Model, tool.Name, err)
	}
	if call.Name != tool.Name {
		return nil, fmt.Errorf("%w: expected tool %s, got %s", ErrOracle, tool.Name, call.Name)
	}
	return call, nil
}
