package agent

import (
	"context"
	"errors"
	"testing"

	"Wonderland/internal/domain/models"
	"Wonderland/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOracle struct {
	text string
	err  error
	call *models.ToolCall
	last models.Prompt
}

func (o *stubOracle) Complete(_ context.Context, p models.Prompt) (string, error) {
	o.last = p
	return o.text, o.err
}

func (o *stubOracle) CallTool(_ context.Context, p models.Prompt, _ models.ToolSpec) (*models.ToolCall, error) {
	o.last = p
	return o.call, o.err
}

func TestThinkingAppliesDefaults(t *testing.T) {
	o := &stubOracle{text: " insight "}
	th := NewThinking(o, "qwen", "large", logger.Nop())

	out, err := th.Response(context.Background(), models.Prompt{Input: "x"})
	require.NoError(t, err)
	assert.Equal(t, "insight", out)
	assert.Equal(t, "qwen", o.last.Platform)
	assert.Equal(t, "large", o.last.Model)

	_, err = th.Response(context.Background(), models.Prompt{Platform: "deepseek", Model: "reason"})
	require.NoError(t, err)
	assert.Equal(t, "deepseek", o.last.Platform)
	assert.Equal(t, "reason", o.last.Model)
}

func TestThinkingErrorSentinel(t *testing.T) {
	th := NewThinking(&stubOracle{text: "error"}, "qwen", "large", logger.Nop())
	_, err := th.Response(context.Background(), models.Prompt{})
	assert.ErrorIs(t, err, ErrOracle)

	th = NewThinking(&stubOracle{err: errors.New("timeout")}, "qwen", "large", logger.Nop())
	_, err = th.Response(context.Background(), models.Prompt{})
	assert.ErrorIs(t, err, ErrOracle)
}

func TestThinkingDecideChecksToolName(t *testing.T) {
	o := &stubOracle{call: &models.ToolCall{Name: "other"}}
	th := NewThinking(o, "qwen", "large", logger.Nop())
	_, err := th.Decide(context.Background(), models.Prompt{}, models.ToolSpec{Name: "adjust_portfolio"})
	assert.ErrorIs(t, err, ErrOracle)

	o.call = &models.ToolCall{Name: "adjust_portfolio", Arguments: []byte(`{}`)}
	call, err := th.Decide(context.Background(), models.Prompt{}, models.ToolSpec{Name: "adjust_portfolio"})
	require.NoError(t, err)
	assert.Equal(t, "adjust_portfolio", call.Name)
}
