package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"Wonderland/internal/domain/models"
	"Wonderland/internal/domain/repository"
	xhttp "Wonderland/pkg/http"
	"Wonderland/pkg/logger"
)

var (
	ErrUnknownPlatform = errors.New("oracle: unknown platform")
	ErrUnknownModel    = errors.New("oracle: unknown model tier")
	ErrEmptyResponse   = errors.New("oracle: empty response")
	// ErrNoToolCall is returned when the model answers without calling the tool.
	ErrNoToolCall = errors.New("oracle: no tool call in response")
	// ErrMultipleToolCalls is returned when the model calls the tool more
	// than once in one answer.
	ErrMultipleToolCalls = errors.New("oracle: more than one tool call in response")
)

// Platform is one OpenAI-compatible endpoint and its tier-to-model map.
type Platform struct {
	BaseURL string
	APIKey  string
	Models  map[string]string
}

type Config struct {
	Platforms   map[string]Platform
	Temperature float64
	Timeout     time.Duration
}

// Client speaks the chat/completions dialect shared by OpenAI, Qwen,
// DeepSeek and friends.
type Client struct {
	cfg    Config
	http   *xhttp.Client
	logger *logger.Logger
}

var _ repository.Oracle = (*Client)(nil)

func New(cfg Config, lgr *logger.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		logger: lgr.With(logger.Component("oracle")),
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type toolDef struct {
	Type     string      `json:"type"`
	Function functionDef `json:"function"`
}

type functionDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type chatRequest struct {
	Model       string      `json:"model"`
	Messages    []message   `json:"messages"`
	Temperature *float64    `json:"temperature,omitempty"`
	Tools       []toolDef   `json:"tools,omitempty"`
	ToolChoice  interface{} `json:"tool_choice,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete returns the assistant text for p.
func (c *Client) Complete(ctx context.Context, p models.Prompt) (string, error) {
	resp, err := c.chat(ctx, p, nil)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// CallTool forces the model to call tool and returns that single call.
func (c *Client) CallTool(ctx context.Context, p models.Prompt, tool models.ToolSpec) (*models.ToolCall, error) {
	resp, err := c.chat(ctx, p, &tool)
	if err != nil {
		return nil, err
	}
	var call *models.ToolCall
	for _, tc := range resp.Choices[0].Message.ToolCalls {
		if tc.Function.Name == "" {
			continue
		}
		if call != nil {
			c.logger.Warn("model returned several tool calls",
				logger.String("tool", tool.Name),
				logger.Int("calls", len(resp.Choices[0].Message.ToolCalls)))
			return nil, ErrMultipleToolCalls
		}
		args := strings.TrimSpace(tc.Function.Arguments)
		if !json.Valid([]byte(args)) {
			return nil, fmt.Errorf("oracle: tool %s returned invalid arguments", tc.Function.Name)
		}
		call = &models.ToolCall{Name: tc.Function.Name, Arguments: json.RawMessage(args)}
	}
	if call == nil {
		return nil, ErrNoToolCall
	}
	return call, nil
}

func (c *Client) chat(ctx context.Context, p models.Prompt, tool *models.ToolSpec) (*chatResponse, error) {
	platform, ok := c.cfg.Platforms[p.Platform]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, p.Platform)
	}
	model, ok := platform.Models[p.Model]
	if !ok {
		return nil, fmt.Errorf("%w: %q on %s", ErrUnknownModel, p.Model, p.Platform)
	}

	req := chatRequest{Model: model}
	if strings.TrimSpace(p.System) != "" {
		req.Messages = append(req.Messages, message{Role: "system", Content: p.System})
	}
	req.Messages = append(req.Messages, message{Role: "user", Content: p.Input})
	if c.cfg.Temperature > 0 {
		t := c.cfg.Temperature
		req.Temperature = &t
	}
	if tool != nil {
		req.Tools = []toolDef{{
			Type: "function",
			Function: functionDef{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		}}
		req.ToolChoice = "required"
	}

	start := time.Now()
	var resp chatResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     strings.TrimRight(platform.BaseURL, "/") + "/chat/completions",
		Headers: map[string]string{"Authorization": "Bearer " + platform.APIKey},
		Body:    req,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("oracle %s/%s: %w", p.Platform, model, err)
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return nil, fmt.Errorf("oracle %s/%s: %s", p.Platform, model, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	c.logger.Debug("chat completed",
		logger.String("platform", p.Platform),
		logger.String("model", model),
		logger.Bool("tool", tool != nil),
		logger.Duration("elapsed", time.Since(start)),
	)
	return &resp, nil
}
