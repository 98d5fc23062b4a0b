package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"Wonderland/internal/domain/models"
	"Wonderland/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOracle(url string) *Client {
	return New(Config{
		Platforms: map[string]Platform{
			"qwen": {BaseURL: url + "/v1/", APIKey: "secret", Models: map[string]string{"large": "qwen-max"}},
		},
	}, logger.Nop())
}

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen-max", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "how is APT?", req.Messages[1].Content)
		assert.Empty(t, req.Tools)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  APT looks strong. "}}]}`))
	}))
	defer srv.Close()

	out, err := newTestOracle(srv.URL).Complete(context.Background(), models.Prompt{
		System: "you are an analyst", Input: "how is APT?", Model: "large", Platform: "qwen",
	})
	require.NoError(t, err)
	assert.Equal(t, "APT looks strong.", out)
}

func TestCallTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "required", req["tool_choice"])
		tools := req["tools"].([]interface{})
		require.Len(t, tools, 1)
		fn := tools[0].(map[string]interface{})["function"].(map[string]interface{})
		assert.Equal(t, "adjust_portfolio", fn["name"])

		_, _ = w.Write([]byte(`{"choices":[{"message":{"tool_calls":[{"type":"function","function":{"name":"adjust_portfolio","arguments":"{\"APT_weight\":60}"}}]}}]}`))
	}))
	defer srv.Close()

	call, err := newTestOracle(srv.URL).CallTool(context.Background(),
		models.Prompt{Input: "rebalance", Model: "large", Platform: "qwen"},
		models.ToolSpec{Name: "adjust_portfolio", Parameters: map[string]interface{}{"type": "object"}})
	require.NoError(t, err)
	assert.Equal(t, "adjust_portfolio", call.Name)
	assert.JSONEq(t, `{"APT_weight":60}`, string(call.Arguments))
}

func TestCallToolWithoutToolCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"I would hold."}}]}`))
	}))
	defer srv.Close()

	_, err := newTestOracle(srv.URL).CallTool(context.Background(),
		models.Prompt{Model: "large", Platform: "qwen"}, models.ToolSpec{Name: "adjust_portfolio"})
	assert.True(t, errors.Is(err, ErrNoToolCall))
}

func TestCallToolRejectsSeveralCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"tool_calls":[` +
			`{"type":"function","function":{"name":"adjust_portfolio","arguments":"{\"apt_weight\":60}"}},` +
			`{"type":"function","function":{"name":"adjust_portfolio","arguments":"{\"apt_weight\":20}"}}]}}]}`))
	}))
	defer srv.Close()

	call, err := newTestOracle(srv.URL).CallTool(context.Background(),
		models.Prompt{Model: "large", Platform: "qwen"}, models.ToolSpec{Name: "adjust_portfolio"})
	assert.Nil(t, call)
	assert.True(t, errors.Is(err, ErrMultipleToolCalls))
}

func TestUnknownPlatformAndModel(t *testing.T) {
	c := newTestOracle("http://unused")
	_, err := c.Complete(context.Background(), models.Prompt{Platform: "atoma", Model: "large"})
	assert.True(t, errors.Is(err, ErrUnknownPlatform))

	_, err = c.Complete(context.Background(), models.Prompt{Platform: "qwen", Model: "xlarge"})
	assert.True(t, errors.Is(err, ErrUnknownModel))
}

func TestEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestOracle(srv.URL).Complete(context.Background(), models.Prompt{Platform: "qwen", Model: "large"})
	assert.True(t, errors.Is(err, ErrEmptyResponse))
}
