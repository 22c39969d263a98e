package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/agent-cards/internal/config"
	"github.com/calvinalkan/agent-cards/internal/llm"
)

func Test_OpenAI_Sends_Instructions_As_System_Message(t *testing.T) {
	t.Parallel()

	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"commands\":[\"/close\"]}"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	chat, err := llm.NewOpenAI("test-key", "gpt-test", server.URL+"/v1")
	require.NoError(t, err)

	reply, err := chat.Ask(t.Context(), "be strict", "close")
	require.NoError(t, err)
	require.JSONEq(t, `{"commands":["/close"]}`, reply)

	require.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 2)
	require.Equal(t, "system", got.Messages[0].Role)
	require.Equal(t, "be strict", got.Messages[0].Content)
	require.Equal(t, "user", got.Messages[1].Role)
	require.Equal(t, "close", got.Messages[1].Content)
}

func Test_OpenAI_Returns_Error_When_No_Choices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	chat, err := llm.NewOpenAI("test-key", "", server.URL+"/v1")
	require.NoError(t, err)

	_, err = chat.Ask(t.Context(), "x", "y")
	if !errors.Is(err, llm.ErrEmptyResponse) {
		t.Fatalf("err = %v, want ErrEmptyResponse", err)
	}
}

func Test_New_Fails_When_Key_Or_Provider_Is_Missing(t *testing.T) {
	t.Parallel()

	_, err := llm.New(t.Context(), config.LLM{Provider: "openai"})
	require.ErrorIs(t, err, llm.ErrNoAPIKey)

	_, err = llm.New(t.Context(), config.LLM{Provider: "gemini"})
	require.ErrorIs(t, err, llm.ErrNoAPIKey)

	_, err = llm.New(t.Context(), config.LLM{Provider: "parrot", APIKey: "k"})
	require.ErrorIs(t, err, config.ErrUnknownLLM)
}

func Test_ChatFunc_Adapts_Function(t *testing.T) {
	t.Parallel()

	var chat llm.Chat = llm.ChatFunc(func(_ context.Context, instructions, query string) (string, error) {
		return instructions + ":" + query, nil
	})

	reply, err := chat.Ask(t.Context(), "a", "b")
	require.NoError(t, err)
	require.Equal(t, "a:b", reply)
}
