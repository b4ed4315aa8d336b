package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/azurellm/pkg/config"
	"github.com/soundprediction/azurellm/pkg/metrics"
	"github.com/soundprediction/azurellm/pkg/server/handlers"
	"github.com/soundprediction/azurellm/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func (stubEmbedder) EmbedSingle(context.Context, string) ([]float32, error) { return []float32{0}, nil }
func (stubEmbedder) Dimensions() int                                        { return 1 }
func (stubEmbedder) Close() error                                           { return nil }

type stubCompleter struct {
	ctx context.Context
	err error
}

func (s *stubCompleter) Complete(ctx context.Context, messages []types.Message, functions []types.FunctionDefinition) (*types.Completion, error) {
	s.ctx = ctx
	if s.err != nil {
		return nil, s.err
	}
	return &types.Completion{Result: "hello"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host: "localhost",
			Port: 8080,
			Mode: gin.TestMode,
		},
	}
}

func do(s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestSetup(t *testing.T) {
	s := New(testConfig(), Dependencies{})
	s.Setup()

	require.NotNil(t, s.router)
	require.NotNil(t, s.server)
	assert.Equal(t, "localhost:8080", s.server.Addr)

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/live", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(s, http.MethodGet, "/ready", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/api/v1/providers", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/metrics", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodPost, "/api/v1/chat", "{}", nil).Code)
}

func TestRoutes(t *testing.T) {
	completer := &stubCompleter{}
	m := metrics.New(metrics.Config{Namespace: "test"})
	m.ObserveChat(metrics.OutcomeSuccess)

	s := New(testConfig(), Dependencies{
		Embedder:       stubEmbedder{},
		EmbeddingModel: "embed-prod",
		Completer:      completer,
		Metrics:        m,
		Checks: map[string]handlers.Check{
			"embedder": func(context.Context) error { return nil },
		},
	})
	s.Setup()

	w := do(s, http.MethodPost, "/api/v1/embeddings", `{"input":["a","b"]}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var embedResp struct {
		Model string `json:"model"`
		Data  []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &embedResp))
	assert.Equal(t, "embed-prod", embedResp.Model)
	require.Len(t, embedResp.Data, 2)
	assert.Equal(t, []float32{1}, embedResp.Data[1].Embedding)

	w = do(s, http.MethodPost, "/api/v1/chat", `{"messages":[{"role":"user","content":"hi"}]}`,
		map[string]string{"X-User-ID": "user-1", "X-Session-ID": "session-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result":"hello","cost":0}`, w.Body.String())
	assert.Equal(t, "user-1", completer.ctx.Value(types.ContextKeyUserID))
	assert.Equal(t, "session-1", completer.ctx.Value(types.ContextKeySessionID))
	assert.Equal(t, "server", completer.ctx.Value(types.ContextKeyRequestSource))

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/ready", "", nil).Code)

	w = do(s, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_chat_requests_total{outcome="success"} 1`)
}

func TestRequestID(t *testing.T) {
	s := New(testConfig(), Dependencies{})
	s.Setup()

	w := do(s, http.MethodGet, "/health", "", nil)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	w = do(s, http.MethodGet, "/health", "", map[string]string{RequestIDHeader: "req-42"})
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	s := New(testConfig(), Dependencies{})
	s.Setup()

	w := do(s, http.MethodOptions, "/api/v1/chat", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := New(testConfig(), Dependencies{
		Completer: &stubCompleter{err: errors.New("boom")},
		Logger:    zap.New(core),
	})
	s.Setup()

	do(s, http.MethodGet, "/health", "", nil)
	w := do(s, http.MethodPost, "/api/v1/chat", `{"messages":[{"role":"user","content":"hi"}]}`,
		map[string]string{"X-User-ID": "user-1"})
	require.Equal(t, http.StatusInternalServerError, w.Code)

	handled := logs.FilterMessage("Request handled").All()
	require.Len(t, handled, 1)
	assert.Equal(t, "/health", handled[0].ContextMap()["path"])

	failed := logs.FilterMessage("Request failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
	fields := failed[0].ContextMap()
	assert.Equal(t, "boom", fields["error"])
	assert.Equal(t, "user-1", fields["user_id"])
	assert.Equal(t, "server", fields["request_source"])
}
