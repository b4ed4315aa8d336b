package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/soundprediction/azurellm/pkg/azure"
	"github.com/soundprediction/azurellm/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockEmbeddingsAPI struct {
	mock.Mock
}

func (m *mockEmbeddingsAPI) CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	req := conv.Convert()
	args := m.Called(req.Input)
	return args.Get(0).(openai.EmbeddingResponse), args.Error(1)
}

// fakeEmbeddingsAPI answers every group through fn and records the inputs.
type fakeEmbeddingsAPI struct {
	fn     func(ctx context.Context, input []string) (openai.EmbeddingResponse, error)
	calls  atomic.Int32
	mu     sync.Mutex
	groups [][]string
}

func (f *fakeEmbeddingsAPI) CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	input := conv.Convert().Input.([]string)
	f.calls.Add(1)
	f.mu.Lock()
	f.groups = append(f.groups, input)
	f.mu.Unlock()
	return f.fn(ctx, input)
}

// vectorFor encodes the text so results can be traced back to inputs.
func vectorFor(text string) []float32 {
	var n float32
	for _, r := range text {
		n = n*31 + float32(r)
	}
	return []float32{n, float32(len(text))}
}

func echoResponse(input []string) openai.EmbeddingResponse {
	data := make([]openai.Embedding, len(input))
	for i, text := range input {
		data[i] = openai.Embedding{Object: "embedding", Index: i, Embedding: vectorFor(text)}
	}
	return openai.EmbeddingResponse{Object: "list", Data: data}
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("text-%02d", i)
	}
	return out
}

func TestAzureEmbedder_TwoTexts(t *testing.T) {
	api := &mockEmbeddingsAPI{}
	api.On("CreateEmbeddings", []string{"a", "b"}).Return(openai.EmbeddingResponse{
		Data: []openai.Embedding{
			{Index: 0, Embedding: []float32{0.1, 0.2}},
			{Index: 1, Embedding: []float32{0.3, 0.4}},
		},
	}, nil).Once()

	e := NewAzureEmbedderWithAPI(api, Config{Model: "embed"}, nil)
	vectors, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, vectors)
	api.AssertExpectations(t)
}

func TestAzureEmbedder_EmptyInput(t *testing.T) {
	api := &mockEmbeddingsAPI{}
	e := NewAzureEmbedderWithAPI(api, Config{Model: "embed"}, nil)

	vectors, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, vectors)
	assert.Empty(t, vectors)
	api.AssertNotCalled(t, "CreateEmbeddings", mock.Anything)
}

func TestAzureEmbedder_NoModel(t *testing.T) {
	api := &mockEmbeddingsAPI{}
	e := NewAzureEmbedderWithAPI(api, Config{}, nil)

	_, err := e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, &azure.ConfigurationError{})
	assert.Contains(t, err.Error(), "no model configured")
	api.AssertNotCalled(t, "CreateEmbeddings", mock.Anything)
}

func TestAzureEmbedder_GroupsAndOrder(t *testing.T) {
	tests := []struct {
		name       string
		inputs     int
		wantGroups int
	}{
		{name: "one", inputs: 1, wantGroups: 1},
		{name: "exactly one group", inputs: 16, wantGroups: 1},
		{name: "sixteen plus one", inputs: 17, wantGroups: 2},
		{name: "three groups", inputs: 40, wantGroups: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeEmbeddingsAPI{fn: func(_ context.Context, input []string) (openai.EmbeddingResponse, error) {
				return echoResponse(input), nil
			}}
			e := NewAzureEmbedderWithAPI(api, Config{Model: "embed"}, nil)

			in := texts(tt.inputs)
			vectors, err := e.Embed(context.Background(), in)
			require.NoError(t, err)
			require.Len(t, vectors, tt.inputs)
			for i, text := range in {
				assert.Equal(t, vectorFor(text), vectors[i], "vector %d out of order", i)
			}
			assert.Equal(t, int32(tt.wantGroups), api.calls.Load())
			for _, group := range api.groups {
				assert.LessOrEqual(t, len(group), DefaultBatchSize)
			}
		})
	}
}

func TestAzureEmbedder_SeventeenSplitsSixteenAndOne(t *testing.T) {
	api := &fakeEmbeddingsAPI{fn: func(_ context.Context, input []string) (openai.EmbeddingResponse, error) {
		return echoResponse(input), nil
	}}
	e := NewAzureEmbedderWithAPI(api, Config{Model: "embed"}, nil)

	_, err := e.Embed(context.Background(), texts(17))
	require.NoError(t, err)

	sizes := []int{len(api.groups[0]), len(api.groups[1])}
	assert.ElementsMatch(t, []int{16, 1}, sizes)
}

func TestAzureEmbedder_UnorderedResponse(t *testing.T) {
	api := &mockEmbeddingsAPI{}
	api.On("CreateEmbeddings", []string{"x", "y", "z"}).Return(openai.EmbeddingResponse{
		Data: []openai.Embedding{
			{Index: 2, Embedding: []float32{3}},
			{Index: 0, Embedding: []float32{1}},
			{Index: 1, Embedding: []float32{2}},
		},
	}, nil)

	e := NewAzureEmbedderWithAPI(api, Config{Model: "embed"}, nil)
	vectors, err := e.Embed(context.Background(), []string{"x", "y", "z"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}, {3}}, vectors)
}

func TestAzureEmbedder_OneGroupFailsWholeCall(t *testing.T) {
	in := texts(17)
	api := &fakeEmbeddingsAPI{fn: func(_ context.Context, input []string) (openai.EmbeddingResponse, error) {
		if len(input) == 1 {
			return openai.EmbeddingResponse{}, &openai.APIError{Code: "429", Message: "Rate limit", HTTPStatusCode: 429}
		}
		return echoResponse(input), nil
	}}
	e := NewAzureEmbedderWithAPI(api, Config{Model: "embed"}, nil)

	vectors, err := e.Embed(context.Background(), in)
	require.Error(t, err)
	assert.Nil(t, vectors)
	assert.Equal(t, "Azure OpenAI Failed to embed: [429]: Rate limit", err.Error())
	assert.Equal(t, int32(2), api.calls.Load(), "all groups run to completion")

	var embErr *EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, 1, embErr.FailedGroups)
	assert.Equal(t, 2, embErr.TotalGroups)
	assert.ErrorIs(t, err, &EmbeddingError{})
}

func TestAzureEmbedder_DeduplicatesSignatures(t *testing.T) {
	in := texts(48)
	api := &fakeEmbeddingsAPI{fn: func(_ context.Context, input []string) (openai.EmbeddingResponse, error) {
		switch input[0] {
		case in[0], in[32]:
			return openai.EmbeddingResponse{}, &openai.APIError{Code: "429", Message: "Rate limit"}
		default:
			return openai.EmbeddingResponse{}, &openai.APIError{HTTPStatusCode: 500, Message: "Internal"}
		}
	}}
	e := NewAzureEmbedderWithAPI(api, Config{Model: "embed"}, nil)

	_, err := e.Embed(context.Background(), in)
	require.Error(t, err)

	var embErr *EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, []string{"[429]: Rate limit", "[500]: Internal"}, embErr.Signatures)
	assert.Equal(t, 3, embErr.FailedGroups)
	assert.Equal(t, "Azure OpenAI Failed to embed: [429]: Rate limit, [500]: Internal", err.Error())
}

func TestAzureEmbedder_MissingVector(t *testing.T) {
	api := &mockEmbeddingsAPI{}
	api.On("CreateEmbeddings", []string{"a", "b"}).Return(openai.EmbeddingResponse{
		Data: []openai.Embedding{
			{Index: 0, Embedding: []float32{0.1}},
			{Index: 1, Embedding: nil},
		},
	}, nil)

	e := NewAzureEmbedderWithAPI(api, Config{Model: "embed"}, nil)
	vectors, err := e.Embed(context.Background(), []string{"a", "b"})
	assert.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestAzureEmbedder_EmptyVectorCountsAsMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5]},{"object":"embedding","index":1,"embedding":[]}]}`))
	}))
	defer srv.Close()

	client, err := azure.NewClient(azure.Settings{Endpoint: srv.URL, APIKey: "k", EmbeddingDeployment: "embed"}, nil)
	require.NoError(t, err)

	vectors, err := NewAzureEmbedder(client, Config{}, nil).Embed(context.Background(), []string{"a", "b"})
	assert.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestAzureEmbedder_ShortResponseFailsGroup(t *testing.T) {
	api := &mockEmbeddingsAPI{}
	api.On("CreateEmbeddings", []string{"a", "b"}).Return(openai.EmbeddingResponse{
		Data: []openai.Embedding{{Index: 0, Embedding: []float32{0.1}}},
	}, nil)

	e := NewAzureEmbedderWithAPI(api, Config{Model: "embed"}, nil)
	_, err := e.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Equal(t, "Azure OpenAI Failed to embed: [failed_to_embed]: expected 2 embeddings, got 1", err.Error())
}

func TestAzureEmbedder_GroupTimeout(t *testing.T) {
	api := &fakeEmbeddingsAPI{fn: func(ctx context.Context, input []string) (openai.EmbeddingResponse, error) {
		if len(input) == 1 {
			<-ctx.Done()
			return openai.EmbeddingResponse{}, ctx.Err()
		}
		return echoResponse(input), nil
	}}
	e := NewAzureEmbedderWithAPI(api, Config{Model: "embed", GroupTimeout: 20 * time.Millisecond}, nil)

	start := time.Now()
	_, err := e.Embed(context.Background(), texts(17))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var embErr *EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, []string{"[timeout]: context deadline exceeded"}, embErr.Signatures)
}

func TestAzureEmbedder_Deadline(t *testing.T) {
	api := &fakeEmbeddingsAPI{fn: func(ctx context.Context, _ []string) (openai.EmbeddingResponse, error) {
		<-ctx.Done()
		return openai.EmbeddingResponse{}, ctx.Err()
	}}
	e := NewAzureEmbedderWithAPI(api, Config{Model: "embed", Deadline: 20 * time.Millisecond}, nil)

	_, err := e.Embed(context.Background(), texts(33))
	require.Error(t, err)
	var embErr *EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, 3, embErr.FailedGroups)
	assert.Len(t, embErr.Signatures, 1)
}

func TestAzureEmbedder_Idempotent(t *testing.T) {
	api := &fakeEmbeddingsAPI{fn: func(_ context.Context, input []string) (openai.EmbeddingResponse, error) {
		return echoResponse(input), nil
	}}
	e := NewAzureEmbedderWithAPI(api, Config{Model: "embed"}, nil)

	in := texts(20)
	first, err := e.Embed(context.Background(), in)
	require.NoError(t, err)
	second, err := e.Embed(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAzureEmbedder_LogsOncePerCall(t *testing.T) {
	api := &fakeEmbeddingsAPI{fn: func(_ context.Context, input []string) (openai.EmbeddingResponse, error) {
		return echoResponse(input), nil
	}}
	core, logs := observer.New(zap.InfoLevel)
	e := NewAzureEmbedderWithAPI(api, Config{Model: "embed"}, zap.New(core))

	_, err := e.Embed(context.Background(), texts(40))
	require.NoError(t, err)

	entries := logs.FilterMessage("Embedding chunks").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(40), entries[0].ContextMap()["chunks"])
}

func TestAzureEmbedder_Metrics(t *testing.T) {
	api := &fakeEmbeddingsAPI{fn: func(_ context.Context, input []string) (openai.EmbeddingResponse, error) {
		return echoResponse(input), nil
	}}
	m := metrics.New(metrics.Config{Namespace: "test"})
	e := NewAzureEmbedderWithAPI(api, Config{Model: "embed"}, nil, WithMetrics(m))

	_, err := e.Embed(context.Background(), texts(3))
	require.NoError(t, err)

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "test_embedding_requests_total" {
			found = true
			assert.Equal(t, 1.0, f.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}

func TestAzureEmbedder_EmbedSingle(t *testing.T) {
	api := &mockEmbeddingsAPI{}
	api.On("CreateEmbeddings", []string{"hello"}).Return(openai.EmbeddingResponse{
		Data: []openai.Embedding{{Index: 0, Embedding: []float32{0.5}}},
	}, nil).Once()
	api.On("CreateEmbeddings", []string{"nothing"}).Return(openai.EmbeddingResponse{
		Data: []openai.Embedding{{Index: 0}},
	}, nil).Once()

	e := NewAzureEmbedderWithAPI(api, Config{Model: "embed", Dimensions: 1}, nil)
	vec, err := e.EmbedSingle(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, vec)

	vec, err = e.EmbedSingle(context.Background(), "nothing")
	require.NoError(t, err)
	assert.NotNil(t, vec)
	assert.Empty(t, vec)

	assert.Equal(t, 1, e.Dimensions())
	assert.NoError(t, e.Close())
}

func TestAzureEmbedder_OverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/openai/deployments/missing/embeddings" {
			_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1,2]}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"DeploymentNotFound","message":"The API deployment for this resource does not exist."}}`))
	}))
	defer srv.Close()

	client, err := azure.NewClient(azure.Settings{
		Endpoint:            srv.URL,
		APIKey:              "key",
		EmbeddingDeployment: "text-embedding-3-small",
	}, nil)
	require.NoError(t, err)

	ok := NewAzureEmbedder(client, Config{}, nil)
	assert.Equal(t, "text-embedding-3-small", ok.Model())
	vec, err := ok.EmbedSingle(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)

	missing := NewAzureEmbedder(client, Config{Model: "missing"}, nil)
	_, err = missing.Embed(context.Background(), []string{"hi"})
	require.Error(t, err)
	assert.Equal(t,
		"Azure OpenAI Failed to embed: [DeploymentNotFound]: The API deployment for this resource does not exist.",
		err.Error())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantType    string
		wantMessage string
	}{
		{
			name:        "vendor code",
			err:         &openai.APIError{Code: "content_filter", Message: "filtered", HTTPStatusCode: 400},
			wantType:    "content_filter",
			wantMessage: "filtered",
		},
		{
			name:        "numeric vendor code",
			err:         &openai.APIError{Code: float64(429), Message: "slow down"},
			wantType:    "429",
			wantMessage: "slow down",
		},
		{
			name:        "status fallback",
			err:         &openai.APIError{HTTPStatusCode: 503, Message: "unavailable"},
			wantType:    "503",
			wantMessage: "unavailable",
		},
		{
			name:        "request error",
			err:         &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")},
			wantType:    "502",
			wantMessage: "bad gateway",
		},
		{
			name:        "wrapped vendor error",
			err:         fmt.Errorf("group 1: %w", &openai.APIError{Code: "x", Message: "y"}),
			wantType:    "x",
			wantMessage: "y",
		},
		{
			name:        "deadline",
			err:         fmt.Errorf("post: %w", context.DeadlineExceeded),
			wantType:    ErrorTypeTimeout,
			wantMessage: "post: context deadline exceeded",
		},
		{
			name:        "plain error",
			err:         errors.New("connection reset"),
			wantType:    ErrorTypeFailedToEmbed,
			wantMessage: "connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotMessage := Classify(tt.err)
			assert.Equal(t, tt.wantType, gotType)
			assert.Equal(t, tt.wantMessage, gotMessage)
		})
	}
}

func TestNewEmbeddingError_IgnoresNil(t *testing.T) {
	err := NewEmbeddingError([]error{nil, errors.New("a"), nil, errors.New("a"), errors.New("b")}, 5)
	assert.Equal(t, 3, err.FailedGroups)
	assert.Equal(t, 5, err.TotalGroups)
	assert.Equal(t, "Azure OpenAI Failed to embed: [failed_to_embed]: a, [failed_to_embed]: b", err.Error())
}
