package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"

	"github.com/kaptinlin/jsonrepair"
	"github.com/sashabaranov/go-openai"
	"github.com/soundprediction/azurellm/pkg/azure"
	"github.com/soundprediction/azurellm/pkg/metrics"
	"github.com/soundprediction/azurellm/pkg/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/soundprediction/azurellm/pkg/nlp"

// DefaultMaxFunctionCallRepairs is how many times the model is re-asked after
// returning function call arguments that are not valid JSON.
const DefaultMaxFunctionCallRepairs = 2

// ChatAPI is the subset of the go-openai client used for chat completions.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatConfig holds request settings shared by chat providers.
type ChatConfig struct {
	Model       string
	Temperature float32
	MaxTokens   int
	// MaxFunctionCallRepairs bounds re-asks for malformed arguments. Negative
	// values disable re-asking; zero takes the default.
	MaxFunctionCallRepairs int
}

// ChatProvider implements Completer over an OpenAI-style chat API. The same
// type serves Azure deployments and the public OpenAI API; only construction
// differs.
type ChatProvider struct {
	id      ProviderID
	api     ChatAPI
	config  ChatConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// ProviderOption configures a ChatProvider.
type ProviderOption func(*ChatProvider)

// WithProviderMetrics records outcomes on m.
func WithProviderMetrics(m *metrics.Metrics) ProviderOption {
	return func(p *ChatProvider) {
		p.metrics = m
	}
}

// NewChatProvider builds a provider on any ChatAPI.
func NewChatProvider(id ProviderID, api ChatAPI, cfg ChatConfig, logger *zap.Logger, opts ...ProviderOption) *ChatProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFunctionCallRepairs == 0 {
		cfg.MaxFunctionCallRepairs = DefaultMaxFunctionCallRepairs
	}
	if cfg.MaxFunctionCallRepairs < 0 {
		cfg.MaxFunctionCallRepairs = 0
	}
	p := &ChatProvider{
		id:     id,
		api:    api,
		config: cfg,
		logger: logger.With(zap.String("provider", string(id))),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewAzureProvider builds a provider for the client's chat deployment. An
// empty cfg.Model takes the deployment from the client settings.
func NewAzureProvider(client *azure.Client, cfg ChatConfig, logger *zap.Logger, opts ...ProviderOption) *ChatProvider {
	if cfg.Model == "" {
		cfg.Model = client.Settings().ChatDeployment
	}
	return NewChatProvider(ProviderAzure, client.OpenAI(), cfg, logger, opts...)
}

// NewOpenAIProvider builds a provider for the OpenAI API or a compatible
// service at baseURL.
func NewOpenAIProvider(apiKey, baseURL string, httpClient azure.HTTPDoer, cfg ChatConfig, logger *zap.Logger, opts ...ProviderOption) (*ChatProvider, error) {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		if err := validateBaseURL(baseURL); err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		clientConfig.BaseURL = baseURL
		if !hasAPIPath(baseURL) {
			clientConfig.BaseURL = baseURL + "/v1"
		}
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	return NewChatProvider(ProviderOpenAI, openai.NewClientWithConfig(clientConfig), cfg, logger, opts...), nil
}

// ID returns the provider identifier.
func (p *ChatProvider) ID() ProviderID {
	return p.id
}

// Model returns the model or deployment requests are sent to.
func (p *ChatProvider) Model() string {
	return p.config.Model
}

// Complete implements Completer. Only the first choice is used and the cost
// is always 0.
//
// When the model returns function call arguments that do not parse, the
// parse error is sent back as a function message and the model is asked
// again, up to MaxFunctionCallRepairs times. After that the arguments are
// passed through a JSON repair step once before giving up with a
// *FunctionCallError.
func (p *ChatProvider) Complete(ctx context.Context, messages []types.Message, functions []types.FunctionDefinition) (*types.Completion, error) {
	if p.config.Model == "" {
		return nil, azure.ErrNoModel("set " + azure.EnvChatModel)
	}

	ctx, span := p.tracer.Start(ctx, "nlp.Complete", trace.WithAttributes(
		attribute.String("chat.provider", string(p.id)),
		attribute.String("chat.model", p.config.Model),
		attribute.Int("chat.messages", len(messages)),
		attribute.Int("chat.functions", len(functions)),
	))
	defer span.End()

	history := slices.Clone(messages)
	usage := &types.TokenUsage{}

	for attempt := 0; ; attempt++ {
		resp, err := p.api.CreateChatCompletion(ctx, p.buildRequest(history, functions))
		if err != nil {
			classified := ClassifyError(err)
			span.RecordError(classified)
			span.SetStatus(codes.Error, classified.Error())
			p.metrics.ObserveChat(outcomeFor(classified))
			return nil, classified
		}
		addUsage(usage, resp.Usage)

		if len(resp.Choices) == 0 {
			p.metrics.ObserveChat(metrics.OutcomeFailure)
			return nil, ErrEmptyResponse
		}
		message := resp.Choices[0].Message

		if message.FunctionCall == nil {
			p.metrics.ObserveChat(metrics.OutcomeSuccess)
			return &types.Completion{
				Result:     message.Content,
				Model:      resp.Model,
				TokensUsed: usage,
			}, nil
		}

		call := message.FunctionCall
		args, parseErr := parseArguments(call.Arguments)
		if parseErr == nil {
			p.metrics.ObserveChat(metrics.OutcomeFunctionCall)
			return functionCompletion(call.Name, args, resp.Model, usage), nil
		}

		if attempt >= p.config.MaxFunctionCallRepairs {
			if repaired, err := repairArguments(call.Arguments); err == nil {
				p.logger.Warn("Repaired malformed function call arguments",
					zap.String("function", call.Name), zap.Int("attempts", attempt+1))
				p.metrics.ObserveChat(metrics.OutcomeFunctionCall)
				return functionCompletion(call.Name, repaired, resp.Model, usage), nil
			}
			fcErr := &FunctionCallError{Name: call.Name, Arguments: call.Arguments, Attempts: attempt + 1, Err: parseErr}
			span.RecordError(fcErr)
			span.SetStatus(codes.Error, fcErr.Error())
			p.metrics.ObserveChat(metrics.OutcomeFailure)
			return nil, fcErr
		}

		p.logger.Warn("Function call arguments are not valid JSON, asking again",
			zap.String("function", call.Name),
			zap.Int("attempt", attempt+1),
			zap.Error(parseErr))
		p.metrics.ObserveRepair()
		span.AddEvent("function_call_repair", trace.WithAttributes(attribute.Int("attempt", attempt+1)))

		history = append(history, types.Message{
			Role:         types.RoleFunction,
			Name:         call.Name,
			Content:      parseErr.Error(),
			FunctionCall: &types.FunctionCall{Name: call.Name, Arguments: call.Arguments},
		})
	}
}

func (p *ChatProvider) buildRequest(messages []types.Message, functions []types.FunctionDefinition) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       p.config.Model,
		Messages:    toOpenAIMessages(messages),
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	}
	if len(functions) > 0 {
		defs := make([]openai.FunctionDefinition, len(functions))
		for i, fn := range functions {
			defs[i] = openai.FunctionDefinition{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  fn.Parameters,
			}
		}
		req.Functions = defs
	}
	return req
}

func toOpenAIMessages(messages []types.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
			Name:    msg.Name,
		}
		if msg.FunctionCall != nil {
			out[i].FunctionCall = &openai.FunctionCall{
				Name:      msg.FunctionCall.Name,
				Arguments: msg.FunctionCall.Arguments,
			}
		}
	}
	return out
}

func parseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}

func repairArguments(raw string) (map[string]any, error) {
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, err
	}
	return parseArguments(repaired)
}

func functionCompletion(name string, args map[string]any, model string, usage *types.TokenUsage) *types.Completion {
	return &types.Completion{
		FunctionCall: &types.ParsedFunctionCall{Name: name, Arguments: args},
		Model:        model,
		TokensUsed:   usage,
	}
}

func addUsage(total *types.TokenUsage, u openai.Usage) {
	total.PromptTokens += u.PromptTokens
	total.CompletionTokens += u.CompletionTokens
	total.TotalTokens += u.TotalTokens
}

func outcomeFor(err error) string {
	switch err.(type) {
	case *AuthenticationError:
		return metrics.OutcomeAuth
	case *RetryError:
		return metrics.OutcomeRetryable
	default:
		return metrics.OutcomeFailure
	}
}

// validateBaseURL validates the base URL format.
func validateBaseURL(baseURL string) error {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid baseURL format: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("baseURL must use http:// or https:// scheme")
	}
	return nil
}

// hasAPIPath checks if the base URL already includes an API path component.
func hasAPIPath(baseURL string) bool {
	commonPaths := []string{"/v1", "/api", "/v1/", "/api/"}
	for _, path := range commonPaths {
		if len(baseURL) >= len(path) && baseURL[len(baseURL)-len(path):] == path {
			return true
		}
	}
	return false
}
