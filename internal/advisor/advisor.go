package advisor

import (
	"context"
	"errors"
	"fmt"

	"cot-sentinel/internal/domain"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrEmptyReply = errors.New("no choices in LLM response")

// LLMClient abstracts the OpenAI chat completions API for testability.
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// Narrator explains a market's current COT reading in plain language.
type Narrator struct {
	tracer trace.Tracer
	llm    LLMClient
	model  string
}

func NewNarrator(tracer trace.Tracer, llm LLMClient, model string) *Narrator {
	return &Narrator{tracer: tracer, llm: llm, model: model}
}

func (n *Narrator) Narrate(ctx context.Context, market domain.Market, current domain.Score, analysis domain.MarketAnalysis) (string, error) {
	ctx, span := n.tracer.Start(ctx, "advisor.narrate")
	defer span.End()
	span.SetAttributes(
		attribute.String("market.symbol", market.Symbol),
		attribute.String("llm.model", n.model),
	)

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(FormatScoreContext(market, current, analysis)),
	}

	completion, err := n.llm.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model:    n.model,
		Messages: messages,
	})
	if err != nil {
		span.RecordError(err)
		log.Warn().Err(err).Str("market", market.Symbol).Msg("narrative request failed")
		return "", fmt.Errorf("narrator unavailable: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmptyReply
	}

	reply := completion.Choices[0].Message.Content
	span.SetAttributes(attribute.Int("llm.reply_length", len(reply)))
	return reply, nil
}

// openaiClient wraps the official SDK's chat completions service.
type openaiClient struct {
	client openai.Client
}

func NewOpenAIClient(apiKey string) LLMClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openaiClient{client: client}
}

func (c *openaiClient) CreateChatCompletion(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
