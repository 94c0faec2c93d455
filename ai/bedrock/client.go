// Package bedrock is an AI backend on the Amazon Bedrock Converse API. Each
// call forces the model to answer through one output tool so the reply is
// structured JSON.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mealwizard"
)

const (
	// defaultModelID is an inference profile ID, not the foundation model's ID.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

	// Recipe lists with ingredients are long; 2k leaves room for ten recipes.
	defaultMaxTokens = 2048

	// Low temperature keeps the structured output consistent.
	defaultTemperature = 0.4

	defaultTopP = 0.9
)

var ErrNoToolUse = errors.New("model did not call the output tool")

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type Options struct {
	ModelID     string
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// OptionsFrom maps the model config onto client options.
func OptionsFrom(cfg mealwizard.ModelConfig) Options {
	return Options{
		ModelID:     cfg.ModelID,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
	}
}

type Client struct {
	brc    bedrockRuntimeClient
	opts   Options
	tracer trace.Tracer
}

func NewClient(brc bedrockRuntimeClient, opts Options) *Client {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	return &Client{
		brc:    brc,
		opts:   opts,
		tracer: otel.Tracer(mealwizard.TracerNameBedrock),
	}
}

// SuggestBudget asks the model for a budget split of the event's primary categories.
func (c *Client) SuggestBudget(ctx context.Context, ev mealwizard.Event, participants []mealwizard.Participant) (mealwizard.BudgetSuggestion, error) {
	var out mealwizard.BudgetSuggestion
	if err := c.invoke(ctx, budgetSystemPrompt, budgetPrompt(ev, participants), budgetTool(), &out); err != nil {
		return mealwizard.BudgetSuggestion{}, err
	}

	slog.Info("BEDROCK: Budget suggested", "event_id", ev.ID, "allocations", len(out.Allocations))
	return out, nil
}

// GenerateRecipes asks the model for recipes of one category. The returned
// recipes carry no id.
func (c *Client) GenerateRecipes(ctx context.Context, ev mealwizard.Event, req mealwizard.GenerateRequest, participants []mealwizard.Participant) ([]mealwizard.RawRecipe, error) {
	var out struct {
		Recipes []mealwizard.RawRecipe `json:"recipes"`
	}
	if err := c.invoke(ctx, recipesSystemPrompt, recipesPrompt(ev, req, participants), recipesTool(), &out); err != nil {
		return nil, err
	}

	if len(out.Recipes) > req.Count && req.Count > 0 {
		out.Recipes = out.Recipes[:req.Count]
	}
	for i := range out.Recipes {
		out.Recipes[i].ID = ""
	}

	slog.Info("BEDROCK: Recipes generated", "event_id", ev.ID, "category", string(req.Category), "count", len(out.Recipes))
	return out.Recipes, nil
}

// invoke runs one Converse call that must end in a call of tool and decodes
// the tool input into v.
func (c *Client) invoke(ctx context.Context, system, user string, tool Tool, v any) error {
	ctx, span := c.tracer.Start(ctx, "Client.invoke", trace.WithAttributes(
		attribute.String("tool", tool.Name),
		attribute.String("model_id", c.opts.ModelID),
	))
	defer span.End()

	spec, err := buildToolSpec(tool)
	if err != nil {
		return err
	}

	in := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.opts.ModelID),
		System:  []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: system}},
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: user}},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.opts.MaxTokens),
			Temperature: aws.Float32(c.opts.Temperature),
			TopP:        aws.Float32(c.opts.TopP),
		},
		ToolConfig: &types.ToolConfiguration{
			Tools: []types.Tool{&types.ToolMemberToolSpec{Value: spec}},
			ToolChoice: &types.ToolChoiceMemberTool{
				Value: types.SpecificToolChoice{Name: aws.String(tool.Name)},
			},
		},
	}

	slog.Info("BEDROCK: Invoking model", "tool", tool.Name, "prompt_len", len(user))

	out, err := c.brc.Converse(ctx, in)
	if err != nil {
		slog.Error("BEDROCK: Converse failed", "tool", tool.Name, "error", err)
		span.SetStatus(codes.Error, "converse failed")
		span.RecordError(err)
		return fmt.Errorf("bedrock converse: %w", err)
	}

	if out.Usage != nil {
		span.SetAttributes(
			attribute.Int("input_tokens", int(aws.ToInt32(out.Usage.InputTokens))),
			attribute.Int("output_tokens", int(aws.ToInt32(out.Usage.OutputTokens))),
		)
	}

	switch out.StopReason {
	case "max_tokens":
		slog.Warn("BEDROCK: Model hit MaxTokens limit", "max_tokens", c.opts.MaxTokens)
		return fmt.Errorf("model hit MaxTokens limit of %d", c.opts.MaxTokens)
	case "guardrail_intervened", "content_filtered":
		slog.Warn("BEDROCK: Model response blocked by Bedrock safety filters")
		return errors.New("model response blocked by Bedrock safety filters")
	}

	input, err := toolInput(out, tool.Name)
	if err != nil {
		span.SetStatus(codes.Error, "no tool use")
		return err
	}

	// Round-trip through JSON so struct tags apply.
	data, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal %s input: %w", tool.Name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s input: %w", tool.Name, err)
	}
	return nil
}

// toolInput returns the input of the first call of the named tool.
func toolInput(out *bedrockruntime.ConverseOutput, name string) (map[string]any, error) {
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return nil, ErrNoToolUse
	}

	for _, cb := range msg.Value.Content {
		tu, ok := cb.(*types.ContentBlockMemberToolUse)
		if !ok || tu == nil || aws.ToString(tu.Value.Name) != name {
			continue
		}

		var input map[string]any
		if err := tu.Value.Input.UnmarshalSmithyDocument(&input); err != nil {
			return nil, fmt.Errorf("failed to read %s input: %w", name, err)
		}
		return normalizeInput(input).(map[string]any), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoToolUse, name)
}

// normalizeInput turns document numbers into float64 and decodes arrays or
// objects the model sent as JSON strings.
func normalizeInput(val any) any {
	switch v := val.(type) {
	case interface{ Float64() (float64, error) }:
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v

	case string:
		s := strings.TrimSpace(v)
		if len(s) > 1 && (s[0] == '[' || s[0] == '{') {
			var decoded any
			if json.Unmarshal([]byte(s), &decoded) == nil {
				return normalizeInput(decoded)
			}
		}
		return v

	case []any:
		for i := range v {
			v[i] = normalizeInput(v[i])
		}
		return v

	case map[string]any:
		for key, val := range v {
			v[key] = normalizeInput(val)
		}
		return v

	default:
		return v
	}
}

// buildToolSpec constructs a ToolSpecification for a tool.
func buildToolSpec(t Tool) (types.ToolSpecification, error) {
	// The schema is marshalled first so its own MarshalJSON applies, then
	// handed to the document encoder as a plain map.
	schemaJSON, err := json.Marshal(t.InputSchema)
	if err != nil {
		return types.ToolSpecification{}, fmt.Errorf("failed to marshal tool schema for %s: %w", t.Name, err)
	}

	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return types.ToolSpecification{}, fmt.Errorf("failed to unmarshal tool schema for %s: %w", t.Name, err)
	}

	return types.ToolSpecification{
		Name:        aws.String(t.Name),
		Description: aws.String(t.Description),
		InputSchema: &types.ToolInputSchemaMemberJson{
			Value: document.NewLazyDocument(schemaMap),
		},
	}, nil
}
