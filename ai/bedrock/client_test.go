package bedrock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealwizard"
)

// mockBedrockClient implements bedrockRuntimeClient for testing
type mockBedrockClient struct {
	response *bedrockruntime.ConverseOutput
	err      error
	input    *bedrockruntime.ConverseInput
}

func (m *mockBedrockClient) Converse(ctx context.Context, input *bedrockruntime.ConverseInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.input = input
	return m.response, m.err
}

func toolUseOutput(name string, input map[string]any) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		StopReason: "tool_use",
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{
				Role: types.ConversationRoleAssistant,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
						ToolUseId: aws.String("tool-1"),
						Name:      aws.String(name),
						Input:     document.NewLazyDocument(input),
					}},
				},
			},
		},
		Usage: &types.TokenUsage{InputTokens: aws.Int32(120), OutputTokens: aws.Int32(80)},
	}
}

func testEvent() mealwizard.Event {
	return mealwizard.Event{
		ID:                 "ev-1",
		Name:               "Team offsite",
		Budget:             400,
		Servings:           10,
		SelectedCategories: []mealwizard.MealCategory{mealwizard.Lunch, mealwizard.Dinner, mealwizard.Snacks},
	}
}

func testParticipants() []mealwizard.Participant {
	return []mealwizard.Participant{
		{ID: "p1", HealthProfile: &mealwizard.HealthProfile{DietaryRestrictions: []string{"vegan"}, Allergies: []string{"tree nuts"}}},
		{ID: "p2", HealthProfile: &mealwizard.HealthProfile{DietaryRestrictions: []string{"vegan"}}},
	}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		input    Options
		expected Options
	}{
		{
			name:  "empty options uses defaults",
			input: Options{},
			expected: Options{
				ModelID:     defaultModelID,
				MaxTokens:   defaultMaxTokens,
				Temperature: defaultTemperature,
				TopP:        defaultTopP,
			},
		},
		{
			name:     "custom options preserved",
			input:    Options{ModelID: "custom-model", MaxTokens: 4096, Temperature: 0.7, TopP: 0.8},
			expected: Options{ModelID: "custom-model", MaxTokens: 4096, Temperature: 0.7, TopP: 0.8},
		},
		{
			name:  "from model config",
			input: OptionsFrom(mealwizard.ModelConfig{ModelID: "m", MaxTokens: 512}),
			expected: Options{
				ModelID:     "m",
				MaxTokens:   512,
				Temperature: defaultTemperature,
				TopP:        defaultTopP,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &mockBedrockClient{}
			client := NewClient(mockClient, tt.input)

			assert.Equal(t, tt.expected, client.opts)
			assert.Equal(t, mockClient, client.brc)
		})
	}
}

func TestSuggestBudget(t *testing.T) {
	mockClient := &mockBedrockClient{response: toolUseOutput(toolSubmitBudget, map[string]any{
		"allocations": []any{
			map[string]any{"category": "lunch", "suggested_budget": 160.0, "percentage": 40.0, "reasoning": "Main meal"},
			map[string]any{"category": "dinner", "suggested_budget": 240.0, "percentage": 60.0},
		},
		"recommendations": []any{"Buy produce at the market"},
	})}
	client := NewClient(mockClient, Options{})

	got, err := client.SuggestBudget(context.Background(), testEvent(), testParticipants())
	require.NoError(t, err)

	assert.Equal(t, mealwizard.BudgetSuggestion{
		Allocations: []mealwizard.SuggestedAllocation{
			{Category: mealwizard.Lunch, SuggestedBudget: 160, Percentage: 40, Reasoning: "Main meal"},
			{Category: mealwizard.Dinner, SuggestedBudget: 240, Percentage: 60},
		},
		Recommendations: []string{"Buy produce at the market"},
	}, got)

	in := mockClient.input
	require.NotNil(t, in)
	assert.Equal(t, defaultModelID, aws.ToString(in.ModelId))
	choice, ok := in.ToolConfig.ToolChoice.(*types.ToolChoiceMemberTool)
	require.True(t, ok, "tool choice must force the output tool")
	assert.Equal(t, toolSubmitBudget, aws.ToString(choice.Value.Name))

	user := in.Messages[0].Content[0].(*types.ContentBlockMemberText).Value
	assert.Contains(t, user, "Total budget: 400.00")
	assert.Contains(t, user, "Meal categories: lunch, dinner")
	assert.NotContains(t, user, "snacks")
	assert.Contains(t, user, "Dietary restrictions: vegan (2)")
	assert.Contains(t, user, "Allergies: tree nuts (1)")
}

func TestGenerateRecipes(t *testing.T) {
	mockClient := &mockBedrockClient{response: toolUseOutput(toolSubmitRecipes, map[string]any{
		"recipes": []any{
			map[string]any{"id": "model-made-up", "name": "Lentil soup", "estimated_cost": 35.5, "prep_time_minutes": 40.0, "ingredients": []any{"lentils", "carrot"}},
			map[string]any{"name": "Chickpea salad", "ingredients": `["chickpeas", "cucumber"]`},
			map[string]any{"name": "Extra", "ingredients": []any{"x"}},
		},
	})}
	client := NewClient(mockClient, Options{})

	budget := 120.0
	req := mealwizard.GenerateRequest{
		Category:       mealwizard.Lunch,
		Count:          2,
		Budget:         &budget,
		Cuisines:       []string{"mediterranean"},
		SearchTerm:     "soup",
		ConsiderHealth: true,
	}
	got, err := client.GenerateRecipes(context.Background(), testEvent(), req, testParticipants())
	require.NoError(t, err)

	require.Len(t, got, 2, "extra recipes are trimmed to the requested count")
	assert.Equal(t, mealwizard.RawRecipe{
		Name:            "Lentil soup",
		EstimatedCost:   35.5,
		PrepTimeMinutes: 40,
		Ingredients:     []string{"lentils", "carrot"},
	}, got[0])
	assert.Equal(t, []string{"chickpeas", "cucumber"}, got[1].Ingredients)

	user := mockClient.input.Messages[0].Content[0].(*types.ContentBlockMemberText).Value
	assert.Contains(t, user, "Meal category: lunch")
	assert.Contains(t, user, "Category budget: 120.00")
	assert.Contains(t, user, "Preferred cuisines: mediterranean")
	assert.Contains(t, user, "looking for: soup")
	assert.Contains(t, user, "Participants considered: 2")
}

func TestGenerateRecipesWithoutHealth(t *testing.T) {
	mockClient := &mockBedrockClient{response: toolUseOutput(toolSubmitRecipes, map[string]any{"recipes": []any{}})}
	client := NewClient(mockClient, Options{})

	req := mealwizard.GenerateRequest{Category: mealwizard.Dinner, Count: 3}
	got, err := client.GenerateRecipes(context.Background(), testEvent(), req, testParticipants())
	require.NoError(t, err)
	assert.Empty(t, got)

	user := mockClient.input.Messages[0].Content[0].(*types.ContentBlockMemberText).Value
	assert.NotContains(t, user, "Participants considered")
	assert.NotContains(t, user, "Category budget")
}

func TestInvokeErrors(t *testing.T) {
	tests := []struct {
		name          string
		response      *bedrockruntime.ConverseOutput
		err           error
		expectedError string
	}{
		{
			name:          "converse failure",
			err:           errors.New("throttled"),
			expectedError: "bedrock converse: throttled",
		},
		{
			name:          "max tokens",
			response:      &bedrockruntime.ConverseOutput{StopReason: "max_tokens"},
			expectedError: "MaxTokens limit",
		},
		{
			name:          "content filtered",
			response:      &bedrockruntime.ConverseOutput{StopReason: "content_filtered"},
			expectedError: "safety filters",
		},
		{
			name: "text instead of tool use",
			response: &bedrockruntime.ConverseOutput{
				StopReason: "end_turn",
				Output: &types.ConverseOutputMemberMessage{Value: types.Message{
					Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "Here is your budget"}},
				}},
			},
			expectedError: ErrNoToolUse.Error(),
		},
		{
			name:          "wrong tool",
			response:      toolUseOutput(toolSubmitRecipes, map[string]any{"recipes": []any{}}),
			expectedError: "did not call the output tool: submit_budget",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(&mockBedrockClient{response: tt.response, err: tt.err}, Options{})

			_, err := client.SuggestBudget(context.Background(), testEvent(), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestBuildToolSpec(t *testing.T) {
	for _, tool := range []Tool{budgetTool(), recipesTool()} {
		spec, err := buildToolSpec(tool)
		require.NoError(t, err)
		assert.Equal(t, tool.Name, aws.ToString(spec.Name))
		assert.IsType(t, &types.ToolInputSchemaMemberJson{}, spec.InputSchema)
	}
}

func TestNormalizeInput(t *testing.T) {
	in := map[string]any{
		"list":   `["a", "b"]`,
		"object": `{"k": 1}`,
		"plain":  "[Vegan] curry",
		"nested": []any{map[string]any{"n": 2.0}},
	}
	out := normalizeInput(in).(map[string]any)

	assert.Equal(t, []any{"a", "b"}, out["list"])
	assert.Equal(t, map[string]any{"k": 1.0}, out["object"])
	assert.Equal(t, "[Vegan] curry", out["plain"])
	assert.Equal(t, []any{map[string]any{"n": 2.0}}, out["nested"])
}
