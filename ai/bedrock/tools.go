package bedrock

import "github.com/modelcontextprotocol/go-sdk/jsonschema"

// Tool is an output tool the model is forced to call; its input schema is the
// shape of the answer.
type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

const (
	toolSubmitBudget  = "submit_budget"
	toolSubmitRecipes = "submit_recipes"
)

func budgetTool() Tool {
	return Tool{
		Name:        toolSubmitBudget,
		Description: "Submits the budget split of the event across its meal categories.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"allocations": {
					Type: "array",
					Items: &jsonschema.Schema{
						Type: "object",
						Properties: map[string]*jsonschema.Schema{
							"category":         {Type: "string", Description: "One of the event's meal categories."},
							"suggested_budget": {Type: "number", Description: "Amount in the event's currency."},
							"percentage":       {Type: "number", Description: "Share of the total budget, 0 to 100."},
							"reasoning":        {Type: "string"},
						},
						Required: []string{"category", "suggested_budget", "percentage"},
					},
				},
				"recommendations": {
					Type:  "array",
					Items: &jsonschema.Schema{Type: "string"},
				},
			},
			Required: []string{"allocations"},
		},
	}
}

func recipesTool() Tool {
	return Tool{
		Name:        toolSubmitRecipes,
		Description: "Submits the generated recipes for one meal category.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"recipes": {
					Type: "array",
					Items: &jsonschema.Schema{
						Type: "object",
						Properties: map[string]*jsonschema.Schema{
							"name":              {Type: "string"},
							"description":       {Type: "string"},
							"cuisine":           {Type: "string"},
							"estimated_cost":    {Type: "number", Description: "Total cost for all servings."},
							"prep_time_minutes": {Type: "integer"},
							"servings":          {Type: "integer"},
							"ingredients":       {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
							"dietary_tags":      {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
						},
						Required: []string{"name", "ingredients"},
					},
				},
			},
			Required: []string{"recipes"},
		},
	}
}
