package mealwizard

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type ModelConfig struct {
	ModelID     string  `env:"MODEL_ID,required"`
	MaxTokens   int32   `env:"MAX_TOKENS,default=2048"`
	Temperature float32 `env:"TEMPERATURE,default=0.4"`
	TopP        float32 `env:"TOP_P,default=0.9"`
}

// WizardConfig holds the planning session defaults.
type WizardConfig struct {
	BudgetStrategy     string   `env:"BUDGET_STRATEGY,default=manual" validate:"oneof=manual ai"`
	RecipesPerCategory int      `env:"RECIPES_PER_CATEGORY,default=3" validate:"min=1,max=10"`
	Cuisines           []string `env:"CUISINES"`
	ConsiderHealth     bool     `env:"CONSIDER_HEALTH,default=true"`
	AddOnItems         []string `env:"ADDON_ITEMS"`
	PicksPerCategory   int      `env:"PICKS_PER_CATEGORY,default=1" validate:"gte=0,lte=10"`
	Debug              bool     `env:"WIZARD_DEBUG"`
}

// Validate checks the decoded values against their allowed ranges.
func (c WizardConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid wizard config: %w", err)
	}
	return nil
}

type StorageConfig struct {
	EventsPath string `env:"ARTIFACTS_EVENTS_PATH,default=artifacts/events.json"`
	S3Bucket   string `env:"ARTIFACTS_S3_BUCKET"`
	S3Key      string `env:"ARTIFACTS_EVENTS_S3_KEY,default=events.json"`
}

type PlatformConfig struct {
	BaseURL  string `env:"PLATFORM_BASE_URL"`
	APIToken string `env:"PLATFORM_API_TOKEN"`
}

type NotifyConfig struct {
	SlackWebhookURL string `env:"SLACK_WEBHOOK_URL"`
	SlackChannel    string `env:"SLACK_CHANNEL,default=#events"`
}
