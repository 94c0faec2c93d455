package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joeshaw/envdecode"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mealwizard"
	"mealwizard/ai/bedrock"
	"mealwizard/ai/mock"
	"mealwizard/platform/httpapi"
	"mealwizard/platform/local"
	"mealwizard/slack"
	"mealwizard/storage"
	"mealwizard/wizard"
)

func main() {
	ctx := context.Background()

	var wizardConfig mealwizard.WizardConfig
	if err := envdecode.Decode(&wizardConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}
	if err := wizardConfig.Validate(); err != nil {
		log.Fatalf("Invalid config: %s", err)
	}

	var storageConfig mealwizard.StorageConfig
	if err := envdecode.Decode(&storageConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var platformConfig mealwizard.PlatformConfig
	if err := envdecode.Decode(&platformConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var notifyConfig mealwizard.NotifyConfig
	if err := envdecode.Decode(&notifyConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	eventID := argOr(1, "demo-offsite")
	accountID := argOr(2, "")

	tracerProvider, meterProvider, otelShutdown, err := mealwizard.InitOtel(ctx)
	if err != nil {
		slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
		return
	}
	defer func() {
		if err := otelShutdown(ctx); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	platform, err := newPlatform(ctx, eventID, storageConfig, platformConfig)
	if err != nil {
		slog.Error("SETUP: Failed to create platform", "error", err)
		return
	}

	logger, cleanup, err := newSessionLogger(eventID)
	if err != nil {
		slog.Error("SETUP: Failed to create session logger", "error", err)
		return
	}
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("Failed to flush session log", "error", err)
		}
	}()

	tracer := tracerProvider.Tracer(mealwizard.TracerNameWizard)
	ctx, span := tracer.Start(ctx, "wizard.cli", trace.WithAttributes(
		attribute.String("event.id", eventID),
		attribute.String("budget.strategy", wizardConfig.BudgetStrategy),
		attribute.Int("recipes.per_category", wizardConfig.RecipesPerCategory),
	))
	defer span.End()

	w, err := wizard.Start(ctx, platform, eventID, accountID, wizardConfig,
		wizard.WithSessionLogger(logger),
		wizard.WithTracer(tracer),
		wizard.WithMeter(meterProvider.Meter(mealwizard.MeterNameWizard)),
	)
	if err != nil {
		slog.Error("RESULT: Failed to start session", "error", err)
		return
	}

	res, err := wizard.Run(ctx, w, wizard.RunOptions{
		Picks: wizardConfig.PicksPerCategory,
		Items: wizard.ParseItems(wizardConfig.AddOnItems, w.Event().SelectedCategories),
	})
	summary := w.Summary()
	if wizardConfig.Debug {
		mealwizard.Dump(summary, res)
	}
	if err != nil {
		slog.Error("RESULT: Failed to save plan", "error", err,
			"meals_created", len(res.MealsCreated), "recipes_attached", res.RecipesAttached)
		return
	}
	slog.Info("RESULT: Plan saved",
		"event_id", eventID,
		"meals_created", len(res.MealsCreated),
		"recipes_attached", res.RecipesAttached,
		"already_saved", res.AlreadySaved,
	)

	fmt.Println(slack.FormatPlan(summary, res))

	if notifyConfig.SlackWebhookURL == "" {
		return
	}
	sc := slack.NewClient(notifyConfig.SlackWebhookURL, http.DefaultClient)
	if err := slack.PostPlan(ctx, sc, notifyConfig.SlackChannel, summary, res); err != nil {
		slog.Error("Failed to post plan to Slack", "error", err)
	}
}

// newPlatform talks to the host platform when a base URL is configured and
// otherwise runs the local platform on the events file, seeding the demo
// event when it is missing.
func newPlatform(ctx context.Context, eventID string, sc mealwizard.StorageConfig, pc mealwizard.PlatformConfig) (mealwizard.Platform, error) {
	if pc.BaseURL != "" {
		slog.Info("SETUP: Using host platform", "base_url", pc.BaseURL)
		return httpapi.NewClient(pc.BaseURL, pc.APIToken, http.DefaultClient), nil
	}

	backend, err := newBackend(ctx)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(sc.EventsPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create events directory: %w", err)
	}
	p := local.New(storage.NewFileEventState(sc.EventsPath), backend)

	seeded, err := p.EnsureEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	slog.Info("SETUP: Local platform ready", "events_path", sc.EventsPath, "seeded_demo_event", seeded)
	return p, nil
}

// newBackend uses Bedrock when a model is configured and the mock backend otherwise.
func newBackend(ctx context.Context) (local.Backend, error) {
	if os.Getenv("MODEL_ID") == "" {
		slog.Info("SETUP: MODEL_ID not set, using mock AI backend")
		return mock.NewBackend(), nil
	}

	var modelConfig mealwizard.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		return nil, fmt.Errorf("failed to decode model config: %w", err)
	}

	brc, err := newBedrockRuntimeClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bedrock client: %w", err)
	}
	slog.Info("SETUP: Using Bedrock AI backend", "model_id", modelConfig.ModelID)
	return bedrock.NewClient(brc, bedrock.OptionsFrom(modelConfig)), nil
}

func newBedrockRuntimeClient(ctx context.Context) (*bedrockruntime.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
	if err != nil {
		return nil, err
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}

func newSessionLogger(eventID string) (*mealwizard.FileSessionLogger, func() error, error) {
	path := mealwizard.NewSessionLogFilePath(eventID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open session log: %w", err)
	}

	logger := mealwizard.NewFileSessionLogger(f)
	cleanup := func() error {
		return errors.Join(logger.Flush(), f.Close())
	}
	return logger, cleanup, nil
}

func argOr(i int, def string) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return def
}
