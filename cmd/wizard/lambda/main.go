package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"

	"mealwizard"
	"mealwizard/ai/bedrock"
	"mealwizard/persist"
	"mealwizard/platform/local"
	"mealwizard/slack"
	"mealwizard/storage"
	"mealwizard/wizard"
)

type Params struct {
	EventID   string   `json:"event_id"`
	AccountID string   `json:"account_id"`
	Items     []string `json:"items,omitempty"`
}

type Results struct {
	Plan    string         `json:"plan"`
	Summary wizard.Summary `json:"summary"`
	Result  persist.Result `json:"result"`
}

func main() {
	fn := func(ctx context.Context, params Params) (Results, error) {
		var modelConfig mealwizard.ModelConfig
		if err := envdecode.Decode(&modelConfig); err != nil {
			log.Fatalf("Failed to decode: %s", err)
		}

		var wizardConfig mealwizard.WizardConfig
		if err := envdecode.Decode(&wizardConfig); err != nil {
			log.Fatalf("Failed to decode: %s", err)
		}
		if err := wizardConfig.Validate(); err != nil {
			return Results{}, err
		}

		var storageConfig mealwizard.StorageConfig
		if err := envdecode.Decode(&storageConfig); err != nil {
			log.Fatalf("Failed to decode: %s", err)
		}
		if storageConfig.S3Bucket == "" {
			return Results{}, fmt.Errorf("missing S3 config: ARTIFACTS_S3_BUCKET must be set")
		}

		var notifyConfig mealwizard.NotifyConfig
		if err := envdecode.Decode(&notifyConfig); err != nil {
			log.Fatalf("Failed to decode: %s", err)
		}

		if params.EventID == "" {
			return Results{}, fmt.Errorf("event_id is required")
		}

		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return Results{}, fmt.Errorf("failed to load AWS config: %w", err)
		}
		state := storage.NewS3EventState(s3.NewFromConfig(awsCfg), storageConfig.S3Bucket, storageConfig.S3Key)
		slog.Info("SETUP: S3 event state initialized", "bucket", storageConfig.S3Bucket, "key", storageConfig.S3Key)

		brc, err := newBedrockRuntimeClient(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to create Bedrock client", "error", err)
			return Results{}, err
		}
		platform := local.New(state, bedrock.NewClient(brc, bedrock.OptionsFrom(modelConfig)))

		tracerProvider, meterProvider, otelShutdown, err := mealwizard.InitOtel(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
			return Results{}, err
		}
		defer func() {
			if err := otelShutdown(ctx); err != nil {
				slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
			}
		}()

		w, err := wizard.Start(ctx, platform, params.EventID, params.AccountID, wizardConfig,
			wizard.WithSessionLogger(mealwizard.NewStdoutSessionLogger()),
			wizard.WithTracer(tracerProvider.Tracer(mealwizard.TracerNameWizard)),
			wizard.WithMeter(meterProvider.Meter(mealwizard.MeterNameWizard)),
		)
		if err != nil {
			slog.Error("RESULT: Failed to start session", "error", err)
			return Results{}, err
		}

		items := params.Items
		if len(items) == 0 {
			items = wizardConfig.AddOnItems
		}
		res, err := wizard.Run(ctx, w, wizard.RunOptions{
			Picks: wizardConfig.PicksPerCategory,
			Items: wizard.ParseItems(items, w.Event().SelectedCategories),
		})
		summary := w.Summary()
		if wizardConfig.Debug {
			mealwizard.Fdump(os.Stderr, "summary", summary)
		}
		if err != nil {
			slog.Error("RESULT: Failed to save plan", "error", err)
			return Results{Summary: summary, Result: res}, err
		}

		plan := slack.FormatPlan(summary, res)
		if notifyConfig.SlackWebhookURL != "" {
			sc := slack.NewClient(notifyConfig.SlackWebhookURL, http.DefaultClient)
			if err := sc.PostMessage(ctx, notifyConfig.SlackChannel, plan); err != nil {
				slog.Error("Failed to post plan to Slack", "error", err)
			}
		}

		return Results{Plan: plan, Summary: summary, Result: res}, nil
	}

	lambda.Start(fn)
}

func newBedrockRuntimeClient(ctx context.Context) (*bedrockruntime.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
	if err != nil {
		return nil, err
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}
