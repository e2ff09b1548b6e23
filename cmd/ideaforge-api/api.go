// Package main provides the Ideaforge API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	cli "github.com/urfave/cli/v3"

	"github.com/ideaforge/ideaforge/pkg/cmd"
	"github.com/ideaforge/ideaforge/pkg/config"
	"github.com/ideaforge/ideaforge/pkg/eventbus"
	"github.com/ideaforge/ideaforge/pkg/events"
	"github.com/ideaforge/ideaforge/pkg/nodes/stage"
	"github.com/ideaforge/ideaforge/pkg/otelhelper"
	"github.com/ideaforge/ideaforge/pkg/reasoning"
	"github.com/ideaforge/ideaforge/pkg/retrieval"
	"github.com/ideaforge/ideaforge/pkg/services"
	"github.com/ideaforge/ideaforge/pkg/web"
	"github.com/ideaforge/ideaforge/pkg/workflow"
)

type API struct {
	logger           *slog.Logger
	executionService *services.Execution
	validate         *validator.Validate
}

// NewAPI wires the whole engine from the CLI flags: persistence, event bus,
// reasoning gateway, optional retrieval store, orchestrators and the registry.
// The returned cleanup releases everything in reverse order.
func NewAPI(ctx context.Context, apiLogger *slog.Logger, command *cli.Command) (*API, func(context.Context), error) {
	store, err := cmd.NewPersistence(ctx, apiLogger, command.String("database-url"))
	if err != nil {
		return nil, nil, err
	}

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), apiLogger)
	if err != nil {
		_ = store.Close(ctx)

		return nil, nil, err
	}

	cleanup := func(ctx context.Context) {
		if err := eventBus.Close(); err != nil {
			apiLogger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}

		if err := store.Close(ctx); err != nil {
			apiLogger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}

	reasoningClient, err := reasoning.NewGatewayClient(
		command.String("gateway-url"),
		command.String("gateway-api-key"),
		apiLogger,
	)
	if err != nil {
		cleanup(ctx)

		return nil, nil, err
	}

	var searchClient retrieval.SearchClient

	if redisURL := command.String("redis-url"); redisURL != "" {
		searchClient, err = retrieval.NewRedisStore(redisURL, "ideaforge", apiLogger)
		if err != nil {
			cleanup(ctx)

			return nil, nil, err
		}
	}

	cfg := config.Default()
	if model := command.String("default-model"); model != "" {
		cfg.DefaultModel = model
	}

	opts := []workflow.Option{
		workflow.WithProgressCallback(stagePublisher(eventBus, apiLogger)),
	}

	if command.Bool("enable-tracing") {
		tracer, err := otelhelper.NewTracer(ctx, "ideaforge-api")
		if err != nil {
			cleanup(ctx)

			return nil, nil, err
		}

		opts = append(opts, workflow.WithTracer(tracer))
	}

	orchestrators, err := cmd.NewOrchestrators(cfg, stage.Services{
		Reasoning:    reasoningClient,
		Retrieval:    searchClient,
		Logger:       apiLogger,
		DefaultModel: cfg.DefaultModel,
	}, apiLogger, opts...)
	if err != nil {
		cleanup(ctx)

		return nil, nil, err
	}

	registry := workflow.NewRegistry(cfg, apiLogger)
	if err := registry.StartSweeper(); err != nil {
		cleanup(ctx)

		return nil, nil, err
	}

	fullCleanup := func(ctx context.Context) {
		registry.Shutdown(ctx)
		cleanup(ctx)
	}

	executionService := services.NewExecution(orchestrators, registry, store, eventBus, apiLogger)

	return &API{
		logger:           apiLogger,
		executionService: executionService,
		validate:         validator.New(validator.WithRequiredStructEnabled()),
	}, fullCleanup, nil
}

// stagePublisher forwards per-stage progress to the event bus. Publishing
// happens off the orchestrator goroutine so a slow broker never stalls a run.
func stagePublisher(bus eventbus.EventBus, publishLogger *slog.Logger) workflow.ProgressCallback {
	return func(event workflow.ProgressEvent) {
		if event.Step == "" {
			return
		}

		var busEvent eventbus.Event

		switch event.Type {
		case workflow.ProgressEventProgress:
			busEvent = events.StageCompleted{
				BaseEvent:  events.NewBaseEvent(events.StageCompletedEvent, event.ExecutionID, event.WorkflowType),
				Stage:      event.Step,
				Confidence: event.Confidence,
				Cost:       event.Cost,
				Progress:   event.Progress,
			}
		case workflow.ProgressEventError:
			busEvent = events.StageFailed{
				BaseEvent:  events.NewBaseEvent(events.StageFailedEvent, event.ExecutionID, event.WorkflowType),
				Stage:      event.Step,
				Error:      event.Message,
				RetryCount: event.RetryCount,
				WillRetry:  !event.Status.IsTerminal(),
			}
		default:
			return
		}

		go func() {
			if err := bus.Publish(context.Background(), event.ExecutionID, busEvent); err != nil {
				publishLogger.Error("Failed to publish stage event",
					"event_type", busEvent.GetType(), "execution_id", event.ExecutionID, "error", err)
			}
		}()
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.executionService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Ideaforge API")
	})

	e := app.Group("/executions")
	e.Post("/", handlers.StartExecution)
	e.Get("/", handlers.GetExecutions)
	e.Get("/:id", handlers.GetExecution)
	e.Get("/:id/result", handlers.GetExecutionResult)
	e.Get("/:id/stream", handlers.StreamExecution)
	e.Delete("/:id", handlers.CancelExecution)

	app.Get("/workflow-types", handlers.GetWorkflowTypes)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
