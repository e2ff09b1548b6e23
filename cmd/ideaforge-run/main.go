// Command ideaforge-run executes one workflow synchronously and prints the
// final state as JSON. It is meant for local pipeline development, not for
// serving traffic.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/ideaforge/ideaforge/pkg/cmd"
	"github.com/ideaforge/ideaforge/pkg/config"
	"github.com/ideaforge/ideaforge/pkg/log"
	"github.com/ideaforge/ideaforge/pkg/models"
	"github.com/ideaforge/ideaforge/pkg/nodes/stage"
	"github.com/ideaforge/ideaforge/pkg/reasoning"
	"github.com/ideaforge/ideaforge/pkg/retrieval"
	"github.com/ideaforge/ideaforge/pkg/workflow"
	"github.com/ideaforge/ideaforge/pkg/workflows"
)

func main() {
	command := &cli.Command{
		Name:                  "ideaforge-run",
		Usage:                 "Execute a single workflow and print its result",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "workflow-type",
				Aliases:  []string{"w"},
				Usage:    "Workflow to run (research, prd, task_generation)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "request",
				Aliases:  []string{"r"},
				Usage:    "Initial request describing the idea",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "user-id",
				Usage: "User the execution belongs to",
				Value: "local",
			},
			&cli.StringFlag{
				Name:  "project-id",
				Usage: "Project the execution belongs to",
			},
			&cli.StringFlag{
				Name:  "parameters",
				Usage: "Extra workflow parameters as a JSON object",
			},
			&cli.StringFlag{
				Name:     "gateway-url",
				Usage:    "Base URL of the LLM gateway",
				Required: true,
				Sources:  cli.EnvVars("GATEWAY_URL"),
			},
			&cli.StringFlag{
				Name:    "gateway-api-key",
				Usage:   "API key for the LLM gateway",
				Sources: cli.EnvVars("GATEWAY_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the retrieval snippet store (optional)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "default-model",
				Usage:   "Model used by stages that do not declare their own",
				Sources: cli.EnvVars("DEFAULT_MODEL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("run")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	definition, err := workflows.ByType(models.WorkflowType(command.String("workflow-type")))
	if err != nil {
		return err
	}

	var parameters map[string]any

	if raw := command.String("parameters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &parameters); err != nil {
			return fmt.Errorf("invalid parameters JSON: %w", err)
		}
	}

	reasoningClient, err := reasoning.NewGatewayClient(
		command.String("gateway-url"),
		command.String("gateway-api-key"),
		logger,
	)
	if err != nil {
		return err
	}

	var searchClient retrieval.SearchClient

	if redisURL := command.String("redis-url"); redisURL != "" {
		searchClient, err = retrieval.NewRedisStore(redisURL, "ideaforge", logger)
		if err != nil {
			return err
		}
	}

	cfg := config.Default()
	if model := command.String("default-model"); model != "" {
		cfg.DefaultModel = model
	}

	orchestrators, err := cmd.NewOrchestrators(cfg, stage.Services{
		Reasoning:    reasoningClient,
		Retrieval:    searchClient,
		Logger:       logger,
		DefaultModel: cfg.DefaultModel,
	}, logger, workflow.WithProgressCallback(printProgress))
	if err != nil {
		return err
	}

	var orchestrator *workflow.Orchestrator

	for _, candidate := range orchestrators {
		if candidate.Definition().Type == definition.Type {
			orchestrator = candidate
		}
	}

	state, runErr := orchestrator.Execute(ctx,
		command.String("request"),
		command.String("user-id"),
		command.String("project-id"),
		parameters,
	)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(state.Snapshot()); err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}

	if state.GetStatus() == models.ExecutionStatusFailed {
		return fmt.Errorf("execution %s failed", state.ExecutionID)
	}

	return nil
}

func printProgress(event workflow.ProgressEvent) {
	fmt.Fprintf(os.Stderr, "[%5.1f%%] %s %s %s\n", event.Progress, event.Type, event.Step, event.Message)
}
