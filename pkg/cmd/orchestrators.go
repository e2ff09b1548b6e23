package cmd

import (
	"log/slog"

	"github.com/ideaforge/ideaforge/pkg/config"
	"github.com/ideaforge/ideaforge/pkg/models"
	"github.com/ideaforge/ideaforge/pkg/nodes/stage"
	"github.com/ideaforge/ideaforge/pkg/workflow"
	"github.com/ideaforge/ideaforge/pkg/workflows"
)

// NewOrchestrators builds one orchestrator per built-in workflow definition,
// all sharing the same stage services and engine configuration.
func NewOrchestrators(cfg config.Engine, services stage.Services, logger *slog.Logger, opts ...workflow.Option) ([]*workflow.Orchestrator, error) {
	factory := stage.NewFactory(services)

	nodeFactory := func(s models.Stage) workflow.Node {
		return factory(s)
	}

	definitions := workflows.All()
	orchestrators := make([]*workflow.Orchestrator, 0, len(definitions))

	for _, definition := range definitions {
		orchestrator, err := workflow.NewOrchestrator(definition, nodeFactory, cfg, logger, opts...)
		if err != nil {
			return nil, err
		}

		orchestrators = append(orchestrators, orchestrator)
	}

	return orchestrators, nil
}
