// Package web provides HTTP handlers and REST API endpoints for workflow
// executions.
package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/ideaforge/ideaforge/pkg/models"
	"github.com/ideaforge/ideaforge/pkg/services"
)

const streamPollInterval = 250 * time.Millisecond

type APIHandlers struct {
	executionService *services.Execution
	validator        *validator.Validate
}

func NewAPIHandlers(executionService *services.Execution, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		executionService: executionService,
		validator:        validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	persistenceCheck, ok := h.executionService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Ideaforge API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Ideaforge API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"persistence": persistenceCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// GetWorkflowTypes lists the workflow types executions can be started for.
func (h *APIHandlers) GetWorkflowTypes(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"workflow_types": h.executionService.WorkflowTypes(),
	})
}

func (h *APIHandlers) StartExecution(c fiber.Ctx) error {
	var req StartExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	summary, err := h.executionService.Start(c.Context(), services.StartExecutionRequest{
		WorkflowType:   models.WorkflowType(req.WorkflowType),
		InitialRequest: req.InitialRequest,
		UserID:         req.UserID,
		ProjectID:      req.ProjectID,
		Parameters:     req.Parameters,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(StartExecutionResponse{
		ExecutionID:  summary.ExecutionID,
		WorkflowID:   summary.WorkflowID,
		WorkflowType: summary.WorkflowType,
		Status:       summary.Status,
	})
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	summaries, err := h.executionService.List(c.Context(), c.Query("user_id"))
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions":  summaries,
		"total_count": len(summaries),
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	summary, err := h.executionService.Status(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(summary)
}

func (h *APIHandlers) GetExecutionResult(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	state, err := h.executionService.Result(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	// The cancel reason payload is optional.
	var req CancelExecutionRequest
	_ = c.Bind().JSON(&req)

	if err := h.executionService.Cancel(c.Context(), id, req.Reason); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// StreamExecution serves execution progress as Server-Sent Events until the
// execution reaches a terminal status or the client disconnects.
func (h *APIHandlers) StreamExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	// The stream outlives this handler, so it gets its own context.
	ctx, cancel := context.WithCancel(context.Background())

	events, err := h.executionService.Stream(ctx, id, streamPollInterval)
	if err != nil {
		cancel()

		return handleServiceError(c, err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		for event := range events {
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}

			if _, err := w.WriteString("event: " + string(event.Type) + "\n"); err != nil {
				return
			}

			if _, err := w.WriteString("data: " + string(payload) + "\n\n"); err != nil {
				return
			}

			// A failed flush means the client went away.
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
}
