package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/epub-counter/api/internal/model"
	"github.com/epub-counter/api/internal/queue"
	"github.com/epub-counter/api/internal/service"
	"github.com/epub-counter/api/internal/tokenizer"
	"github.com/epub-counter/api/pkg/response"
)

type ProcessHandler struct {
	service   *service.ProcessService
	validator *validator.Validate
}

func NewProcessHandler(svc *service.ProcessService, v *validator.Validate) *ProcessHandler {
	return &ProcessHandler{
		service:   svc,
		validator: v,
	}
}

// Process handles POST /api/process
func (h *ProcessHandler) Process(c *fiber.Ctx) error {
	var req model.ProcessRequest
	if err := c.BodyParser(&req); err != nil {
		return response.InvalidRequest(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		switch failedField(err) {
		case "Path":
			return response.InvalidRequest(c, `Missing or invalid "path" field`, "Path must be a non-empty string")
		case "Tokenizers":
			return response.InvalidTokenizers(c, `Missing or empty "tokenizers" array`, "Tokenizers must be a non-empty array")
		}
		return response.InvalidRequest(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Submit(c.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, tokenizer.ErrUnknownTokenizer):
			return response.InvalidTokenizers(c, err.Error(), nil)
		case errors.Is(err, service.ErrPathTraversal):
			return response.InvalidPath(c, "Path traversal detected", `Path cannot contain ".." (parent directory) or "~" (home directory)`)
		case errors.Is(err, service.ErrPathNotFound):
			return response.InvalidPath(c, "Path does not exist", "Path does not exist")
		case errors.Is(err, service.ErrPathType):
			return response.InvalidPath(c, "Path must be a file or directory", "Path must be a file or directory")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// Status handles GET /api/jobs/:jobId
func (h *ProcessHandler) Status(c *fiber.Ctx) error {
	state, err := h.service.GetStatus(c.Context(), c.Params("jobId"))
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			return response.JobNotFound(c)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, state)
}

// Cancel handles POST /api/jobs/:jobId/cancel
func (h *ProcessHandler) Cancel(c *fiber.Ctx) error {
	state, err := h.service.Cancel(c.Context(), c.Params("jobId"))
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			return response.JobNotFound(c)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, state)
}
