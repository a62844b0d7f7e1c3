package handler

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/epub-counter/api/internal/report"
	"github.com/epub-counter/api/pkg/response"
)

const defaultMaxResultsSize = 1024 * 1024 // 1MB

type UploadHandler struct {
	maxSize int
}

// NewUploadHandler caps uploads at maxMB megabytes (1MB when not positive).
func NewUploadHandler(maxMB int) *UploadHandler {
	maxSize := defaultMaxResultsSize
	if maxMB > 0 {
		maxSize = maxMB * 1024 * 1024
	}
	return &UploadHandler{maxSize: maxSize}
}

// BodyLimit is the server body limit that still lets oversized uploads
// reach Results, so they get its 413 rather than the framework's.
func (h *UploadHandler) BodyLimit() int {
	return h.maxSize + defaultMaxResultsSize
}

// Results handles POST /api/upload-results
func (h *UploadHandler) Results(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) > h.maxSize {
		return response.Error(c, fiber.StatusRequestEntityTooLarge, response.CodeInvalidRequest,
			fmt.Sprintf("Request body exceeds %dMB limit", h.maxSize/(1024*1024)), nil)
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return response.InvalidRequest(c, "Invalid JSON body", nil)
	}

	if errs := report.ValidateResultsOutput(data); len(errs) > 0 {
		return response.InvalidSchema(c, errs)
	}

	doc := data.(map[string]interface{})
	return response.Success(c, fiber.Map{
		"message":      "Results validated successfully",
		"resultsCount": len(doc["results"].([]interface{})),
		"summary":      doc["summary"],
	})
}
