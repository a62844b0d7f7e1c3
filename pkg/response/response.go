package response

import "github.com/gofiber/fiber/v2"

// Error codes
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeInvalidTokenizers = "INVALID_TOKENIZERS"
	CodeInvalidPath       = "INVALID_PATH"
	CodeInvalidSchema     = "INVALID_SCHEMA"
	CodeJobNotFound       = "JOB_NOT_FOUND"
	CodeJobFailed         = "JOB_FAILED"
	CodeJobCancelled      = "JOB_CANCELLED"
	CodeRateLimited       = "RATE_LIMITED"
	CodeServiceError      = "SERVICE_ERROR"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse wraps payloads for endpoints that report {success, data}.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

func Error(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func InvalidRequest(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeInvalidRequest, message, details)
}

func InvalidTokenizers(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeInvalidTokenizers, message, details)
}

func InvalidPath(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeInvalidPath, message, details)
}

func InvalidSchema(c *fiber.Ctx, details []string) error {
	return Error(c, fiber.StatusBadRequest, CodeInvalidSchema, "Invalid results.json format", details)
}

func JobNotFound(c *fiber.Ctx) error {
	return Error(c, fiber.StatusNotFound, CodeJobNotFound, "Job not found", nil)
}

func RateLimited(c *fiber.Ctx) error {
	return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded", nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

// Success writes {"success": true, "data": data}.
func Success(c *fiber.Ctx, data interface{}) error {
	return c.JSON(SuccessResponse{Success: true, Data: data})
}

func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}
