package handler

import (
	"bufio"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/epub-counter/api/internal/model"
	"github.com/epub-counter/api/internal/queue"
	"github.com/epub-counter/api/internal/service"
	"github.com/epub-counter/api/internal/stream"
	"github.com/epub-counter/api/pkg/response"
)

const wsPingInterval = 30 * time.Second

type StreamHandler struct {
	gateway   *stream.Gateway
	service   *service.ProcessService
	heartbeat time.Duration
	logger    *zap.Logger
}

func NewStreamHandler(gw *stream.Gateway, svc *service.ProcessService, heartbeat time.Duration, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		gateway:   gw,
		service:   svc,
		heartbeat: heartbeat,
		logger:    logger,
	}
}

// SSE handles GET /api/sse/:jobId
func (h *StreamHandler) SSE(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	sub, err := h.gateway.Subscribe(jobID)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			return response.JobNotFound(c)
		}
		return response.ServiceError(c, err.Error())
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer h.gateway.Unsubscribe(sub)
		if err := stream.ServeSSE(w, sub, h.heartbeat); err != nil {
			h.logger.Debug("SSE client disconnected", zap.String("job_id", jobID), zap.Error(err))
		}
	})
	return nil
}

// RequireJob rejects WebSocket upgrades for unknown jobs with a plain 404.
func (h *StreamHandler) RequireJob(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if _, err := h.service.GetStatus(c.Context(), c.Params("jobId")); err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			return response.JobNotFound(c)
		}
		return response.ServiceError(c, err.Error())
	}
	return c.Next()
}

// WebSocket handles GET /ws/jobs/:jobId
func (h *StreamHandler) WebSocket(c *websocket.Conn) {
	jobID := c.Params("jobId")
	sub, err := h.gateway.Subscribe(jobID)
	if err != nil {
		c.WriteJSON(model.WSMessage{
			Type:  model.EventError,
			JobID: jobID,
			Data:  model.StreamError{Code: response.CodeJobNotFound, Message: "Job not found"},
		})
		return
	}

	pongs := make(chan struct{}, 1)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()

		for {
			select {
			case ev := <-sub.Events():
				if err := c.WriteJSON(model.WSMessage{Type: ev.Type, JobID: jobID, Data: ev.Data}); err != nil {
					return
				}
			case <-pongs:
				if err := c.WriteJSON(model.WSMessage{Type: model.EventPong}); err != nil {
					return
				}
			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-sub.Done():
				c.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket error", zap.String("job_id", jobID), zap.Error(err))
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.EventPing {
			select {
			case pongs <- struct{}{}:
			default:
			}
		}
	}

	h.gateway.Unsubscribe(sub)
	<-writerDone
}
