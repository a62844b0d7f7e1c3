package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newApp(rl *RateLimiter) *fiber.App {
	app := fiber.New()
	app.Post("/process", rl.ProcessLimit(1), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	return app
}

func TestNilClientPassesThrough(t *testing.T) {
	app := newApp(NewRateLimiter(nil, zap.NewNop()))

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/process", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}
}

func TestUnreachableRedisFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	app := newApp(NewRateLimiter(client, zap.NewNop()))

	resp, err := app.Test(httptest.NewRequest("POST", "/process", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("X-RateLimit-Limit"))
}
