package handlerUtil

import (
	"SignSync/internal/api/relay"
	"SignSync/pkg/imaging"
	"SignSync/pkg/response"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestHandleEventMessages(t *testing.T) {
	h := New(quietLogger())
	ctx := context.Background()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			"decode hides cause",
			response.Wrap(relay.ErrDecodeFrame, imaging.ErrMalformedDataURL),
			"failed to decode frame",
		},
		{
			"decode hides parser text",
			response.Wrap(relay.ErrDecodeFrame, errors.New(`ReadString: expects " or n, but found 4`)),
			"failed to decode frame",
		},
		{
			"inference hides cause",
			response.Wrap(relay.ErrInference, errors.New("onnx: bad shape [1 3 224 224]")),
			"failed to run prediction",
		},
		{"unavailable", relay.ErrUnavailable, "prediction service is currently unavailable"},
		{"unknown event", relay.ErrUnknownEvent, "unknown event"},
		{
			"invalid message hides parser text",
			response.Wrap(relay.ErrInvalidMessage, errors.New("readObjectStart: expect { or n")),
			"invalid message",
		},
		{"unexpected", errors.New("boom"), "an unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.HandleEvent(ctx, tt.err, "analyze_frame").Message)
		})
	}
}

func TestHandleHTTP(t *testing.T) {
	h := New(quietLogger())
	app := fiber.New(fiber.Config{ErrorHandler: h.HandleHTTP})
	app.Get("/coded", func(c *fiber.Ctx) error { return relay.ErrUnavailable })
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.ErrUpgradeRequired })
	app.Get("/plain", func(c *fiber.Ctx) error { return errors.New("boom") })

	for path, want := range map[string]int{
		"/coded": http.StatusServiceUnavailable,
		"/fiber": fiber.StatusUpgradeRequired,
		"/plain": http.StatusInternalServerError,
	} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, path)
	}
}
