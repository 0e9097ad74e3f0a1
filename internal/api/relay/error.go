package relay

import (
	"SignSync/pkg/response"
	"net/http"
)

var (
	ErrDecodeFrame    = response.NewError(http.StatusBadRequest, "failed to decode frame")
	ErrInference      = response.NewError(http.StatusInternalServerError, "failed to run prediction")
	ErrUnavailable    = response.NewError(http.StatusServiceUnavailable, "prediction service is currently unavailable")
	ErrUnknownEvent   = response.NewError(http.StatusBadRequest, "unknown event")
	ErrInvalidMessage = response.NewError(http.StatusBadRequest, "invalid message")
)
