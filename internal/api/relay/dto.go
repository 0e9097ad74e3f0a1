package relay

import (
	"encoding/json"
)

const (
	EventConnect                = "connect"
	EventDisconnect             = "disconnect"
	EventAnalyzeFrame           = "analyze-frame"
	EventAnalyzeFrameLegacy     = "analyze_frame"
	EventPredictionResult       = "prediction-result"
	EventPredictionResultLegacy = "prediction_result"
	EventError                  = "error"
)

const (
	PlaceholderLabel      = "Waiting..."
	PlaceholderConfidence = "N/A"
)

type Mode string

const (
	ModeInference   Mode = "inference"
	ModeWaiting     Mode = "waiting"
	ModeUnavailable Mode = "unavailable"
)

// Envelope is one socket event in either direction.
type Envelope struct {
	Event string          `json:"event" validate:"required,max=64"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type OutboundEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// PredictionResult is the prediction-result payload. Confidence is a
// number for real predictions and the "N/A" string for the placeholder.
type PredictionResult struct {
	PredictedLabel string      `json:"predicted_label"`
	Confidence     interface{} `json:"confidence"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func Placeholder() *PredictionResult {
	return &PredictionResult{
		PredictedLabel: PlaceholderLabel,
		Confidence:     PlaceholderConfidence,
	}
}
