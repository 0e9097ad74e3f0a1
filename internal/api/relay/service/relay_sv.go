package relayService

import (
	"SignSync/internal/api/relay"
	"SignSync/pkg/classifier"
	contextPkg "SignSync/pkg/context"
	"SignSync/pkg/imaging"
	"SignSync/pkg/log"
	"SignSync/pkg/response"
	"context"
	"encoding/json"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

type inferenceService struct {
	log          *logrus.Logger
	preprocessor *imaging.Preprocessor
	classifier   classifier.Classifier
	labels       classifier.Labels
}

func (s *inferenceService) Mode() relay.Mode {
	return relay.ModeInference
}

func (s *inferenceService) AnalyzeFrame(ctx context.Context, payload json.RawMessage) (*relay.PredictionResult, error) {
	start := time.Now()

	var dataURL string
	if len(payload) > 0 {
		if err := jsoniter.Unmarshal(payload, &dataURL); err != nil {
			return nil, response.Wrap(relay.ErrDecodeFrame, fmt.Errorf("frame payload is not a string: %w", err))
		}
	}

	tensor, err := s.preprocessor.FromDataURL(dataURL)
	if err != nil {
		return nil, response.Wrap(relay.ErrDecodeFrame, err)
	}

	scores, err := s.predict(ctx, tensor)
	if err != nil {
		return nil, response.Wrap(relay.ErrInference, err)
	}

	prediction, err := s.labels.Decode(scores)
	if err != nil {
		return nil, response.Wrap(relay.ErrInference, err)
	}

	s.log.WithFields(log.Fields{
		"session_id": contextPkg.GetSessionID(ctx),
		"label":      prediction.Label,
		"confidence": prediction.Confidence,
		"latency_ms": time.Since(start).Milliseconds(),
	}).Debug("Frame classified")

	return &relay.PredictionResult{
		PredictedLabel: prediction.Label,
		Confidence:     prediction.Confidence,
	}, nil
}

// predict turns a panicking backend into an ordinary error so one bad
// frame cannot take the session down.
func (s *inferenceService) predict(ctx context.Context, tensor *imaging.Tensor) (scores []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panicked: %v", r)
		}
	}()

	return s.classifier.Predict(ctx, tensor)
}

// waitingService is the outage fallback that answers every frame with the
// placeholder result without looking at it.
type waitingService struct{}

func (waitingService) Mode() relay.Mode {
	return relay.ModeWaiting
}

func (waitingService) AnalyzeFrame(context.Context, json.RawMessage) (*relay.PredictionResult, error) {
	return relay.Placeholder(), nil
}

type unavailableService struct{}

func (unavailableService) Mode() relay.Mode {
	return relay.ModeUnavailable
}

func (unavailableService) AnalyzeFrame(context.Context, json.RawMessage) (*relay.PredictionResult, error) {
	return nil, relay.ErrUnavailable
}
