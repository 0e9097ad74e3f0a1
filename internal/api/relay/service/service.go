package relayService

import (
	"SignSync/internal/api/relay"
	"SignSync/pkg/classifier"
	"SignSync/pkg/imaging"
	logPkg "SignSync/pkg/log"
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
)

// IRelayService answers one analyze-frame event. The payload arrives
// exactly as the client sent it; only the inference strategy reads it.
type IRelayService interface {
	AnalyzeFrame(ctx context.Context, payload json.RawMessage) (*relay.PredictionResult, error)
	Mode() relay.Mode
}

// NewRelayService picks the frame strategy for the configured mode.
// Only inference mode needs a classifier.
func NewRelayService(
	log *logrus.Logger,
	mode relay.Mode,
	preprocessor *imaging.Preprocessor,
	model classifier.Classifier,
) (IRelayService, error) {
	if log == nil {
		log = logPkg.Logger()
	}

	switch mode {
	case relay.ModeInference:
		if model == nil {
			return nil, fmt.Errorf("inference mode requires a classifier")
		}
		if preprocessor == nil {
			preprocessor = imaging.NewPreprocessor(imaging.DefaultSize)
		}
		return &inferenceService{
			log:          log,
			preprocessor: preprocessor,
			classifier:   model,
			labels:       classifier.LabelsFor(model),
		}, nil
	case relay.ModeWaiting:
		return waitingService{}, nil
	case relay.ModeUnavailable:
		return unavailableService{}, nil
	default:
		return nil, fmt.Errorf("unknown relay mode %q", mode)
	}
}
