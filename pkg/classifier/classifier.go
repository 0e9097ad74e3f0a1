// Package classifier holds the inference backends and the label decoding
// shared by all of them.
package classifier

import (
	"SignSync/internal/entity"
	"SignSync/pkg/imaging"
	"context"
	"errors"
	"fmt"
	"math"
)

// Classifier scores one preprocessed frame. Implementations must be safe
// for concurrent use by independent sessions.
type Classifier interface {
	Predict(ctx context.Context, input *imaging.Tensor) ([]float32, error)
	Close() error
}

// Labeled is implemented by backends whose artifact carries its own class table.
type Labeled interface {
	Labels() Labels
}

// LabelsFor returns the classifier's own labels, or the ASL alphabet.
func LabelsFor(c Classifier) Labels {
	if l, ok := c.(Labeled); ok && len(l.Labels()) > 0 {
		return l.Labels()
	}
	return ASLLabels()
}

const ASLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var (
	ErrEmptyOutput    = errors.New("classifier returned no scores")
	ErrOutputMismatch = errors.New("classifier output does not match label table")
	ErrInputMismatch  = errors.New("input tensor does not match model input shape")
)

// Labels is the index-aligned class table for a model's output vector.
type Labels []string

func ASLLabels() Labels {
	labels := make(Labels, 0, len(ASLAlphabet))
	for _, r := range ASLAlphabet {
		labels = append(labels, string(r))
	}
	return labels
}

// Argmax returns the index of the largest score, first one on ties.
// NaN scores never win.
func Argmax(scores []float32) (int, error) {
	best := -1
	for i, v := range scores {
		if math.IsNaN(float64(v)) {
			continue
		}
		if best < 0 || v > scores[best] {
			best = i
		}
	}
	if best < 0 {
		return -1, ErrEmptyOutput
	}
	return best, nil
}

func (l Labels) Decode(scores []float32) (*entity.Prediction, error) {
	if len(scores) == 0 {
		return nil, ErrEmptyOutput
	}
	if len(scores) != len(l) {
		return nil, fmt.Errorf("%w: got %d scores for %d labels", ErrOutputMismatch, len(scores), len(l))
	}

	idx, err := Argmax(scores)
	if err != nil {
		return nil, err
	}

	return &entity.Prediction{
		Label:      l[idx],
		Confidence: scores[idx],
		Index:      idx,
	}, nil
}
