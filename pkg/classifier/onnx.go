package classifier

import (
	"SignSync/pkg/imaging"
	"context"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	ort "github.com/yalue/onnxruntime_go"
)

// Metadata describes an exported model; it is optional and usually sits
// next to the .onnx file.
type Metadata struct {
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

type ONNXConfig struct {
	ModelPath         string
	MetadataPath      string
	SharedLibraryPath string
	InputName         string
	OutputName        string
	ImageSize         int
}

// ONNXClassifier runs a local ONNX export of the model.
type ONNXClassifier struct {
	session     *ort.DynamicAdvancedSession
	inputShape  ort.Shape
	outputShape ort.Shape
	Metadata    Metadata
}

// LoadMetadata reads a model metadata file, filling in the defaults for
// an ASL model exported from Keras when fields are missing.
func LoadMetadata(cfg ONNXConfig) (Metadata, error) {
	size := cfg.ImageSize
	if size <= 0 {
		size = imaging.DefaultSize
	}

	meta := Metadata{
		InputName:  cfg.InputName,
		OutputName: cfg.OutputName,
		ImageSize:  size,
	}

	if cfg.MetadataPath != "" {
		raw, err := os.ReadFile(cfg.MetadataPath)
		if err != nil {
			return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
		}
		if err := jsoniter.Unmarshal(raw, &meta); err != nil {
			return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
		}
	}

	if meta.ImageSize <= 0 {
		meta.ImageSize = size
	}
	if len(meta.Classes) == 0 {
		meta.Classes = ASLLabels()
	}
	if len(meta.InputShape) == 0 {
		meta.InputShape = []int64{1, int64(meta.ImageSize), int64(meta.ImageSize), imaging.Channels}
	}
	if len(meta.OutputShape) == 0 {
		meta.OutputShape = []int64{1, int64(len(meta.Classes))}
	}
	if meta.InputName == "" {
		meta.InputName = "input"
	}
	if meta.OutputName == "" {
		meta.OutputName = "output"
	}

	return meta, nil
}

// NewONNX loads the model once. The returned classifier creates tensors per
// call, so concurrent Predict calls share nothing but the read-only session.
func NewONNX(cfg ONNXConfig) (*ONNXClassifier, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model artifact %q: %w", cfg.ModelPath, err)
	}

	meta, err := LoadMetadata(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{meta.InputName}, []string{meta.OutputName}, nil)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXClassifier{
		session:     session,
		inputShape:  ort.NewShape(meta.InputShape...),
		outputShape: ort.NewShape(meta.OutputShape...),
		Metadata:    meta,
	}, nil
}

func (c *ONNXClassifier) Labels() Labels {
	return Labels(c.Metadata.Classes)
}

func (c *ONNXClassifier) Predict(ctx context.Context, input *imaging.Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if int64(len(input.Data)) != c.inputShape.FlattenedSize() {
		return nil, fmt.Errorf("%w: got %d values, want %v", ErrInputMismatch, len(input.Data), c.inputShape)
	}

	inputTensor, err := ort.NewTensor(c.inputShape, input.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](c.outputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := c.session.Run(
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
	); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	scores := make([]float32, len(outputTensor.GetData()))
	copy(scores, outputTensor.GetData())

	return scores, nil
}

func (c *ONNXClassifier) Close() error {
	var err error
	if c.session != nil {
		err = c.session.Destroy()
		c.session = nil
	}
	if destroyErr := ort.DestroyEnvironment(); destroyErr != nil && err == nil {
		err = destroyErr
	}
	return err
}
