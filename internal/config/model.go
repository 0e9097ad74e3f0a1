package config

import (
	"SignSync/internal/api/relay"
	"SignSync/pkg/classifier"
	"SignSync/pkg/response"
	s3Pkg "SignSync/pkg/s3"
	websocketPkg "SignSync/pkg/websocket"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrStartup = response.NewError(http.StatusInternalServerError, "failed to start frame relay")

// ArtifactSource is how the model file gets onto local disk when it is not
// already there.
type ArtifactSource func(cfg S3Env) (s3Pkg.ItfS3, error)

// DefaultArtifactSource builds the S3 downloader from the environment.
func DefaultArtifactSource(cfg S3Env) (s3Pkg.ItfS3, error) {
	return s3Pkg.New(s3Pkg.Config{
		Region:          cfg.Region,
		Bucket:          cfg.Bucket,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
}

// NewClassifier loads the configured backend. Degraded modes return a nil
// classifier and never touch the artifact. Every failure is an ErrStartup.
func NewClassifier(ctx context.Context, logger *logrus.Logger, cfg *Env, source ArtifactSource) (classifier.Classifier, error) {
	if cfg.RelayMode != relay.ModeInference {
		logger.WithField("mode", cfg.RelayMode).Info("Degraded mode, skipping model load")
		return nil, nil
	}

	switch cfg.Model.Backend {
	case "remote":
		client := websocketPkg.NewInferenceClient(websocketPkg.Config{URL: cfg.Model.RemoteURL})
		logger.WithField("url", cfg.Model.RemoteURL).Info("Using remote inference backend")
		return client, nil

	case "onnx":
		if err := fetchArtifact(ctx, logger, cfg, source); err != nil {
			return nil, response.Wrap(ErrStartup, err)
		}

		model, err := classifier.NewONNX(classifier.ONNXConfig{
			ModelPath:         cfg.Model.Path,
			MetadataPath:      cfg.Model.MetadataPath,
			SharedLibraryPath: cfg.Model.SharedLibraryPath,
			InputName:         cfg.Model.InputName,
			OutputName:        cfg.Model.OutputName,
			ImageSize:         cfg.Model.ImageSize,
		})
		if err != nil {
			return nil, response.Wrap(ErrStartup, err)
		}

		if size := model.Metadata.ImageSize; size > 0 && size != cfg.Model.ImageSize {
			logger.WithFields(logrus.Fields{
				"configured": cfg.Model.ImageSize,
				"metadata":   size,
			}).Warn("Model metadata overrides configured image size")
			cfg.Model.ImageSize = size
		}

		logger.WithFields(logrus.Fields{
			"path":    cfg.Model.Path,
			"input":   model.Metadata.InputName,
			"output":  model.Metadata.OutputName,
			"classes": len(model.Metadata.Classes),
		}).Info("Loaded ONNX model")
		return model, nil

	default:
		return nil, response.Wrap(ErrStartup, fmt.Errorf("unknown model backend %q", cfg.Model.Backend))
	}
}

func fetchArtifact(ctx context.Context, logger *logrus.Logger, cfg *Env, source ArtifactSource) error {
	if _, err := os.Stat(cfg.Model.Path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("model artifact %q: %w", cfg.Model.Path, err)
	}

	if !cfg.WantsModelDownload() {
		return nil
	}
	if source == nil {
		source = DefaultArtifactSource
	}

	downloader, err := source(cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	n, err := downloader.DownloadFile(ctx, cfg.S3.Key, cfg.Model.Path)
	if err != nil {
		return fmt.Errorf("failed to download s3://%s/%s: %w", cfg.S3.Bucket, cfg.S3.Key, err)
	}

	logger.WithFields(logrus.Fields{
		"bucket":   cfg.S3.Bucket,
		"key":      cfg.S3.Key,
		"bytes":    n,
		"duration": time.Since(start).String(),
	}).Info("Downloaded model artifact")
	return nil
}
