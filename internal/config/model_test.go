package config

import (
	"SignSync/internal/api/relay"
	s3Pkg "SignSync/pkg/s3"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDownloader struct {
	keys []string
	err  error
}

func (f *fakeDownloader) DownloadFile(_ context.Context, key string, dest string) (int64, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return 0, f.err
	}
	// not a real model, so the ONNX load that follows still fails
	return 4, os.WriteFile(dest, []byte("onnx"), 0o644)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func inferenceEnv(t *testing.T) *Env {
	t.Helper()
	return &Env{
		RelayMode: relay.ModeInference,
		Model: ModelEnv{
			Backend:   "onnx",
			Path:      filepath.Join(t.TempDir(), "asl_model.onnx"),
			ImageSize: 224,
		},
	}
}

func TestNewClassifierDegradedModesSkipLoad(t *testing.T) {
	for _, mode := range []relay.Mode{relay.ModeWaiting, relay.ModeUnavailable} {
		cfg := inferenceEnv(t)
		cfg.RelayMode = mode

		source := func(S3Env) (s3Pkg.ItfS3, error) {
			t.Fatal("degraded mode must not fetch the artifact")
			return nil, nil
		}

		model, err := NewClassifier(context.Background(), quietLogger(), cfg, source)
		require.NoError(t, err)
		assert.Nil(t, model)
	}
}

func TestNewClassifierMissingArtifact(t *testing.T) {
	cfg := inferenceEnv(t)

	_, err := NewClassifier(context.Background(), quietLogger(), cfg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStartup)
}

func TestNewClassifierDownloadFailure(t *testing.T) {
	cfg := inferenceEnv(t)
	cfg.S3 = S3Env{Bucket: "models", Key: "asl/asl_model.onnx"}

	downloader := &fakeDownloader{err: errors.New("access denied")}
	source := func(S3Env) (s3Pkg.ItfS3, error) { return downloader, nil }

	_, err := NewClassifier(context.Background(), quietLogger(), cfg, source)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStartup)
	assert.ErrorContains(t, err, "access denied")
	assert.Equal(t, []string{"asl/asl_model.onnx"}, downloader.keys)
}

func TestNewClassifierSkipsDownloadWhenPresent(t *testing.T) {
	cfg := inferenceEnv(t)
	cfg.S3 = S3Env{Bucket: "models", Key: "asl/asl_model.onnx"}
	require.NoError(t, os.WriteFile(cfg.Model.Path, []byte("onnx"), 0o644))

	downloader := &fakeDownloader{}
	source := func(S3Env) (s3Pkg.ItfS3, error) { return downloader, nil }

	// the bytes are not a valid model, so loading fails after the skip
	_, err := NewClassifier(context.Background(), quietLogger(), cfg, source)
	require.ErrorIs(t, err, ErrStartup)
	assert.Empty(t, downloader.keys)
}

func TestNewClassifierRemoteBackend(t *testing.T) {
	cfg := inferenceEnv(t)
	cfg.Model.Backend = "remote"
	cfg.Model.RemoteURL = "ws://127.0.0.1:1/infer"

	model, err := NewClassifier(context.Background(), quietLogger(), cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, model)
	assert.NoError(t, model.Close())
}

func TestNewClassifierUnknownBackend(t *testing.T) {
	cfg := inferenceEnv(t)
	cfg.Model.Backend = "tflite"

	_, err := NewClassifier(context.Background(), quietLogger(), cfg, nil)
	assert.ErrorIs(t, err, ErrStartup)
}
