package config

import (
	"SignSync/internal/api/relay"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Env is the process configuration, read from the environment after an
// optional .env file.
type Env struct {
	AppEnv  string `env:"APP_ENV" envDefault:"production" validate:"oneof=production development test"`
	AppHost string `env:"APP_HOST" envDefault:"0.0.0.0" validate:"required"`
	AppPort int    `env:"APP_PORT" envDefault:"8080" validate:"min=1,max=65535"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"https://signsyncai.org" validate:"min=1,dive,required"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn warning error fatal panic"`
	LogDir   string `env:"LOG_DIR" envDefault:"./storage/logs"`

	RelayMode        relay.Mode    `env:"RELAY_MODE" envDefault:"waiting" validate:"oneof=inference waiting unavailable"`
	LegacyEventNames bool          `env:"LEGACY_EVENT_NAMES" envDefault:"false"`
	SocketIdle       time.Duration `env:"SOCKET_IDLE_TIMEOUT" envDefault:"60s" validate:"gt=0"`
	UpgradeRate      float64       `env:"SOCKET_UPGRADE_RATE" envDefault:"5" validate:"gt=0"`
	UpgradeBurst     int           `env:"SOCKET_UPGRADE_BURST" envDefault:"10" validate:"gt=0"`
	MaxMessageBytes  int64         `env:"SOCKET_MAX_MESSAGE_BYTES" envDefault:"4194304" validate:"gt=0"`

	Model ModelEnv
	S3    S3Env
}

type ModelEnv struct {
	Backend           string `env:"MODEL_BACKEND" envDefault:"onnx" validate:"oneof=onnx remote"`
	Path              string `env:"MODEL_PATH" envDefault:"./model/asl_model.onnx"`
	MetadataPath      string `env:"MODEL_METADATA_PATH"`
	SharedLibraryPath string `env:"ONNXRUNTIME_LIB"`
	InputName         string `env:"MODEL_INPUT_NAME"`
	OutputName        string `env:"MODEL_OUTPUT_NAME"`
	ImageSize         int    `env:"MODEL_IMAGE_SIZE" envDefault:"224" validate:"min=1,max=4096"`
	RemoteURL         string `env:"INFERENCE_WS_URL" validate:"omitempty,url"`
}

type S3Env struct {
	Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
	Bucket          string `env:"MODEL_S3_BUCKET"`
	Key             string `env:"MODEL_S3_KEY"`
	Endpoint        string `env:"AWS_S3_ENDPOINT" validate:"omitempty,url"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
}

func NewValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// LoadDotEnv loads the given files into the environment. A missing file is
// not an error; deployments usually configure through real env vars.
func LoadDotEnv(files ...string) (bool, error) {
	if err := godotenv.Load(files...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("load .env: %w", err)
	}
	return true, nil
}

func ParseEnv(validate *validator.Validate) (*Env, error) {
	var cfg Env
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.RelayMode == relay.ModeInference && cfg.Model.Backend == "remote" && cfg.Model.RemoteURL == "" {
		return nil, fmt.Errorf("invalid configuration: INFERENCE_WS_URL is required for the remote backend")
	}

	return &cfg, nil
}

func (e *Env) Address() string {
	return fmt.Sprintf("%s:%d", e.AppHost, e.AppPort)
}

func (e *Env) IsDevelopment() bool {
	return e.AppEnv == "development"
}

func (e *Env) WantsModelDownload() bool {
	return e.S3.Bucket != "" && e.S3.Key != ""
}
