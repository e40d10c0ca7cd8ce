package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3200"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
}

// RemoteEnv configures the remote backing store. An empty URL selects local
// (offline) mode for the process lifetime.
type RemoteEnv struct {
	URL          string        `envconfig:"REMOTE_URL"`
	AnonKey      string        `envconfig:"REMOTE_ANON_KEY"`
	ServiceToken string        `envconfig:"REMOTE_SERVICE_TOKEN"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".sdwf/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"sdwf/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-southeast-1"`
}

type TemplateEnv struct {
	Path  string `envconfig:"TEMPLATE_PATH"`
	Watch bool   `envconfig:"TEMPLATE_WATCH" default:"true"`
}

type Env struct {
	BaseEnv
	RemoteEnv
	StorageEnv
	TemplateEnv
}

const namespace = "SDWF"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

// RemoteEnabled reports whether the process runs against the remote store.
func (e *RemoteEnv) RemoteEnabled() bool {
	return e != nil && e.URL != ""
}
