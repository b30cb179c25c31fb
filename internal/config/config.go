// Package config loads runtime configuration from the environment, with an
// optional .env file for development builds.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/ronaldolimacloud/whisper-local-mobile/internal/audio"
)

// Config holds everything the capture core needs to run on one device.
type Config struct {
	// ModelPath locates the recognition model file. Required before the
	// engine can load; EnsureReady rejects a first load without it.
	ModelPath string
	// DataDir is the app-private root for persisted state.
	DataDir string
	// RecordingsDir is where durable clip copies live.
	RecordingsDir string
	// StorePath is the blob database file.
	StorePath string
	// Language passed to the engine.
	Language string
	Platform audio.Platform
	// TranscribeTimeout bounds one transcription run.
	TranscribeTimeout time.Duration
	// MinClipDuration is the likely-empty heuristic threshold.
	MinClipDuration time.Duration
}

// Load reads configuration from a .env file (if present) and the
// environment, filling unset values with defaults rooted at the user home
// directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home dir: %w", err)
	}
	dataDir := getEnv("WLM_DATA_DIR", filepath.Join(home, ".whisper-local-mobile"))

	cfg := &Config{
		ModelPath:     getEnv("WLM_MODEL_PATH", ""),
		DataDir:       dataDir,
		RecordingsDir: getEnv("WLM_RECORDINGS_DIR", filepath.Join(dataDir, "recordings")),
		StorePath:     getEnv("WLM_STORE_PATH", filepath.Join(dataDir, "storage.sqlite")),
		Language:      getEnv("WLM_LANGUAGE", "en"),
	}

	platform, err := parsePlatform(getEnv("WLM_PLATFORM", string(audio.IOS)))
	if err != nil {
		return nil, err
	}
	cfg.Platform = platform

	cfg.TranscribeTimeout, err = getDurationEnv("WLM_TRANSCRIBE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.MinClipDuration, err = getDurationEnv("WLM_MIN_CLIP_DURATION", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func parsePlatform(s string) (audio.Platform, error) {
	switch audio.Platform(s) {
	case audio.IOS:
		return audio.IOS, nil
	case audio.Android:
		return audio.Android, nil
	default:
		return "", fmt.Errorf("WLM_PLATFORM: unknown platform %q", s)
	}
}

// getEnv returns the environment value for key or the default when unset.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getDurationEnv parses a duration environment value ("45s", "500ms").
func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: duration must be positive, got %s", key, d)
	}
	return d, nil
}
