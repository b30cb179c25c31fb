// Package ptt assembles the push-to-talk core: the persisted message
// history, the shared recognition engine, the capture-transcribe session,
// and sequential playback over the history. The host application supplies
// the platform capabilities (audio system, recorder, players, haptics,
// engine initializer) and renders whatever this package reports.
package ptt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ronaldolimacloud/whisper-local-mobile/internal/audio"
	"github.com/ronaldolimacloud/whisper-local-mobile/internal/blob"
	"github.com/ronaldolimacloud/whisper-local-mobile/internal/config"
	"github.com/ronaldolimacloud/whisper-local-mobile/internal/engine"
	"github.com/ronaldolimacloud/whisper-local-mobile/internal/message"
	"github.com/ronaldolimacloud/whisper-local-mobile/internal/playback"
	"github.com/ronaldolimacloud/whisper-local-mobile/internal/routing"
	"github.com/ronaldolimacloud/whisper-local-mobile/internal/session"
	"github.com/ronaldolimacloud/whisper-local-mobile/internal/store"
)

// Re-exported so hosts configure and consume the core through one import.
type (
	Config       = config.Config
	VoiceMessage = message.VoiceMessage
	DayGroup     = message.DayGroup
	Outcome      = session.Outcome
	Queue        = playback.Queue
)

// LoadConfig reads configuration from the environment (see package config).
func LoadConfig() (*Config, error) { return config.Load() }

// Devices are the platform-supplied capabilities.
type Devices struct {
	System   audio.System
	Recorder audio.Recorder
	// Cue plays the short talk chirp; Playback replays recorded clips.
	Cue      audio.Player
	Playback audio.Player
	Haptics  session.Haptics
	// Init loads the recognition engine from the model file.
	Init engine.Initializer
}

// App is one assembled core instance.
type App struct {
	Session *session.Session
	Engines *engine.Manager

	cfg   *Config
	blobs blob.Store
	msgs  *store.Store
	play  audio.Player
	log   *slog.Logger
}

// Open wires an App over the durable store at cfg.StorePath. Close releases
// the engine and the store.
func Open(cfg *Config, dev Devices, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	if dev.System == nil || dev.Recorder == nil || dev.Cue == nil || dev.Init == nil {
		return nil, errors.New("open: missing platform capability")
	}

	blobs, err := blob.OpenSQLite(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	msgs := store.New(blobs)
	engines := engine.NewManager(dev.Init, log)
	route := routing.New(cfg.Platform, dev.System, dev.Cue)

	sess := session.New(session.Config{
		Platform:        cfg.Platform,
		Language:        cfg.Language,
		RecordingsDir:   cfg.RecordingsDir,
		Timeout:         cfg.TranscribeTimeout,
		MinClipDuration: cfg.MinClipDuration,
	}, session.Deps{
		Engines:  engines,
		System:   dev.System,
		Recorder: dev.Recorder,
		Routing:  route,
		Store:    msgs,
		Playback: dev.Playback,
		Haptics:  dev.Haptics,
		Log:      log,
	})

	return &App{
		Session: sess,
		Engines: engines,
		cfg:     cfg,
		blobs:   blobs,
		msgs:    msgs,
		play:    dev.Playback,
		log:     log,
	}, nil
}

// Preload loads the recognition engine at boot so the first press is not
// rejected. Concurrent callers share one load.
func (a *App) Preload(ctx context.Context) error {
	if _, err := a.Engines.EnsureReady(ctx, a.cfg.ModelPath); err != nil {
		return err
	}
	return nil
}

// Messages returns the history in insertion order.
func (a *App) Messages() []VoiceMessage { return a.msgs.Load() }

// History returns the message history sectioned by day for display.
func (a *App) History() []DayGroup {
	return message.GroupByDay(a.msgs.History(), time.Now())
}

// HistoryQueue builds a playback queue over the chronological history.
func (a *App) HistoryQueue() *Queue {
	return playback.FromMessages(a.play, a.msgs.History())
}

// ClearHistory removes every message record. Clip files stay on disk.
func (a *App) ClearHistory() error { return a.msgs.Clear() }

// Close releases the engine and the backing store.
func (a *App) Close() error {
	var errs []error
	if err := a.Engines.Release(); err != nil {
		errs = append(errs, err)
	}
	if err := a.blobs.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	return errors.Join(errs...)
}
