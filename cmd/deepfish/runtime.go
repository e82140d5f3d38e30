// Package main provides runtime wiring for the engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vinayprograms/agentkit/telemetry"

	"github.com/deepfish/engine/internal/bridge"
	"github.com/deepfish/engine/internal/config"
	"github.com/deepfish/engine/internal/engine"
	"github.com/deepfish/engine/internal/gateway"
	"github.com/deepfish/engine/internal/memory"
	"github.com/deepfish/engine/internal/persona"
	"github.com/deepfish/engine/internal/snapshot"
	"github.com/deepfish/engine/internal/speech"
	"github.com/deepfish/engine/internal/transcript"
)

// runtime holds everything a running session needs.
type runtime struct {
	cfg          *config.Config
	registry     *persona.Registry
	eng          *engine.Engine
	store        *transcript.FileStore
	snapshotPath string
	noSpeech     bool

	// Components
	gw      gateway.Gateway
	mem     memory.Store
	synth   speech.Synthesizer
	telem   telemetry.Exporter
	pub     *bridge.Publisher
	watcher *persona.Watcher

	// Storage
	storagePath string

	// Cleanup
	closers []func()
}

// newRuntime loads configuration and the roster. Component wiring
// happens in setup.
func newRuntime(configPath, rosterPath, snapshotPath string) (*runtime, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = config.Default()
	}
	if rosterPath != "" {
		cfg.Roster.Path = rosterPath
	}

	rt := &runtime{
		cfg:          cfg,
		registry:     persona.NewRegistry(),
		snapshotPath: snapshotPath,
	}
	if rt.storagePath, err = cfg.StoragePath(); err != nil {
		return nil, err
	}

	roster, err := persona.LoadRoster(cfg.Roster.Path)
	if err != nil {
		return nil, err
	}
	if err := roster.Apply(rt.registry); err != nil {
		return nil, err
	}
	return rt, nil
}

// disableSpeech turns off voice synthesis regardless of config.
func (rt *runtime) disableSpeech() {
	rt.noSpeech = true
}

// setup initializes all runtime components.
func (rt *runtime) setup() error {
	if err := os.MkdirAll(rt.storagePath, 0755); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}

	rt.createGateway()
	if err := rt.setupMemory(); err != nil {
		return err
	}
	rt.setupSpeech()
	if err := rt.setupTelemetry(); err != nil {
		return err
	}
	rt.createEngine()
	rt.setupBridge()
	rt.setupRosterWatch()
	if err := rt.setupTranscripts(); err != nil {
		return err
	}
	return rt.restoreSnapshot()
}

// createGateway builds the LLM gateway from config defaults.
func (rt *runtime) createGateway() {
	backoff, err := time.ParseDuration(rt.cfg.LLM.RetryBackoff)
	if err != nil {
		backoff = 60 * time.Second
	}
	retries := rt.cfg.LLM.MaxRetries
	if retries <= 0 {
		retries = 5
	}
	rt.gw = gateway.NewProviderGateway(globalCreds, gateway.Options{
		DefaultModel: rt.cfg.LLM.Model,
		MaxTokens:    rt.cfg.LLM.MaxTokens,
		BaseURL:      rt.cfg.LLM.BaseURL,
		Thinking:     rt.cfg.LLM.Thinking,
		MaxRetries:   retries,
		MaxBackoff:   backoff,
	})
}

// setupMemory picks indexed or ephemeral persona memory.
func (rt *runtime) setupMemory() error {
	if !rt.cfg.Storage.PersistMemory {
		rt.mem = memory.NewInMemoryStore()
		return nil
	}
	store, err := memory.NewBleveStore(filepath.Join(rt.storagePath, "memories.bleve"))
	if err != nil {
		return fmt.Errorf("creating memory index: %w", err)
	}
	rt.mem = store
	rt.addCloser(func() { store.Close() })
	return nil
}

// setupSpeech builds the voice synthesizer, if configured.
func (rt *runtime) setupSpeech() {
	if rt.noSpeech || !rt.cfg.Speech.Enabled {
		rt.synth = speech.Noop{}
		return
	}
	key := rt.cfg.GetSpeechKey()
	if key == "" {
		fmt.Fprintln(os.Stderr, "warning: speech enabled but no API key found, staying silent")
		rt.synth = speech.Noop{}
		return
	}
	baseURL := rt.cfg.Speech.BaseURL
	if baseURL == "" {
		baseURL = speech.DefaultBaseURL
	}
	rt.synth = speech.NewClient(baseURL, key)
}

// setupTelemetry creates the telemetry exporter.
func (rt *runtime) setupTelemetry() error {
	var err error
	if rt.cfg.Telemetry.Enabled {
		rt.telem, err = telemetry.NewExporter(rt.cfg.Telemetry.Protocol, rt.cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("creating telemetry exporter: %w", err)
		}
	} else {
		rt.telem = telemetry.NewNoopExporter()
	}
	rt.addCloser(func() { rt.telem.Close() })
	return nil
}

// createEngine assembles the engine from configured components.
func (rt *runtime) createEngine() {
	rt.eng = engine.New(engine.Config{
		Registry: rt.registry,
		Gateway:  rt.gw,
		Memory:   rt.mem,
		Synth:    rt.synth,
		FeedSize: rt.cfg.Engine.FeedSize,
	})
	rt.addCloser(rt.eng.Close)
}

// setupBridge connects the NATS event bridge when enabled. A broker
// that is down is a warning, not a failure.
func (rt *runtime) setupBridge() {
	if !rt.cfg.Bridge.Enabled {
		return
	}
	pub, err := bridge.Connect(rt.cfg.Bridge.URL, rt.eng.SessionID())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: event bridge unavailable: %v\n", err)
		return
	}
	pub.Attach(rt.eng)
	rt.pub = pub
	rt.addCloser(pub.Close)
	fmt.Fprintf(os.Stderr, "✓ Event bridge connected: %s\n", rt.cfg.Bridge.URL)
}

// setupRosterWatch reloads the roster on file change when enabled.
func (rt *runtime) setupRosterWatch() {
	if !rt.cfg.Roster.Watch {
		return
	}
	w, err := persona.WatchRoster(rt.cfg.Roster.Path, rt.registry, func(err error) {
		fmt.Fprintf(os.Stderr, "warning: roster reload failed: %v\n", err)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: roster watch unavailable: %v\n", err)
		return
	}
	rt.watcher = w
	rt.addCloser(func() { w.Close() })
}

// setupTranscripts creates the transcript store.
func (rt *runtime) setupTranscripts() error {
	store, err := transcript.NewFileStore(filepath.Join(rt.storagePath, "transcripts"))
	if err != nil {
		return fmt.Errorf("creating transcript store: %w", err)
	}
	rt.store = store
	return nil
}

// restoreSnapshot loads prior session state when the file exists.
func (rt *runtime) restoreSnapshot() error {
	if rt.snapshotPath == "" {
		return nil
	}
	doc, err := snapshot.ReadFile(rt.snapshotPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := rt.eng.Restore(context.Background(), doc); err != nil {
		return fmt.Errorf("restoring snapshot: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Restored session state from %s\n", rt.snapshotPath)
	return nil
}

// persist saves the transcript log and the session snapshot.
func (rt *runtime) persist(ctx context.Context) error {
	if err := rt.store.Save(rt.eng.Transcripts()); err != nil {
		return fmt.Errorf("saving transcript: %w", err)
	}
	if rt.snapshotPath == "" {
		return nil
	}
	doc, err := rt.eng.Capture(ctx)
	if err != nil {
		return fmt.Errorf("capturing session state: %w", err)
	}
	if err := snapshot.WriteFile(rt.snapshotPath, doc); err != nil {
		return fmt.Errorf("saving session state: %w", err)
	}

	// Keep a short rolling history so a bad save can be walked back.
	archive, err := snapshot.NewArchive(filepath.Join(rt.storagePath, "snapshots"))
	if err != nil {
		return err
	}
	if _, err := archive.Save(doc); err != nil {
		return err
	}
	return archive.Prune(10)
}

// cleanup runs all registered cleanup functions.
func (rt *runtime) cleanup() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// addCloser registers a cleanup function.
func (rt *runtime) addCloser(fn func()) {
	rt.closers = append(rt.closers, fn)
}

