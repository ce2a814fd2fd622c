// Package main is the entry point for the auralis mastering/playback
// engine: a headless CLI that loads a single track, derives or loads its
// fingerprint, and plays it through the adaptive mastering pipeline with
// the predictive cache and degradation monitor running in the background.
//
// The library scanner, HTTP/WebSocket API, and UI are out of this
// module's scope (spec §1); this binary exists to exercise the engine
// end-to-end, the way the teacher's musicd daemon exercises its own
// audio/queue/ipc stack from cmd/musicd/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matiaszanolli/auralis/core/internal/audio"
	"github.com/matiaszanolli/auralis/core/internal/cache"
	"github.com/matiaszanolli/auralis/core/internal/config"
	"github.com/matiaszanolli/auralis/core/internal/engine"
	"github.com/matiaszanolli/auralis/core/internal/fingerprint"
	"github.com/matiaszanolli/auralis/core/internal/metrics"
	"github.com/matiaszanolli/auralis/core/internal/player"
	"github.com/matiaszanolli/auralis/core/internal/queue"
	"github.com/matiaszanolli/auralis/core/internal/sidecar"
	"github.com/matiaszanolli/auralis/core/internal/types"
)

// Version is set at build time via ldflags.
var Version = "dev"

// cliConfig holds flag-derived settings for one run.
type cliConfig struct {
	ConfigDir  string
	Track      string
	Preset     string
	Intensity  float64
	SampleRate int
	Verbose    bool
}

func main() {
	cfg := parseFlags()

	if cfg.Verbose {
		log.Printf("auralis version %s starting...", Version)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func parseFlags() *cliConfig {
	cfg := &cliConfig{}

	flag.StringVar(&cfg.ConfigDir, "config", "", "Configuration directory (default: ~/.config/auralis)")
	flag.StringVar(&cfg.Track, "track", "", "Path to the audio file to play (required)")
	flag.StringVar(&cfg.Preset, "preset", "adaptive", "Mastering preset: adaptive|gentle|warm|bright|punchy|live")
	flag.Float64Var(&cfg.Intensity, "intensity", 0.5, "Preset intensity in [0,1]")
	flag.IntVar(&cfg.SampleRate, "sample-rate", 44100, "Decode/playback sample rate")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose logging")
	flag.Parse()

	if cfg.ConfigDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("failed to get home directory: %v", err)
		}
		cfg.ConfigDir = homeDir + "/.config/auralis"
	}

	return cfg
}

func run(ctx context.Context, cfg *cliConfig) error {
	if cfg.Track == "" {
		return fmt.Errorf("-track is required")
	}
	preset := types.Preset(cfg.Preset)
	if !types.ValidPreset(preset) {
		return fmt.Errorf("invalid preset %q", cfg.Preset)
	}

	if err := os.MkdirAll(cfg.ConfigDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configMgr := config.NewManager(cfg.ConfigDir)
	if err := configMgr.Load(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	engineCfg := configMgr.Get()

	metrics.Init(metrics.New())
	defer metrics.Shutdown()

	decoder, err := audio.NewFFmpegDecoder()
	if err != nil {
		return fmt.Errorf("failed to initialize decoder: %w", err)
	}

	source, err := audio.DecodeFile(ctx, decoder, cfg.Track, cfg.SampleRate, 2)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", cfg.Track, err)
	}

	fp, err := loadOrAnalyze(cfg.Track, source, engineCfg)
	if err != nil {
		return fmt.Errorf("failed to fingerprint %s: %w", cfg.Track, err)
	}

	const trackID types.TrackID = 1
	track := engine.NewTrack(trackID, cfg.Track, source, fp)

	budgets := map[types.Tier]int64{
		types.TierL1: engineCfg.Cache.TierBudgetsMB.L1 * 1024 * 1024,
		types.TierL2: engineCfg.Cache.TierBudgetsMB.L2 * 1024 * 1024,
		types.TierL3: engineCfg.Cache.TierBudgetsMB.L3 * 1024 * 1024,
	}
	multiCache := cache.NewWithBudgets(budgets)

	queueMgr := queue.NewManager()
	queueMgr.Set([]types.TrackRef{{TrackID: trackID, Path: cfg.Track}})

	session := engine.NewSession(multiCache, queueMgr)
	session.Register(track)
	session.Predictor().SetUserWeight(engineCfg.Predictor.BlendUserWeight)
	session.SetCurrent(trackID, preset, types.QuantizeIntensity(float32(cfg.Intensity)), 0)

	worker := cache.NewWorker(multiCache, session.DesiredSetFunc(), session.ProcessFunc())
	if engineCfg.Cache.WorkerParallelism > 0 {
		worker.SetParallelism(engineCfg.Cache.WorkerParallelism)
	}
	worker.Start(ctx)
	defer worker.Stop()

	var latencySpikes bool
	monitor := cache.NewMonitor(multiCache, worker, func() bool { return latencySpikes })
	monitor.OnLevelChange(func(level types.DegradationLevel) {
		metrics.Global().RecordDegradation(level)
		log.Printf("[ENGINE] degradation level changed to %d", level)
	})
	go monitor.Run(ctx)

	output, err := player.NewOtoOutput(cfg.SampleRate, 2)
	if err != nil {
		return fmt.Errorf("failed to open audio output: %w", err)
	}
	defer output.Close()

	p := player.New(output, func(ev player.StateChangeEvent) {
		if ev.Err != nil {
			log.Printf("[PLAYER] %s (track %d): %v", ev.State, ev.Track.TrackID, ev.Err)
			return
		}
		if cfg.Verbose {
			log.Printf("[PLAYER] %s (track %d)", ev.State, ev.Track.TrackID)
		}
	})
	p.SetNextProvider(session.NextProvider())

	ref, ok := queueMgr.Next()
	if !ok {
		return fmt.Errorf("queue is empty")
	}

	chunkSource, buildErr := session.ChunkSourceFor(ref.TrackID)
	if buildErr != nil {
		return fmt.Errorf("failed to build chunk source: %w", buildErr)
	}

	if playErr := p.Play(ref, chunkSource); playErr != nil {
		return fmt.Errorf("failed to start playback: %w", playErr)
	}

	waitForCompletion(ctx, p)
	return nil
}

// waitForCompletion blocks until ctx is cancelled or the player returns to
// STOPPED/ERROR after having left STOPPED at least once (so it doesn't
// return immediately before playback has actually begun).
func waitForCompletion(ctx context.Context, p *player.Player) {
	started := false
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			switch p.State() {
			case types.StatePlaying, types.StateLoading, types.StatePaused:
				started = true
			case types.StateStopped, types.StateError:
				if started {
					return
				}
			}
		}
	}
}

// loadOrAnalyze returns a valid fingerprint for path, preferring a fresh
// on-disk sidecar and falling back to a full analysis pass (spec §4.9:
// invalid sidecars are deleted and regenerated).
func loadOrAnalyze(path string, source *audio.DecodedSource, engineCfg *config.Config) (fingerprint.Fingerprint, error) {
	if sc, err := sidecar.LoadValid(path); err == nil {
		return sc.Fingerprint.ToFingerprint(), nil
	}

	pcm, err := source.ReadFrames(0, source.TotalFrames())
	if err != nil {
		return fingerprint.Fingerprint{}, err
	}

	strategy := fingerprint.FullStrategy()
	if engineCfg.Chunk.FingerprintStrategy == types.StrategySampled {
		strategy = fingerprint.SampledStrategy(float32(engineCfg.Chunk.SamplingIntervalS))
	}

	analyzer := fingerprint.NewAnalyzer()
	fp, err := analyzer.Analyze(pcm, source.Channels(), source.SampleRate(), strategy)
	if err != nil {
		return fingerprint.Fingerprint{}, err
	}

	if err := writeSidecar(path, source, fp); err != nil {
		log.Printf("[ENGINE] warning: failed to write sidecar for %s: %v", path, err)
	}
	return fp, nil
}

// writeSidecar builds and atomically persists the `.25d` sidecar for path
// (spec §4.9).
func writeSidecar(path string, source *audio.DecodedSource, fp fingerprint.Fingerprint) error {
	durationS := float64(source.TotalFrames()) / float64(source.SampleRate())
	audioFile, err := sidecar.BuildAudioFile(path, durationS, source.SampleRate(), source.Channels())
	if err != nil {
		return err
	}
	sc := &sidecar.Sidecar{
		FormatVersion: sidecar.FormatVersion,
		AudioFile:     audioFile,
		Fingerprint:   sidecar.FromFingerprint(fp),
	}
	return sidecar.Save(sidecar.PathFor(path), sc)
}
