// Package main is the entry point for the musicd daemon.
// musicd is a headless audio playback daemon that integrates with OS media sessions
// and communicates with clients (like the VS Code extension) via IPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/austinkregel/rune-musicd/internal/analysis"
	"github.com/austinkregel/rune-musicd/internal/audio"
	"github.com/austinkregel/rune-musicd/internal/auth"
	"github.com/austinkregel/rune-musicd/internal/batcher"
	"github.com/austinkregel/rune-musicd/internal/catalog"
	"github.com/austinkregel/rune-musicd/internal/config"
	"github.com/austinkregel/rune-musicd/internal/engine"
	"github.com/austinkregel/rune-musicd/internal/httpapi"
	"github.com/austinkregel/rune-musicd/internal/ipc"
	"github.com/austinkregel/rune-musicd/internal/media"
	"github.com/austinkregel/rune-musicd/internal/queue"
	"github.com/austinkregel/rune-musicd/internal/scanner"
	"github.com/austinkregel/rune-musicd/internal/search"
)

// Version is set at build time via ldflags
var Version = "dev"

// Config holds daemon configuration
type Config struct {
	SocketPath string
	ConfigDir  string
	HTTPAddr   string
	TestMode   bool
	Verbose    bool
}

func main() {
	cfg := parseFlags()

	if cfg.Verbose {
		log.Printf("musicd version %s starting...", Version)
	}

	// Create context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func parseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.SocketPath, "socket", "", "IPC socket path (default: auto-generated based on UID)")
	flag.StringVar(&cfg.ConfigDir, "config", "", "Configuration directory (default: ~/.config/musicd)")
	flag.StringVar(&cfg.HTTPAddr, "http", "127.0.0.1:0", "Address for the read-only status HTTP API (empty disables it)")
	flag.BoolVar(&cfg.TestMode, "test-mode", false, "Run in test mode (auto-approve pairing)")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose logging")
	flag.Parse()

	// Set defaults
	if cfg.ConfigDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}
		cfg.ConfigDir = homeDir + "/.config/musicd"
	}

	if cfg.SocketPath == "" {
		cfg.SocketPath = fmt.Sprintf("/tmp/musicd-%d.sock", os.Getuid())
	}

	return cfg
}

func run(ctx context.Context, cfg *Config) error {
	// Ensure config directory exists
	if err := os.MkdirAll(cfg.ConfigDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Initialize config manager
	configMgr := config.NewManager(cfg.ConfigDir)
	if err := configMgr.Load(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	daemonCfg := configMgr.Get()

	// Initialize auth
	authStore, err := auth.NewStore(cfg.ConfigDir + "/clients.json")
	if err != nil {
		return fmt.Errorf("failed to initialize auth store: %w", err)
	}
	authManager := auth.NewManager(authStore, cfg.TestMode)

	// Initialize media session (platform-specific)
	mediaSession, err := media.NewSession()
	if err != nil {
		log.Printf("[MEDIA] Warning: failed to initialize media session: %v", err)
		log.Printf("[MEDIA] Continuing without OS media integration")
		mediaSession = media.NewNoOpSession()
	} else {
		log.Printf("[MEDIA] Media session initialized successfully")
	}

	// Initialize catalog and search index
	catalogDB, err := catalog.Open(filepath.Join(cfg.ConfigDir, daemonCfg.Engine.CatalogDBFile))
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	searchIdx := search.New()

	// Initialize the similarity feature store, used by continue mode to
	// pick a follow-up track once the queue runs dry.
	featureStore, err := analysis.NewFeatureStore(cfg.ConfigDir)
	if err != nil {
		log.Printf("[SIMILARITY] Warning: failed to open feature store: %v", err)
	}
	var similarityEngine *analysis.SimilarityEngine
	if featureStore != nil {
		similarityEngine = analysis.NewSimilarityEngine(featureStore)
	}

	// Initialize queue manager (and its persistence)
	queueMgr := queue.NewManager()
	if similarityEngine != nil {
		queueMgr.SetSimilarityProvider(func(trackPath string, exclude []string) string {
			edges := similarityEngine.FindSimilar(trackPath, 1, exclude)
			if len(edges) == 0 {
				return ""
			}
			return edges[0].TargetPath
		})
	}
	var queueStore *queue.Store
	if daemonCfg.Behavior.RememberQueue {
		queueStore = queue.NewStore(cfg.ConfigDir, queueMgr)
		if err := queueStore.Load(); err != nil {
			log.Printf("[QUEUE] Warning: failed to load saved queue: %v", err)
		} else {
			idx, size := queueMgr.Position()
			if size > 0 {
				log.Printf("[QUEUE] Loaded saved queue: %d items, position %d", size, idx)
			}
		}
		queueMgr.SetOnChange(func() {
			if err := queueStore.Save(); err != nil {
				log.Printf("[QUEUE] Warning: failed to save queue: %v", err)
			}
		})
	}

	// Initialize the Real-Time FFT Analyzer and wire its tap into the
	// track opener, which is the Engine's audio sink.
	analyzer := audio.NewAnalyzer(daemonCfg.Engine.FFTWindowSize, 1)
	opener := audio.NewTrackOpener(analyzer.AddData)
	if daemonCfg.Audio.DefaultVolume > 0 {
		opener.SetVolume(daemonCfg.Audio.DefaultVolume)
	}

	// Initialize the playback Engine, backed by the queue manager's
	// shuffle/repeat state via OrderAdapter.
	engineCancel := engine.NewCancellation()
	defer engineCancel.Cancel()
	eng := engine.New(opener, analyzer.Subscribe(), engineCancel)
	eng.SetOrderProvider(queue.NewOrderAdapter(queueMgr))
	eng.SetTimings(
		time.Duration(daemonCfg.Engine.ProgressTickMs)*time.Millisecond,
		time.Duration(daemonCfg.Engine.PlaylistDebounceMs)*time.Millisecond,
	)
	go eng.Run()

	// Initialize IPC server, wired to the Engine rather than a direct
	// audio player.
	server, err := ipc.NewServer(cfg.SocketPath, authManager, configMgr, eng, opener, queueMgr, mediaSession, catalogDB, searchIdx)
	if err != nil {
		return fmt.Errorf("failed to initialize IPC server: %w", err)
	}
	go server.RunEventLoop(ctx)

	// Start the read-only HTTP status API alongside IPC.
	if cfg.HTTPAddr != "" {
		statusAPI := httpapi.New(eng, catalogDB, featureStore)
		go func() {
			if err := statusAPI.Run(ctx, cfg.HTTPAddr); err != nil {
				log.Printf("[HTTP] status API stopped: %v", err)
			}
		}()
	}

	// Run one analysis batch pass in the background so newly cataloged
	// files pick up descriptors without blocking startup.
	go runInitialAnalysis(ctx, catalogDB, daemonCfg, engineCancel)

	// Run the throttled similarity-feature pass alongside it. This feeds
	// featureStore/similarityEngine (continue mode) rather than the
	// catalog, so it can afford to yield to playback instead of racing
	// the batcher to finish.
	if featureStore != nil && len(daemonCfg.LibraryPaths) > 0 {
		go runSimilarityAnalysis(ctx, featureStore, daemonCfg.LibraryPaths, daemonCfg.Audio.SampleRate, eng)
	}

	// Start the IPC server
	log.Printf("Starting IPC server on %s", cfg.SocketPath)
	if err := server.Start(ctx); err != nil {
		saveQueueOnShutdown(queueStore)
		return fmt.Errorf("IPC server error: %w", err)
	}

	saveQueueOnShutdown(queueStore)
	return nil
}

func saveQueueOnShutdown(queueStore *queue.Store) {
	if queueStore == nil {
		return
	}
	if err := queueStore.Save(); err != nil {
		log.Printf("[QUEUE] Warning: failed to save queue on shutdown: %v", err)
	} else {
		log.Printf("[QUEUE] Queue saved on shutdown")
	}
}

// runInitialAnalysis walks the first configured library path through
// the batcher once at startup, matching the analysis batcher's role as an
// Analysis Batcher as an on-demand pass rather than a background daemon
// loop.
func runInitialAnalysis(ctx context.Context, catalogDB *catalog.DB, cfg *config.Config, cancel *engine.Cancellation) {
	if len(cfg.LibraryPaths) == 0 {
		return
	}

	extractor, err := analysis.NewBatchExtractor(cfg.Audio.SampleRate)
	if err != nil {
		log.Printf("[BATCH] extractor unavailable: %v", err)
		return
	}

	root := cfg.LibraryPaths[0]
	total, err := batcher.Run(catalogDB, root, extractor, cancel, func(processed, total int) {
		log.Printf("[BATCH] analyzed %d/%d files", processed, total)
	})
	if err != nil {
		log.Printf("[BATCH] run failed: %v", err)
		return
	}
	log.Printf("[BATCH] analysis pass complete over %d cataloged files", total)
}

// runSimilarityAnalysis walks the library with a scanner and feeds every
// track through a throttled Worker, storing the resulting feature
// vectors in store so SimilarityEngine.FindSimilar has edges to serve
// once continue mode needs one. It starts a single worker if the Engine
// is playing when the pass begins, and sleeps longer between tracks
// whenever the Engine is playing, so it competes less with decoding for CPU.
func runSimilarityAnalysis(ctx context.Context, store *analysis.FeatureStore, libraryPaths []string, sampleRate int, eng *engine.Engine) {
	sc := scanner.NewScanner()
	results := sc.ScanPaths(ctx, libraryPaths)

	var tracks []analysis.TrackInfo
	for _, res := range results {
		for _, f := range res.Files {
			if store.HasFeatures(f.Path, analysis.FeatureVersion) {
				continue
			}
			tracks = append(tracks, analysis.TrackInfo{Path: f.Path})
		}
	}
	if len(tracks) == 0 {
		return
	}

	worker, err := analysis.NewWorker(analysis.WorkerConfig{
		SampleRate:    sampleRate,
		IsPlayingFunc: func() bool { return eng.State() == engine.Playing },
		OnResult: func(r analysis.AnalysisResult) {
			if r.Error != nil || r.Features == nil {
				return
			}
			store.StoreFeatures(r.TrackPath, r.Features, analysis.FeatureVersion, r.FileHash)
		},
	})
	if err != nil {
		log.Printf("[SIMILARITY] worker unavailable: %v", err)
		return
	}

	if err := worker.Start(ctx, tracks); err != nil {
		log.Printf("[SIMILARITY] failed to start worker: %v", err)
		return
	}

	<-ctx.Done()
	worker.Stop()
	if err := store.Save(); err != nil {
		log.Printf("[SIMILARITY] Warning: failed to save feature store: %v", err)
	}
}
