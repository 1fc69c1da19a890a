package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/podclip/internal/asr"
	"github.com/forPelevin/podclip/internal/clips"
	"github.com/forPelevin/podclip/internal/config"
	"github.com/forPelevin/podclip/internal/domain/words"
	"github.com/forPelevin/podclip/internal/media"
	"github.com/forPelevin/podclip/internal/pipeline"
	"github.com/forPelevin/podclip/internal/ports"
	"github.com/forPelevin/podclip/internal/ports/adapters/classifier"
	"github.com/forPelevin/podclip/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/podclip/internal/ports/adapters/whisperapi"
	"github.com/forPelevin/podclip/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/podclip/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/podclip/internal/server"
	"github.com/forPelevin/podclip/internal/store"
	"github.com/forPelevin/podclip/internal/upload"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.ListenAddr = addr
	}
	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Workers = workers
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	jobs, err := store.NewJobStore(filepath.Join(cfg.DataDir, "jobs_index"))
	if err != nil {
		return err
	}
	uploads, err := upload.NewManager(filepath.Join(cfg.DataDir, "chunks"), cfg.ChunkSizeBytes, log)
	if err != nil {
		return err
	}

	tool := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)
	fetcher := ytdlp.New(cfg.YTDLPPath)
	acquirer := media.NewAcquirer(tool, fetcher, log, cfg.FetchTimeout, cfg.RecognizerMaxBytes, cfg.ChunkSeconds, cfg.AudioBitrateKbps)

	var recognizer ports.Recognizer
	switch cfg.RecognizerBackend {
	case "whispercpp":
		recognizer = whispercpp.New(cfg.WhisperBin, cfg.WhisperModel)
	default:
		recognizer = whisperapi.New(cfg.RecognizerAPIKey, cfg.RecognizerModel, cfg.RecognizerBaseURL)
	}
	asrSvc := asr.New(recognizer, filepath.Join(cfg.DataDir, "transcripts"), log)

	cls := classifier.New(cfg.ClassifierAPIKey, cfg.ClassifierModel, cfg.ClassifierBaseURL)
	wordCache := words.NewCache(64, 30*time.Minute)

	runner := pipeline.NewRunner(pipeline.Deps{
		Jobs:                jobs,
		Acquirer:            acquirer,
		ASR:                 asrSvc,
		Classifier:          cls,
		WordCache:           wordCache,
		Log:                 log,
		DataDir:             cfg.DataDir,
		AudienceProfilePath: cfg.AudienceProfilePath,
		TranscriptCharLimit: cfg.TranscriptCharLimit,
	})
	pool := pipeline.NewPool(runner, cfg.Workers, cfg.QueueSize)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	pool.Start(ctx)

	renderer := clips.NewRenderer(tool, filepath.Join(cfg.DataDir, "renders"), cfg.RenderTimeout, log)
	srv := server.New(cfg, jobs, uploads, pool, renderer, wordCache, log)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	pool.Wait()
	return nil
}
