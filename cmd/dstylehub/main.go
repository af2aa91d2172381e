package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/faxe1008/dstylehub/internal/config"
	"github.com/faxe1008/dstylehub/internal/darkroom"
	"github.com/faxe1008/dstylehub/internal/gallery"
	"github.com/faxe1008/dstylehub/internal/infra/kafka/producer"
	"github.com/faxe1008/dstylehub/internal/model"
	"github.com/faxe1008/dstylehub/internal/pipeline"
	"github.com/faxe1008/dstylehub/internal/processor"
	"github.com/faxe1008/dstylehub/internal/repository/development"
	"github.com/faxe1008/dstylehub/internal/service/preview"
	"github.com/faxe1008/dstylehub/internal/storage/file"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const (
	configEnv         = "DSTYLEHUB_CONFIG"
	defaultConfigPath = "./config/config.yml"
)

var requiredFlags = []string{"style-folder", "base-images-folder", "output-folder"}

func main() {
	// Context & signals: cancelling kills the running darktable-cli and stops the batch.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	zlog.Init()
	code := run(ctx, os.Args[1:], os.Stderr)

	stop()
	os.Exit(code)
}

// run parses args, loads the configuration and performs one batch. It
// returns the process exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	flags := newFlagSet(stderr)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if err := checkArgs(flags); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		flags.Usage()
		return exitUsage
	}

	path, required := configPath()
	cfg, err := config.Load(path, required, flags)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("path", path).Msg("failed to load config")
		return exitUsage
	}

	return execute(ctx, cfg)
}

func newFlagSet(stderr io.Writer) *pflag.FlagSet {
	flags := pflag.NewFlagSet("dstylehub", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	flags.String("style-folder", "", "folder containing darktable style files (.dtstyle)")
	flags.String("base-images-folder", "", "folder containing the raw images")
	flags.String("output-folder", "", "folder the developed images and gallery are written to")

	flags.Usage = func() {
		fmt.Fprintln(stderr, "Usage: dstylehub --style-folder DIR --base-images-folder DIR --output-folder DIR")
		fmt.Fprintln(stderr)
		flags.PrintDefaults()
	}
	return flags
}

// checkArgs reports missing required flags and stray positional arguments.
func checkArgs(flags *pflag.FlagSet) error {
	var missing []string
	for _, name := range requiredFlags {
		if v, _ := flags.GetString(name); v == "" {
			missing = append(missing, "--"+name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}
	if flags.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(flags.Args(), " "))
	}
	return nil
}

// configPath returns the configuration file to read and whether it must
// exist. An explicitly configured file is required; the default is not.
func configPath() (string, bool) {
	if p := os.Getenv(configEnv); p != "" {
		return p, true
	}
	return defaultConfigPath, false
}

// execute wires the components for one run and returns the exit code.
func execute(ctx context.Context, cfg *config.Config) int {
	runID := uuid.NewString()
	log := zlog.Logger.With().Str("run", runID).Logger()

	// Retry strategy for Kafka and S3 uploads. Developments are never retried.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	var (
		observers []pipeline.Observer
		history   *development.Repository
	)

	if cfg.Database.Enabled {
		db, err := connectDB(cfg.Database)
		if err != nil {
			log.Error().Err(err).Msg("failed to connect to database")
			return exitFailure
		}
		defer closeDB(db)

		history = development.NewRepository(db)
		observers = append(observers, pipeline.ObserverFunc(func(ctx context.Context, d model.Development) error {
			return history.Save(ctx, runID, d)
		}))
	}

	if cfg.Kafka.Enabled {
		p := producer.New(&cfg.Kafka, strategy)
		defer func() {
			if err := p.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close kafka producer")
			}
		}()

		observers = append(observers, pipeline.ObserverFunc(func(ctx context.Context, d model.Development) error {
			return p.Produce(ctx, runID, d)
		}))
	}

	out := file.NewLocal(cfg.Folders.Output)

	pipe := pipeline.New(
		darkroom.New(cfg.Darktable.Binary),
		pipeline.Options{
			OutputDir: cfg.Folders.Output,
			Width:     cfg.Darktable.Width,
			Quality:   cfg.Darktable.Quality,
			Policy:    pipeline.Policy(cfg.Pipeline.OnFailure),
		},
		observers...,
	)

	svc := preview.NewService(
		pipe,
		processor.New(out, cfg.Gallery.ThumbnailQuality),
		gallery.NewRenderer(out),
		preview.Options{
			StyleDir:        cfg.Folders.Styles,
			ImageDir:        cfg.Folders.BaseImages,
			StyleExtensions: cfg.Input.StyleExtensions,
			ImageExtensions: cfg.Input.ImageExtensions,
			Title:           cfg.Gallery.Title,
			ThumbnailWidth:  cfg.Gallery.ThumbnailWidth,
			PaletteSize:     cfg.Gallery.PaletteSize,
			PaletteMethod:   processor.PaletteMethod(cfg.Gallery.PaletteMethod),
			Captions:        cfg.Gallery.Captions,
		},
	)

	g, err := svc.Generate(ctx, runID)
	if history != nil {
		logHistory(ctx, history, runID)
	}
	if err != nil {
		log.Error().Err(err).Msg("run failed")
		return exitFailure
	}

	if cfg.Storage.Enabled {
		storage, err := file.NewStorage(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.BucketName, cfg.Storage.UseSSL)
		if err != nil {
			log.Error().Err(err).Msg("failed to connect to storage")
			return exitFailure
		}

		n, err := gallery.NewPublisher(storage, strategy).Publish(ctx, out, runID)
		if err != nil {
			log.Error().Err(err).Int("uploaded", n).Msg("failed to publish gallery")
			return exitFailure
		}
		log.Info().Int("files", n).Str("bucket", cfg.Storage.BucketName).Msg("gallery published")
	}

	if g.HasFailures() {
		log.Error().Int("failed", len(g.Failed)).Msg("some developments failed")
		return exitFailure
	}

	log.Info().Str("output", cfg.Folders.Output).Msg("done")
	return exitOK
}

// logHistory logs what the database recorded for the run.
func logHistory(ctx context.Context, repo *development.Repository, runID string) {
	records, err := repo.ListRun(ctx, runID)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("run", runID).Msg("failed to read run history")
		return
	}

	s := development.Summarize(records)
	zlog.Logger.Info().
		Str("run", runID).
		Int("developed", s.Developed).
		Int("failed", s.Failed).
		Dur("tool_time", s.Duration).
		Msg("run history recorded")
}

// connectDB connects to PostgreSQL (master and slaves).
func connectDB(cfg config.Database) (*dbpg.DB, error) {
	opts := &dbpg.Options{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Slaves))
	for _, s := range cfg.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	return dbpg.New(cfg.Master.DSN(), slaveDSNs, opts)
}

func closeDB(db *dbpg.DB) {
	if err := db.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close master DB")
	}
	for i, s := range db.Slaves {
		if err := s.Close(); err != nil {
			zlog.Logger.Error().Err(err).Int("slave", i).Msg("failed to close slave DB")
		}
	}
}
