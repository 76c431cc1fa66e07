package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/tendant/simple-ingest/pkg/simpleingest/config"
)

const usage = `Simple Ingest CLI

Stores files and remote resources, generates previews and manages upload quotas.

USAGE:
  ingest <command> [options] [argument]

COMMANDS:
  file      Ingest a local file
  url       Fetch a URL and ingest it
  preview   Generate missing previews for one content record
  backfill  Generate missing previews for all of an owner's contents
  limit     Show or set an owner's upload limit

ENVIRONMENT VARIABLES:
  DATABASE_URL        memory or postgres://... (default: memory)
  DB_SCHEMA           PostgreSQL schema name (default: ingest)
  DB_MIGRATE          Create the schema and tables on startup
  STORAGE_URL         memory://, file:///path or s3://bucket?region=... (default: memory)
  FFMPEG_PATH         ffmpeg binary used for video drivers (default: ffmpeg)
  YTDLP_PATH          yt-dlp binary used for video downloads (default: yt-dlp)
  TEMP_DIR            Scratch directory for spooled input
  FETCH_TIMEOUT       HTTP timeout for url ingestion (default: 60s)
  BACKFILL_PAGE_SIZE  Records per backfill batch (default: 100)
  LOG_LEVEL           debug, info, warn or error (default: info)
  LOG_FORMAT          text or json (default: text)
  ENV_PREFIX          Prefix applied to the variables above

  Configuration can be loaded from a .env file in the current directory.

EXAMPLES:
  # Ingest a file
  ingest file --owner=550e8400-e29b-41d4-a716-446655440000 ./photo.jpg

  # Unpack an archive into a directory blob
  ingest file --owner=550e8400-e29b-41d4-a716-446655440000 --driver=archive ./site.zip

  # Download a video
  ingest url --owner=550e8400-e29b-41d4-a716-446655440000 --driver=youtube-video https://youtu.be/dQw4w9WgXcQ

  # Backfill previews, listing what would change first
  ingest backfill --owner=550e8400-e29b-41d4-a716-446655440000 --dry-run
  ingest backfill --owner=550e8400-e29b-41d4-a716-446655440000 --force

  # Allow 1 GiB per 30 days
  ingest limit --owner=550e8400-e29b-41d4-a716-446655440000 --set=1073741824 --period=720h
`

// Env holds the process level settings read before the pipeline config.
type Env struct {
	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"LOG_FORMAT" env-default:"text"`
	EnvPrefix string `env:"ENV_PREFIX" env-default:""`
}

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" || command == "--help" || command == "-h" {
		printUsage(os.Stdout)
		os.Exit(0)
	}

	handler, ok := commands[command]
	if !ok {
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage(os.Stdout)
		os.Exit(1)
	}

	var env Env
	if err := cleanenv.ReadEnv(&env); err != nil {
		slog.Error("Failed to read environment", "error", err)
		os.Exit(1)
	}
	logger := newLogger(env)
	slog.SetDefault(logger)

	cfg, err := config.Load(config.WithEnv(env.EnvPrefix), config.WithLogger(logger))
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := cfg.Build(ctx)
	if err != nil {
		logger.Error("Failed to initialize pipeline", "error", err)
		os.Exit(1)
	}

	err = handler(ctx, rt, cfg, os.Args[2:])
	rt.Close()
	if err != nil {
		logger.Error("Command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, usage)
}

func newLogger(env Env) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(env.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(env.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
