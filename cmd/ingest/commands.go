package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
	"github.com/tendant/simple-ingest/pkg/simpleingest/config"
	"github.com/tendant/simple-ingest/pkg/simpleingest/scan"
)

type command func(ctx context.Context, rt *config.Runtime, cfg *config.Config, args []string) error

var commands = map[string]command{
	"file":     runFile,
	"url":      runURL,
	"preview":  runPreview,
	"backfill": runBackfill,
	"limit":    runLimit,
}

// errUsage is returned after the flag set has printed its own help.
var errUsage = errors.New("invalid usage")

func parseFlags(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		return errUsage
	}
	return nil
}

func parseOwner(value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, fmt.Errorf("--owner is required")
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --owner: %w", err)
	}
	return id, nil
}

func parseOptionalID(flag, value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return &id, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportProgress logs driver progress until the returned stop func is called.
func reportProgress() (chan<- simpleingest.Progress, func()) {
	ch := make(chan simpleingest.Progress, 16)
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		for {
			select {
			case p := <-ch:
				slog.Info("Progress",
					"driver", p.Driver,
					"processed", p.Processed,
					"bytes", p.Bytes,
					"percent", fmt.Sprintf("%.1f", p.Percent),
					"done", p.Done)
			case <-done:
				return
			}
		}
	}()

	return ch, func() {
		close(done)
		<-finished
	}
}

type ingestFlags struct {
	owner    string
	name     string
	mimeType string
	driver   string
	group    string
	folder   string
}

func (f *ingestFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.owner, "owner", "", "owner ID (required)")
	fs.StringVar(&f.name, "name", "", "file name recorded with the content")
	fs.StringVar(&f.mimeType, "mime", "", "media type, detected when empty")
	fs.StringVar(&f.driver, "driver", "", "upload driver to run before storing")
	fs.StringVar(&f.group, "group", "", "group ID")
	fs.StringVar(&f.folder, "folder", "", "folder ID")
}

func (f *ingestFlags) ids() (owner uuid.UUID, group, folder *uuid.UUID, err error) {
	if owner, err = parseOwner(f.owner); err != nil {
		return
	}
	if group, err = parseOptionalID("group", f.group); err != nil {
		return
	}
	folder, err = parseOptionalID("folder", f.folder)
	return
}

func runFile(ctx context.Context, rt *config.Runtime, cfg *config.Config, args []string) error {
	var flags ingestFlags
	fs := pflag.NewFlagSet("file", pflag.ContinueOnError)
	flags.register(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("file expects exactly one path, got %d", fs.NArg())
	}
	owner, group, folder, err := flags.ids()
	if err != nil {
		return err
	}

	path := fs.Arg(0)
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	progress, stop := reportProgress()
	content, err := rt.Service.Ingest(ctx, simpleingest.IngestRequest{
		OwnerID:  owner,
		Reader:   f,
		FileName: flags.name,
		Path:     filepath.ToSlash(path),
		MimeType: flags.mimeType,
		Driver:   flags.driver,
		GroupID:  group,
		FolderID: folder,
		Progress: progress,
	})
	stop()
	if err != nil {
		return err
	}
	return printJSON(content)
}

func runURL(ctx context.Context, rt *config.Runtime, cfg *config.Config, args []string) error {
	var flags ingestFlags
	fs := pflag.NewFlagSet("url", pflag.ContinueOnError)
	flags.register(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("url expects exactly one URL, got %d", fs.NArg())
	}
	owner, group, folder, err := flags.ids()
	if err != nil {
		return err
	}

	progress, stop := reportProgress()
	content, err := rt.Service.IngestURL(ctx, simpleingest.IngestURLRequest{
		OwnerID:  owner,
		URL:      fs.Arg(0),
		FileName: flags.name,
		MimeType: flags.mimeType,
		Driver:   flags.driver,
		GroupID:  group,
		FolderID: folder,
		Progress: progress,
	})
	stop()
	if err != nil {
		return err
	}
	return printJSON(content)
}

func runPreview(ctx context.Context, rt *config.Runtime, cfg *config.Config, args []string) error {
	var force bool
	fs := pflag.NewFlagSet("preview", pflag.ContinueOnError)
	fs.BoolVar(&force, "force", false, "regenerate even if previews exist")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("preview expects exactly one content ID, got %d", fs.NArg())
	}
	id, err := uuid.Parse(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid content ID: %w", err)
	}

	content, err := rt.Repository.GetContent(ctx, id)
	if err != nil {
		return err
	}
	if force {
		content, err = rt.Service.RegenerateContentPreviews(ctx, content)
	} else {
		content, err = rt.Service.EnsurePreviews(ctx, content)
	}
	if err != nil {
		return err
	}
	return printJSON(content)
}

func runBackfill(ctx context.Context, rt *config.Runtime, cfg *config.Config, args []string) error {
	var (
		owner  string
		force  bool
		dryRun bool
		batch  int
	)
	fs := pflag.NewFlagSet("backfill", pflag.ContinueOnError)
	fs.StringVar(&owner, "owner", "", "owner ID (required)")
	fs.BoolVar(&force, "force", false, "regenerate previews that already exist")
	fs.BoolVar(&dryRun, "dry-run", false, "list contents without generating previews")
	fs.IntVar(&batch, "batch", cfg.BackfillPageSize, "records fetched per batch")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	ownerID, err := parseOwner(owner)
	if err != nil {
		return err
	}

	started := time.Now()
	scanner := scan.New(rt.Repository, slog.Default())
	result, err := scanner.Scan(ctx, scan.ScanOptions{
		OwnerID:   ownerID,
		Processor: scan.NewPreviewBackfill(rt.Service, simpleingest.BackfillOptions{Force: force}),
		BatchSize: batch,
		DryRun:    dryRun,
		OnProgress: func(processed, total int64) {
			slog.Info("Backfill progress", "processed", processed, "found", total)
		},
	})
	if err != nil {
		return err
	}
	slog.Info("Backfill finished", "owner_id", ownerID.String(), "duration", time.Since(started))
	return printJSON(result)
}

type limitReport struct {
	Limit     *simpleingest.UserLimit `json:"limit,omitempty"`
	Limited   bool                    `json:"limited"`
	Remaining int64                   `json:"remaining,omitempty"`
}

func runLimit(ctx context.Context, rt *config.Runtime, cfg *config.Config, args []string) error {
	var (
		owner    string
		set      int64
		period   time.Duration
		inactive bool
	)
	fs := pflag.NewFlagSet("limit", pflag.ContinueOnError)
	fs.StringVar(&owner, "owner", "", "owner ID (required)")
	fs.Int64Var(&set, "set", -1, "byte allowance to store; negative leaves the limit unchanged")
	fs.DurationVar(&period, "period", 0, "accounting window, zero counts all history")
	fs.BoolVar(&inactive, "inactive", false, "store the limit disabled")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	ownerID, err := parseOwner(owner)
	if err != nil {
		return err
	}

	if set >= 0 {
		err := rt.Quota.SetLimit(ctx, &simpleingest.UserLimit{
			UserID:   ownerID,
			Name:     simpleingest.LimitSaveContentSize,
			Value:    set,
			Period:   period,
			IsActive: !inactive,
		})
		if err != nil {
			return fmt.Errorf("set limit: %w", err)
		}
	}

	report := limitReport{}
	limit, err := rt.Quota.GetLimit(ctx, ownerID, simpleingest.LimitSaveContentSize)
	switch {
	case err == nil:
		report.Limit = limit
	case !errors.Is(err, simpleingest.ErrLimitNotFound):
		return err
	}

	report.Remaining, report.Limited, err = rt.Service.Remaining(ctx, ownerID)
	if err != nil {
		return err
	}
	return printJSON(report)
}
