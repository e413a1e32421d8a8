package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harborview/claims-triage/internal/pipeline"
)

var processConcurrency int

var processCmd = &cobra.Command{
	Use:   "process <file|dir> [file|dir...]",
	Short: "Process claim documents through the intake pipeline",
	Long:  "Runs one or more claim documents (or every document in a directory) through extraction, parsing, scoring, fraud detection, and routing. Batch mode skips the workflow scheduler.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initIntake(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		files, err := collectFiles(args)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			zap.L().Info("no claim documents found")
			return nil
		}

		return processFiles(ctx, env.Processor, files, processConcurrency)
	},
}

func init() {
	processCmd.Flags().IntVar(&processConcurrency, "concurrency", 4, "max documents processed in parallel")
	rootCmd.AddCommand(processCmd)
}

// collectFiles expands directory arguments into their entries.
// Subdirectories are not recursed.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "stat %s", arg)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "read dir %s", arg)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			files = append(files, filepath.Join(arg, entry.Name()))
		}
	}
	return files, nil
}

// fileProcessor is the callback signature for running one document.
type fileProcessor interface {
	ProcessFile(ctx context.Context, filePath, source string) (*pipeline.Result, error)
}

// processFiles runs documents concurrently. Individual failures are
// logged but do not abort the batch.
func processFiles(ctx context.Context, proc fileProcessor, files []string, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("documents", len(files)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, skipped, failed atomic.Int64

	for _, file := range files {
		g.Go(func() error {
			log := zap.L().With(zap.String("file", file))

			res, err := proc.ProcessFile(gctx, file, "upload")
			if err != nil {
				failed.Add(1)
				log.Error("processing failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			switch res.Status {
			case "skipped":
				skipped.Add(1)
				log.Info("document skipped", zap.String("reason", res.Reason))
			default:
				succeeded.Add(1)
				log.Info("claim processed",
					zap.String("claim_id", res.ClaimID),
					zap.String("status", string(res.FinalStatus)),
					zap.String("adjuster", res.Adjuster),
					zap.Float64("seconds", res.ProcessingTime),
				)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("skipped", skipped.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
