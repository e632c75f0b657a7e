package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vinylsync/vinyl/internal/config"
	"github.com/vinylsync/vinyl/internal/engine"
	"github.com/vinylsync/vinyl/internal/event"
	"github.com/vinylsync/vinyl/internal/stats"
	"github.com/vinylsync/vinyl/internal/tool"
	"github.com/vinylsync/vinyl/internal/ui"
	"github.com/vinylsync/vinyl/internal/watch"
)

var version = "dev"

func main() {
	os.Exit(run())
}

//nolint:gocyclo,revive // cyclomatic,cognitive-complexity: main CLI entry point orchestrates all flag parsing and mode selection
func run() int {
	var (
		transcodeFormats []string
		targetFormat     string
		encoderOptsStr   string
		ffmpegPath       string
		rsyncPath        string
		noRsync          bool
		jobs             int
		noChecksumTags   bool
		dryRun           bool
		includeHidden    bool
		deleteFlag       bool
		forceFlag        bool
		verifyFlag       bool
		watchFlag        bool
		tempDir          string
		quiet            bool
		verbose          bool
		logFile          string
		showVersion      bool
	)

	rootCmd := &cobra.Command{
		Use:   "vinyl [flags] <source> <destination>",
		Short: "Mirror a music library, transcoding lossless formats on the way",
		Long: `vinyl mirrors a source music tree into a destination tree. Files in the
transcode set are converted with ffmpeg; everything else is copied as-is.
Each transcoded file carries a fingerprint of its source, so re-runs skip
up-to-date files even when timestamps lie.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintf(os.Stdout, "vinyl %s\n", version)
				return nil
			}

			src := args[0]
			dst := args[1]

			// Load optional config file.
			cfg, err := config.Load()
			if err != nil {
				slog.Warn("failed to load config", "error", err)
			}

			// Apply config defaults for flags not explicitly set on CLI.
			flags := cmd.Flags()
			if !flags.Changed("jobs") && cfg.Defaults.Jobs != nil {
				jobs = *cfg.Defaults.Jobs
			}
			if !flags.Changed("target-format") && cfg.Defaults.TargetFormat != nil {
				targetFormat = *cfg.Defaults.TargetFormat
			}
			if !flags.Changed("transcode-formats") && cfg.Defaults.TranscodeFormats != nil {
				transcodeFormats = cfg.Defaults.TranscodeFormats
			}
			if !flags.Changed("encoder-options") && cfg.Defaults.EncoderOptions != nil {
				encoderOptsStr = *cfg.Defaults.EncoderOptions
			}
			if !flags.Changed("no-checksum-tags") && cfg.Defaults.ChecksumTags != nil {
				noChecksumTags = !*cfg.Defaults.ChecksumTags
			}
			if !flags.Changed("verify") && cfg.Defaults.Verify != nil {
				verifyFlag = *cfg.Defaults.Verify
			}
			if !flags.Changed("include-hidden") && cfg.Defaults.IncludeHidden != nil {
				includeHidden = *cfg.Defaults.IncludeHidden
			}
			if !flags.Changed("ffmpeg-path") && cfg.Tools.FFmpeg != nil {
				ffmpegPath = *cfg.Tools.FFmpeg
			}
			if !flags.Changed("rsync-path") && cfg.Tools.Rsync != nil {
				rsyncPath = *cfg.Tools.Rsync
				if rsyncPath == "" {
					noRsync = true
				}
			}

			// Configure logging.
			logLevel := slog.LevelWarn
			if verbose {
				logLevel = slog.LevelDebug
			} else if !quiet {
				logLevel = slog.LevelInfo
			}
			textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel,
			})
			var logHandler slog.Handler = textHandler
			if logFile != "" {
				lf, lfErr := os.Create(logFile)
				if lfErr != nil {
					return fmt.Errorf("open log file: %w", lfErr)
				}
				defer lf.Close()
				jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})
				logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
			}
			logger := slog.New(logHandler)
			slog.SetDefault(logger)

			if !ui.IsTTY(os.Stdout.Fd()) {
				color.NoColor = true
			}

			if dryRun {
				slog.Info("dry run mode")
			}

			if jobs <= 0 {
				jobs = runtime.NumCPU()
			}

			// Encoder options: explicit ones win, otherwise the stock set
			// for the target format.
			encoderOpts := tool.DefaultEncoderOpts(targetFormat)
			if encoderOptsStr != "" {
				encoderOpts = tool.SplitEncoderOpts(encoderOptsStr)
			}

			// The transcoder is required unless this is a dry run; a missing
			// rsync just means the builtin copier.
			ffmpeg := tool.NewFFmpeg(ffmpegPath)
			if err := ffmpeg.Probe(); err != nil {
				if !dryRun {
					return fmt.Errorf("transcoder not found: %w", err)
				}
				slog.Warn("transcoder not found, continuing dry run", "error", err)
			} else if v, vErr := ffmpeg.Version(); vErr == nil {
				slog.Debug("transcoder", "version", v)
			}

			var copier engine.Copier = engine.BuiltinCopier{}
			if !noRsync {
				rs := tool.NewRsync(rsyncPath)
				if err := rs.Probe(); err != nil {
					slog.Debug("rsync not found, using builtin copier", "error", err)
				} else {
					copier = engine.NewRsyncCopier(rs)
				}
			}
			slog.Debug("copier selected", "name", copier.Name())

			// Set up context with signal handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			engineCfg := engine.Config{
				Src:              src,
				Dst:              dst,
				TranscodeFormats: transcodeFormats,
				TargetFormat:     targetFormat,
				EncoderOpts:      encoderOpts,
				Workers:          jobs,
				Checksums:        !noChecksumTags,
				DryRun:           dryRun,
				Force:            forceFlag,
				IncludeHidden:    includeHidden,
				Delete:           deleteFlag,
				Verify:           verifyFlag,
				TempDir:          tempDir,
				Transcoder:       ffmpeg,
				Copier:           copier,
			}

			slog.Debug("starting mirror",
				"src", src,
				"dst", dst,
				"jobs", jobs,
				"formats", strings.Join(transcodeFormats, ","),
				"target", targetFormat,
			)

			result := mirrorOnce(ctx, engineCfg, logFile != "", quiet, verbose)
			if !watchFlag {
				return exitFor(result)
			}
			if result.Err != nil {
				return exitFor(result)
			}

			// Watch mode: re-reconcile whenever the source settles.
			watcher, err := watch.New(src, watch.DefaultDebounce, includeHidden, logger)
			if err != nil {
				return fmt.Errorf("watch %s: %w", src, err)
			}
			defer watcher.Close()
			go watcher.Run(ctx)
			slog.Info("watching for changes", "src", src)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-watcher.Events():
					slog.Info("source changed, reconciling")
					result = mirrorOnce(ctx, engineCfg, logFile != "", quiet, verbose)
					if result.Err != nil && ctx.Err() == nil {
						return exitFor(result)
					}
				}
			}
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")

	rootCmd.Flags().StringSliceVarP(&transcodeFormats, "transcode-formats", "i",
		[]string{"flac", "wv", "wav", "ape", "fla"}, "source formats to transcode")
	rootCmd.Flags().StringVarP(&targetFormat, "target-format", "o", "ogg",
		"format transcoded files are encoded to")
	rootCmd.Flags().StringVarP(&encoderOptsStr, "encoder-options", "E", "",
		"encoder arguments (default: stock options for the target format)")
	rootCmd.Flags().StringVar(&ffmpegPath, "ffmpeg-path", "", "path to the ffmpeg binary")
	rootCmd.Flags().StringVar(&rsyncPath, "rsync-path", "", "path to the rsync binary")
	rootCmd.Flags().BoolVar(&noRsync, "no-rsync", false, "copy with the builtin copier instead of rsync")
	rootCmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "number of parallel workers (default: NumCPU)")
	rootCmd.Flags().BoolVar(&noChecksumTags, "no-checksum-tags", false,
		"skip fingerprint tags; staleness falls back to timestamps")
	rootCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "show what would be done without writing")
	rootCmd.Flags().BoolVarP(&includeHidden, "include-hidden", "z", false, "mirror hidden files and directories")
	rootCmd.Flags().BoolVarP(&deleteFlag, "delete", "D", false, "delete destination files with no source")
	rootCmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "redo every file, up to date or not")
	rootCmd.Flags().BoolVar(&verifyFlag, "verify", false, "audit the destination after the run")
	rootCmd.Flags().BoolVar(&watchFlag, "watch", false, "keep running, reconciling when the source changes")
	rootCmd.Flags().StringVarP(&tempDir, "temp-dir", "t", "", "stage transcodes in DIR instead of next to the destination")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output, including skips")
	rootCmd.Flags().StringVar(&logFile, "log", "", "write structured JSON log to FILE")

	rootCmd.AddCommand(docsCmd)

	if err := rootCmd.Execute(); err != nil {
		if exitErr, ok := err.(*exitError); ok {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	return 0
}

// mirrorOnce wires a collector, event channel and presenter around a single
// engine run and blocks until all three are done.
func mirrorOnce(ctx context.Context, engineCfg engine.Config, logEvents, quiet, verbose bool) engine.Result {
	collector := stats.NewCollector()
	events := make(chan event.Event, 256)

	engineCfg.Stats = collector
	engineCfg.Events = events

	// When --log is set, tee events through a logging goroutine that writes
	// structured records before forwarding to the presenter.
	presenterEvents := (<-chan event.Event)(events)
	if logEvents {
		teed := make(chan event.Event, 256)
		go func() {
			for ev := range events {
				attrs := []slog.Attr{
					slog.String("type", ev.Type.String()),
					slog.String("path", ev.Path),
					slog.Int64("size", ev.Size),
					slog.Int("worker", ev.WorkerID),
				}
				if ev.DestPath != "" {
					attrs = append(attrs, slog.String("dest", ev.DestPath))
				}
				if ev.Error != nil {
					attrs = append(attrs, slog.String("error", ev.Error.Error()))
				}
				slog.LogAttrs(context.Background(), slog.LevelInfo, "vinyl.event", attrs...)
				teed <- ev
			}
			close(teed)
		}()
		presenterEvents = teed
	}

	presenter := ui.NewPresenter(ui.Config{
		Writer:  os.Stdout,
		Stats:   collector,
		Quiet:   quiet,
		Verbose: verbose,
	})

	var presenterErr error
	var presenterWg sync.WaitGroup
	presenterWg.Add(1)
	go func() {
		defer presenterWg.Done()
		presenterErr = presenter.Run(presenterEvents)
	}()

	result := engine.Run(ctx, engineCfg)
	close(events)
	presenterWg.Wait()
	if presenterErr != nil {
		fmt.Fprintf(os.Stderr, "presenter: %v\n", presenterErr)
	}

	if !quiet {
		if summary := presenter.Summary(); summary != "" {
			fmt.Fprintln(os.Stderr, summary)
		}
	}

	return result
}

// exitFor maps a run result onto the exit scheme: 0 clean, 1 completed with
// per-file failures or verify mismatches, 2 fatal.
func exitFor(result engine.Result) error {
	if result.Err != nil {
		slog.Error("mirror failed", "error", result.Err)
		return &exitError{code: 2}
	}
	if result.Summary.FilesFailed > 0 || result.Summary.VerifyMismatches > 0 {
		return &exitError{code: 1}
	}
	return nil
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
