// Package main is the agilerag CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/agilerag/internal/cli"
	"github.com/hyperjump/agilerag/internal/config"
	"github.com/hyperjump/agilerag/internal/indexer"
	"github.com/hyperjump/agilerag/internal/llm"
	"github.com/hyperjump/agilerag/internal/models"
	"github.com/hyperjump/agilerag/internal/server"
	"github.com/hyperjump/agilerag/internal/storage"
	"github.com/hyperjump/agilerag/internal/watcher"
	"github.com/hyperjump/agilerag/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/agilerag/config.yaml"

var getenv = os.Getenv

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// When neither exists, built-in defaults are returned with an empty resolved path.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

type app struct {
	configPath string
	debug      bool
	cfg        *config.Config
	logger     *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "agilerag",
		Short: "Question answering over Agile course material",
		Long: `agilerag ingests Scrum and Kanban manuals, syllabi, and guides into a local vector
collection and answers student questions grounded in them, with citations.

Examples:
  agilerag ingest ./docs                 # ingest a directory
  agilerag ask "What is a Sprint Retrospective?" --sources
  agilerag serve                         # start the HTTP API`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.init(cmd.Name() == "serve" || cmd.Name() == "watch")
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		a.serveCmd(),
		a.ingestCmd(),
		a.askCmd(),
		a.statusCmd(),
		a.clearCmd(),
		a.watchCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) init(longRunning bool) error {
	cfg, resolved, err := loadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	debugMode := cfg.Debug || a.debug
	newLogger := utils.NewCLILogger
	if longRunning {
		newLogger = utils.NewLogger
	}
	logger, err := newLogger(debugMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (and the watcher when directories are configured)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			comps, err := initializeComponents(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer comps.Close()
			gen, err := newGenerator(a.cfg, "")
			if err != nil {
				return err
			}
			orch, err := newOrchestrator(a.cfg, comps.Collection, gen, a.logger)
			if err != nil {
				return err
			}

			if len(a.cfg.Watch.Directories) > 0 {
				w := watcher.NewWatcher(a.cfg.Watch.Directories, comps.Indexer,
					watcher.WithRecursive(a.cfg.Watch.RecursiveOrDefault()),
					watcher.WithLogger(a.logger),
				)
				if err := w.Start(ctx); err != nil {
					return fmt.Errorf("failed to start watcher: %w", err)
				}
				defer w.Stop()
				go w.SyncExistingFiles()
			}

			srv := server.NewServer(orch, comps.Collection, comps.Indexer, a.cfg, a.logger,
				server.WithVersion(version),
				server.WithProviders(llm.DefaultRegistry().Names()),
			)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}
			a.logger.Info("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
}

func (a *app) ingestCmd() *cobra.Command {
	var (
		category  string
		recursive bool
		force     bool
		format    string
	)
	cmd := &cobra.Command{
		Use:   "ingest <file-or-directory>",
		Short: "Ingest a file or every supported file in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			outFormat, err := cli.ParseOutputFormat(format)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("recursive") {
				recursive = a.cfg.Ingest.RecursiveOrDefault()
			}
			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("failed to stat path: %w", err)
			}

			var bar *progressbar.ProgressBar
			opts := []indexer.IndexerOption{indexer.WithForce(force)}
			if info.IsDir() {
				files, err := indexer.ListFiles(path, recursive)
				if err != nil {
					return err
				}
				bar = newProgressBar(cmd.ErrOrStderr(), len(files))
				opts = append(opts, indexer.WithProgress(func(string) { _ = bar.Add(1) }))
			}

			comps, err := initializeComponents(cmd.Context(), a.cfg, a.logger, opts...)
			if err != nil {
				return err
			}
			defer comps.Close()

			if info.IsDir() {
				if category != "" {
					a.logger.Warn("--category is ignored for directories; categories are inferred per file")
				}
				report, err := comps.Indexer.IngestDirectory(cmd.Context(), path, recursive)
				_ = bar.Finish()
				if err != nil {
					return fmt.Errorf("ingesting directory failed: %w", err)
				}
				return cli.WriteIngestReport(out, report, outFormat)
			}

			res, err := comps.Indexer.IngestFile(cmd.Context(), path, category)
			if err != nil {
				return fmt.Errorf("ingesting failed: %w", err)
			}
			report := &models.BatchReport{Items: []models.ItemResult{{Path: res.Path, Units: res.Units}}}
			if res.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "unchanged, skipped: %s (use --force to re-ingest)\n", res.Path)
			}
			return cli.WriteIngestReport(out, report, outFormat)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "document category (scrum, kanban, syllabus, general); inferred when empty")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "descend into subdirectories (default from config)")
	cmd.Flags().BoolVar(&force, "force", false, "re-ingest files even when unchanged")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("Ingesting"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
}

func (a *app) askCmd() *cobra.Command {
	var (
		k        int
		sources  bool
		category string
		provider string
		format   string
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the ingested material",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseOutputFormat(format)
			if err != nil {
				return err
			}
			req := buildQueryRequest(args, k, sources, category)

			comps, err := initializeComponents(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer comps.Close()
			gen, err := newGenerator(a.cfg, provider)
			if err != nil {
				return err
			}
			orch, err := newOrchestrator(a.cfg, comps.Collection, gen, a.logger)
			if err != nil {
				return err
			}
			answer, err := orch.Query(cmd.Context(), req)
			if err != nil {
				return err
			}
			return cli.WriteAnswer(cmd.OutOrStdout(), answer, outFormat)
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of units to retrieve (default from config)")
	cmd.Flags().BoolVar(&sources, "sources", false, "include sources and citations")
	cmd.Flags().StringVar(&category, "category", "", "only use units of this category")
	cmd.Flags().StringVar(&provider, "provider", "", "generation backend (openai, deepseek, anthropic, gemini, ollama)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

// buildQueryRequest joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQueryRequest(args []string, k int, sources bool, category string) models.QueryRequest {
	req := models.QueryRequest{
		Question:      strings.TrimSpace(strings.Join(args, " ")),
		K:             k,
		ReturnSources: sources,
	}
	if category != "" {
		req.Filter = models.Metadata{models.KeyCategory: category}
	}
	return req
}

type statusResponse struct {
	Collection     string `json:"collection"`
	EmbeddingModel string `json:"embedding_model"`
	Units          int    `json:"units"`
	Documents      int    `json:"documents"`
	ChunkSize      int    `json:"chunk_size"`
	ChunkOverlap   int    `json:"chunk_overlap"`
	PersistPath    string `json:"persist_path"`
	DiskUsageBytes int64  `json:"disk_usage_bytes"`
}

func (a *app) statusCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show collection, model, and storage status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outFormat, err := cli.ParseOutputFormat(format)
			if err != nil {
				return err
			}
			comps, err := initializeComponents(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			units, err := comps.Collection.Count(cmd.Context())
			if err != nil {
				return err
			}
			docs, err := comps.Indexer.Documents()
			if err != nil {
				return err
			}
			disk, err := storage.DiskUsageBytes(a.cfg.Storage.PersistPath)
			if err != nil {
				a.logger.Warn("disk usage unavailable", zap.Error(err))
			}
			s := statusResponse{
				Collection:     comps.Collection.Name(),
				EmbeddingModel: comps.Collection.ModelID(),
				Units:          units,
				Documents:      len(docs),
				ChunkSize:      a.cfg.Ingest.ChunkSize,
				ChunkOverlap:   a.cfg.Ingest.ChunkOverlap,
				PersistPath:    a.cfg.Storage.PersistPath,
				DiskUsageBytes: disk,
			}
			return writeStatus(cmd.OutOrStdout(), s, outFormat)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

func writeStatus(w io.Writer, s statusResponse, format cli.OutputFormat) error {
	if format == cli.OutputJSON {
		return cli.WriteJSON(w, s)
	}
	fmt.Fprintf(w, "Collection:      %s\n", s.Collection)
	fmt.Fprintf(w, "Embedding model: %s\n", s.EmbeddingModel)
	fmt.Fprintf(w, "Units:           %d\n", s.Units)
	fmt.Fprintf(w, "Documents:       %d\n", s.Documents)
	fmt.Fprintf(w, "Chunking:        size %d, overlap %d\n", s.ChunkSize, s.ChunkOverlap)
	fmt.Fprintf(w, "Persist path:    %s (%d bytes)\n", s.PersistPath, s.DiskUsageBytes)
	return nil
}

func (a *app) clearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every unit from the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear the collection without --yes")
			}
			comps, err := initializeComponents(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer comps.Close()
			if err := comps.Indexer.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared collection %s\n", comps.Collection.Name())
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm clearing the collection")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [directory...]",
		Short: "Keep the collection in sync with directories until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs := a.cfg.Watch.Directories
			if len(args) > 0 {
				dirs = args
			}
			if len(dirs) == 0 {
				return errors.New("no directories to watch: pass them as arguments or set watch.directories")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			comps, err := initializeComponents(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer comps.Close()
			if removed, err := comps.Indexer.Prune(ctx); err != nil {
				a.logger.Warn("prune failed", zap.Error(err))
			} else if len(removed) > 0 {
				a.logger.Info("pruned missing files", zap.Strings("paths", removed))
			}

			w := watcher.NewWatcher(dirs, comps.Indexer,
				watcher.WithRecursive(a.cfg.Watch.RecursiveOrDefault()),
				watcher.WithLogger(a.logger),
			)
			if err := w.Start(ctx); err != nil {
				return fmt.Errorf("failed to start watcher: %w", err)
			}
			defer w.Stop()
			w.SyncExistingFiles()
			a.logger.Info("watching", zap.Strings("directories", w.Directories()))
			<-ctx.Done()
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agilerag version %s\n", version)
		},
	}
}
