package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/blockaudit/pkg/audit"
	"github.com/Sumatoshi-tech/blockaudit/pkg/config"
	"github.com/Sumatoshi-tech/blockaudit/pkg/cursor"
	"github.com/Sumatoshi-tech/blockaudit/pkg/docstore"
	"github.com/Sumatoshi-tech/blockaudit/pkg/observability"
	"github.com/Sumatoshi-tech/blockaudit/pkg/progress"
	"github.com/Sumatoshi-tech/blockaudit/pkg/query"
	"github.com/Sumatoshi-tech/blockaudit/pkg/report"
	"github.com/Sumatoshi-tech/blockaudit/pkg/scan"
)

const (
	noResultsMessage = "No results. Run again with the --rewind flag to reset the cursor."
	rewoundMessage   = "Cursor reset for %s. The next run starts from the first document."
)

// RunCommand holds flags and dependencies for the audit command.
type RunCommand struct {
	storeFlags

	filters       []string
	format        string
	orderBy       string
	cursorDir     string
	cursorBackend string
	batchSize     int
	verbose       bool
	rewind        bool
	debugTrace    bool

	initObs observabilityInit
}

// NewRunCommand creates the audit command.
func NewRunCommand() *cobra.Command {
	return newRunCommandWithDeps(observability.Init)
}

func newRunCommandWithDeps(initObs observabilityInit) *cobra.Command {
	rc := &RunCommand{initObs: initObs}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Count block usage across documents",
		Long: `Scan the documents matching the filters, count every block type and report
what was found. Progress is kept in a cursor per filter set, so a later run
only looks at documents added since; use --rewind to start over.`,
		Example: `  blockaudit run
  blockaudit run --filter category=page --format csv
  blockaudit run --filter category=post,page --filter status=publish,draft --order-by count
  blockaudit run --filter category=page --rewind`,
		Args: cobra.NoArgs,
		RunE: rc.run,
	}

	rc.storeFlags.register(cmd)

	cmd.Flags().StringArrayVarP(&rc.filters, "filter", "f", nil,
		"Document filter key=value[,value...] (keys: category, status, author); repeatable")
	cmd.Flags().StringVar(&rc.format, "format", string(report.FormatTable),
		"Output format: "+joinFormats())
	cmd.Flags().StringVar(&rc.orderBy, "order-by", string(audit.OrderByName), "Sort rows by: name, count, post_count")
	cmd.Flags().BoolVarP(&rc.verbose, "verbose", "v", false, "Show scan progress on stderr")
	cmd.Flags().BoolVar(&rc.rewind, "rewind", false, "Reset the cursor for these filters and exit")
	cmd.Flags().IntVar(&rc.batchSize, "batch-size", 0, "Documents per batch (default from config)")
	cmd.Flags().StringVar(&rc.cursorDir, "cursor-dir", "", "Cursor directory for the file backend (default: ~/.blockaudit/cursors)")
	cmd.Flags().StringVar(&rc.cursorBackend, "cursor-backend", "", "Cursor backend: file or sqlite (default from config)")
	cmd.Flags().BoolVar(&rc.debugTrace, "debug-trace", false, "Sample every trace")

	return cmd
}

func joinFormats() string {
	names := make([]string, 0, len(report.Formats))
	for _, f := range report.Formats {
		names = append(names, string(f))
	}

	return strings.Join(names, ", ")
}

func (rc *RunCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := rc.settings(cmd)
	if err != nil {
		return err
	}

	format, err := report.ParseFormat(rc.format)
	if err != nil {
		return err
	}

	orderBy, err := audit.ParseOrderBy(rc.orderBy)
	if err != nil {
		return err
	}

	filters, err := query.Parse(rc.filters)
	if err != nil {
		return err
	}

	obsCfg, err := buildObservabilityConfig(cfg, observability.ModeRun, rc.debugTrace, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	providers, shutdown, err := startObservability(rc.initObs, obsCfg)
	if err != nil {
		return err
	}
	defer shutdown()

	logger := providers.Logger

	if providers.MetricsHandler != nil && cfg.Observability.MetricsAddr != "" {
		srv, serveErr := observability.ServeMetrics(cfg.Observability.MetricsAddr, providers.MetricsHandler, logger)
		if serveErr != nil {
			return serveErr
		}

		defer func() {
			shutdownErr := srv.Shutdown(context.Background())
			if shutdownErr != nil {
				logger.Warn("metrics server shutdown failed", "error", shutdownErr)
			}
		}()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := docstore.Open(ctx, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	cursors, err := openCursors(ctx, cfg, store)
	if err != nil {
		return err
	}

	scanCfg, err := rc.scanConfig(cfg, providers, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	opts := audit.Options{
		Docs:    store,
		Cursors: cursors,
		Scan:    scanCfg,
		Defaults: audit.Defaults{
			Status:             cfg.Scan.DefaultStatus,
			ExcludedCategories: cfg.Scan.ExcludedCategories,
		},
		Logger: logger,
	}

	rep, err := audit.Run(ctx, opts, audit.Request{Filters: filters, OrderBy: orderBy, Rewind: rc.rewind})

	switch {
	case errors.Is(err, audit.ErrNoResults):
		warn(cmd.ErrOrStderr(), noResultsMessage)

		return nil
	case err != nil:
		return err
	case rep.Rewound:
		success(cmd.ErrOrStderr(), rewoundMessage, describeFilters(filters))

		return nil
	}

	if rep.ExtractionErrors > 0 {
		logger.Warn("documents skipped", "block.extraction_errors", rep.ExtractionErrors)
	}

	if rc.verbose {
		rc.summarize(cmd.ErrOrStderr(), rep)
	}

	return report.Render(cmd.OutOrStdout(), format, rep.Result)
}

// settings loads the configuration and applies the run flags on top of it.
func (rc *RunCommand) settings(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := rc.storeFlags.load(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("batch-size") {
		cfg.Scan.BatchSize = rc.batchSize
	}

	if flags.Changed("cursor-dir") {
		cfg.Cursor.Dir = rc.cursorDir
	}

	if flags.Changed("cursor-backend") {
		cfg.Cursor.Backend = rc.cursorBackend
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (rc *RunCommand) scanConfig(cfg *config.Config, providers observability.Providers, stderr io.Writer) (scan.Config, error) {
	scanCfg := scan.Config{
		BatchSize: cfg.Scan.BatchSize,
		Progress:  progress.Nop{},
		Logger:    providers.Logger,
		Tracer:    providers.Tracer,
	}

	if rc.verbose {
		scanCfg.Progress = progress.NewTerminal(stderr)
	}

	if providers.Meter != nil {
		metrics, err := observability.NewScanMetrics(providers.Meter)
		if err != nil {
			return scan.Config{}, err
		}

		scanCfg.Metrics = metrics
	}

	return scanCfg, nil
}

func (rc *RunCommand) summarize(w io.Writer, rep audit.Report) {
	_, err := fmt.Fprintf(w, "Audited %s documents in %s batches, %s block types (cursor %s)\n",
		humanize.Comma(rep.Stats.Documents),
		humanize.Comma(int64(rep.Stats.Batches)),
		humanize.Comma(int64(len(rep.Result.Rows))),
		humanize.Comma(rep.Stats.EndPosition),
	)
	if err != nil {
		slog.Debug("write summary", "error", err)
	}
}

func openCursors(ctx context.Context, cfg *config.Config, store *docstore.SQLiteStore) (cursor.Store, error) {
	if cfg.Cursor.Backend == config.CursorBackendSQLite {
		sqlStore, err := cursor.NewSQLStore(ctx, store.DB())
		if err != nil {
			return nil, err
		}

		return sqlStore, nil
	}

	return cursor.NewFileStore(cfg.Cursor.Dir), nil
}

func closeStore(store *docstore.SQLiteStore, logger *slog.Logger) {
	err := store.Close()
	if err != nil {
		logger.Warn("close document store", "error", err)
	}
}

func describeFilters(filters query.Spec) string {
	if filters.Empty() {
		return "the default query"
	}

	return filters.String()
}
