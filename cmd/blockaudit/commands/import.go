package commands

import (
	"context"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/blockaudit/pkg/docstore"
	"github.com/Sumatoshi-tech/blockaudit/pkg/ingest"
	"github.com/Sumatoshi-tech/blockaudit/pkg/observability"
)

const stdinPath = "-"

// ImportCommand holds flags and dependencies for the import command.
type ImportCommand struct {
	storeFlags

	batchSize int
	initObs   observabilityInit
}

// NewImportCommand creates the command that loads documents into the store.
func NewImportCommand() *cobra.Command {
	return newImportCommandWithDeps(observability.Init)
}

func newImportCommandWithDeps(initObs observabilityInit) *cobra.Command {
	ic := &ImportCommand{initObs: initObs}

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Load newline-delimited JSON documents into the store",
		Long: `Read one JSON document per line ({"id", "category", "status", "author",
"locator", "content"}) and store it. Documents with an existing id are
replaced. Files ending in .lz4 are decompressed; use - to read from stdin.`,
		Example: `  blockaudit import posts.ndjson --db site.db
  blockaudit import export.ndjson.lz4
  cat posts.ndjson | blockaudit import -`,
		Args: cobra.ExactArgs(1),
		RunE: ic.run,
	}

	ic.storeFlags.register(cmd)
	cmd.Flags().IntVar(&ic.batchSize, "batch-size", ingest.DefaultBatchSize, "Documents per insert transaction")

	return cmd
}

func (ic *ImportCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := ic.storeFlags.load(cmd)
	if err != nil {
		return err
	}

	err = cfg.Validate()
	if err != nil {
		return err
	}

	obsCfg, err := buildObservabilityConfig(cfg, observability.ModeImport, false, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	providers, shutdown, err := startObservability(ic.initObs, obsCfg)
	if err != nil {
		return err
	}
	defer shutdown()

	loader, err := ingest.NewLoader(ingest.WithBatchSize(ic.batchSize), ingest.WithLogger(providers.Logger))
	if err != nil {
		return err
	}

	in, err := openInput(cmd, args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := docstore.Open(ctx, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer closeStore(store, providers.Logger)

	total, err := loader.Load(ctx, store, in)
	if err != nil {
		return err
	}

	providers.Logger.InfoContext(ctx, "import finished", "documents", total, "dsn", cfg.Store.DSN)
	success(cmd.ErrOrStderr(), "Imported %s documents into %s", humanize.Comma(total), cfg.Store.DSN)

	return nil
}

func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == stdinPath {
		return io.NopCloser(cmd.InOrStdin()), nil
	}

	return ingest.Open(path)
}
