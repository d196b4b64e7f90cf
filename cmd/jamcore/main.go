package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gopkg.in/urfave/cli.v1"

	"github.com/eigerco/jamcore/internal/block"
	"github.com/eigerco/jamcore/internal/coretime"
	"github.com/eigerco/jamcore/internal/crypto"
	"github.com/eigerco/jamcore/internal/metrics"
	"github.com/eigerco/jamcore/internal/state"
	"github.com/eigerco/jamcore/internal/statetransition"
	"github.com/eigerco/jamcore/internal/store"
	"github.com/eigerco/jamcore/pkg/db/pebble"
	"github.com/eigerco/jamcore/pkg/log"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	app := newApp(stdout)
	app.Writer = stdout
	app.ErrWriter = stderr

	if err := app.Run(args); err != nil {
		if kind := statetransition.KindOf(err); kind != "Unknown" {
			fmt.Fprintf(stderr, "import failed [%s]: %v\n", kind, err)
		} else {
			fmt.Fprintf(stderr, "error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newApp(stdout io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "jamcore"
	app.Usage = "validate and import JAM blocks"
	app.HideVersion = true
	app.Commands = []cli.Command{
		{
			Name:      "import",
			Usage:     "import one block from a JSON file",
			ArgsUsage: "BLOCK.json",
			Flags: []cli.Flag{
				VerboseFlag,
				ConfigFileFlag,
				DataDirFlag,
				MetricsFileFlag,
				LogFormatFlag,
				AnchorHashFlag,
				AnchorStateRootFlag,
			},
			Action: func(ctx *cli.Context) error {
				return importCommand(ctx, stdout)
			},
		},
		{
			Name:  "blocks",
			Usage: "list the blocks of a block store in slot order",
			Flags: []cli.Flag{
				DataDirFlag,
			},
			Action: func(ctx *cli.Context) error {
				return blocksCommand(ctx, stdout)
			},
		},
	}
	return app
}

// summary is printed to stdout after a successful import
type summary struct {
	Slot          uint32            `json:"slot"`
	ExtrinsicHash crypto.Hash       `json:"extrinsic_hash"`
	State         state.State       `json:"state"`
	CoreTime      coretime.Snapshot `json:"coretime"`
}

func importCommand(ctx *cli.Context, stdout io.Writer) error {
	if ctx.NArg() != 1 {
		return errors.New("expected exactly one block file")
	}
	path := ctx.Args().First()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := initLogging(ctx, cfg); err != nil {
		return err
	}

	var opts []statetransition.Option
	reg := prometheus.NewRegistry()
	if ctx.String(MetricsFileFlag.Name) != "" {
		m, err := metrics.New(reg)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		opts = append(opts, statetransition.WithMetrics(m))
		defer func() {
			if err := metrics.WriteTextfile(ctx.String(MetricsFileFlag.Name), reg); err != nil {
				log.Root.Error().Err(err).Msg("write metrics file")
			}
		}()
	}

	var chain *store.Chain
	if dir := ctx.String(DataDirFlag.Name); dir != "" {
		kv, err := pebble.Open(dir)
		if err != nil {
			return err
		}
		chain, err = store.NewChain(kv)
		if err != nil {
			kv.Close()
			return err
		}
		defer chain.Close()
	}

	imp, err := newImporter(ctx, cfg, chain, opts)
	if err != nil {
		return err
	}

	b, err := imp.ImportFile(path)
	if err != nil {
		return err
	}
	if chain != nil {
		if err := chain.Commit(b, imp.Checkpoint()); err != nil {
			return fmt.Errorf("store block: %w", err)
		}
	}

	return printSummary(stdout, b, imp)
}

// storedBlock is one line of the blocks command output
type storedBlock struct {
	Slot          uint32      `json:"slot"`
	ExtrinsicHash crypto.Hash `json:"extrinsic_hash"`
	Parent        crypto.Hash `json:"parent"`
}

func blocksCommand(ctx *cli.Context, stdout io.Writer) error {
	dir := ctx.String(DataDirFlag.Name)
	if dir == "" {
		return fmt.Errorf("--%s is required", DataDirFlag.Name)
	}
	kv, err := pebble.Open(dir)
	if err != nil {
		return err
	}
	chain, err := store.NewChain(kv)
	if err != nil {
		kv.Close()
		return err
	}
	defer chain.Close()

	blocks, err := chain.Blocks()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	for _, b := range blocks {
		if err := enc.Encode(storedBlock{
			Slot:          uint32(b.Header.Slot),
			ExtrinsicHash: b.Header.ExtrinsicHash,
			Parent:        b.Header.Parent,
		}); err != nil {
			return err
		}
	}
	return nil
}

func loadConfig(ctx *cli.Context) (statetransition.Config, error) {
	cfg := statetransition.DefaultConfig()
	if path := ctx.String(ConfigFileFlag.Name); path != "" {
		var err error
		if cfg, err = statetransition.LoadConfig(path); err != nil {
			return statetransition.Config{}, err
		}
	}
	if format := ctx.String(LogFormatFlag.Name); format != "" {
		cfg.Log.Format = format
	}
	if ctx.Bool("verbose") {
		cfg.Log.Level = zerolog.DebugLevel.String()
	}
	return cfg, nil
}

func initLogging(ctx *cli.Context, cfg statetransition.Config) error {
	level, err := log.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	format, err := log.ParseLoggerType(cfg.Log.Format)
	if err != nil {
		return err
	}
	log.Init(log.Options{LogLevel: level, Type: format, Out: ctx.App.ErrWriter})
	return nil
}

// newImporter resumes from the stored checkpoint when there is one, otherwise
// it starts fresh, anchored on the command line fingerprints if given.
func newImporter(ctx *cli.Context, cfg statetransition.Config, chain *store.Chain, opts []statetransition.Option) (*statetransition.Importer, error) {
	if chain != nil {
		cp, err := chain.GetCheckpoint()
		switch {
		case err == nil:
			log.Root.Debug().Uint32("last_slot", uint32(cp.State.LastSlot)).Msg("resuming from checkpoint")
			return statetransition.RestoreImporter(cfg, cp, opts...), nil
		case !errors.Is(err, store.ErrCheckpointNotFound):
			return nil, err
		}
	}

	imp := statetransition.NewImporter(cfg, opts...)

	hashHex, rootHex := ctx.String(AnchorHashFlag.Name), ctx.String(AnchorStateRootFlag.Name)
	if hashHex == "" && rootHex == "" {
		return imp, nil
	}
	hash, err := crypto.ParseHash(hashHex)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", AnchorHashFlag.Name, err)
	}
	root, err := crypto.ParseHash(rootHex)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", AnchorStateRootFlag.Name, err)
	}
	imp.SetInitialState(hash, root)
	return imp, nil
}

func printSummary(w io.Writer, b block.Block, imp *statetransition.Importer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary{
		Slot:          uint32(b.Header.Slot),
		ExtrinsicHash: b.Header.ExtrinsicHash,
		State:         imp.State(),
		CoreTime:      imp.Ledger(),
	})
}
