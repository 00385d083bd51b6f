package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/atmx/tradestore/internal/config"
	"github.com/atmx/tradestore/internal/metrics"
	"github.com/atmx/tradestore/internal/model"
	"github.com/atmx/tradestore/internal/store"
	"github.com/atmx/tradestore/internal/trade"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := newCommand(os.Stdout)
	if err := cmd.ParseAndRun(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		slog.Error("tradestore failed", "err", err)
		os.Exit(1)
	}
}

func newCommand(out io.Writer) *ffcli.Command {
	fs := flag.NewFlagSet("tradestore", flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")
	cfg := config.RegisterFlags(fs)

	return &ffcli.Command{
		ShortUsage: "tradestore [flags] <subcommand>",
		FlagSet:    fs,
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ff.PlainParser),
			ff.WithEnvVarPrefix(config.EnvPrefix),
		},
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newMigrateCommand(cfg),
			newSaveCommand(cfg, out),
			newGetCommand(cfg, out),
			newExpireCommand(cfg),
			newResetCommand(cfg),
		},
	}
}

// errEphemeralStore is returned by commands that read state written by an
// earlier run; the memory backend starts empty on every invocation.
var errEphemeralStore = errors.New("the memory store starts empty on every run; use -store postgres or -store redis")

// withService validates cfg, installs the logger, opens the store and runs
// fn with a per-operation timeout. Metrics are pushed afterwards when a
// Pushgateway is configured, whether or not fn failed.
func withService(ctx context.Context, cfg *config.Config, command string, fn func(context.Context, *trade.Service, store.Store) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := cfg.Level()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	err := runService(ctx, cfg, fn)
	if cfg.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		if perr := metrics.Push(pushCtx, cfg.PushgatewayURL, command); perr != nil {
			slog.Warn("metrics push failed", "command", command, "err", perr)
		} else {
			slog.Debug("metrics pushed", "command", command, "url", cfg.PushgatewayURL)
		}
	}
	return err
}

func runService(ctx context.Context, cfg *config.Config, fn func(context.Context, *trade.Service, store.Store) error) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	return fn(ctx, trade.NewService(st, nil), st)
}

// requirePersistent rejects the memory backend for commands that only make
// sense against rows written by an earlier run.
func requirePersistent(cfg *config.Config) error {
	if cfg.Store == config.BackendMemory {
		return errEphemeralStore
	}
	return nil
}

func newMigrateCommand(cfg *config.Config) *ffcli.Command {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	return &ffcli.Command{
		Name:       "migrate",
		ShortUsage: "tradestore migrate",
		ShortHelp:  "create the trades schema (postgres only)",
		FlagSet:    fs,
		Exec: func(ctx context.Context, _ []string) error {
			return withService(ctx, cfg, "migrate", func(ctx context.Context, _ *trade.Service, st store.Store) error {
				pg, ok := st.(*store.PostgresStore)
				if !ok {
					slog.Info("nothing to migrate", "store", cfg.Store)
					return nil
				}
				if err := pg.Migrate(ctx); err != nil {
					return err
				}
				slog.Info("schema migrated")
				return nil
			})
		},
	}
}

func newSaveCommand(cfg *config.Config, out io.Writer) *ffcli.Command {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	id := fs.String("trade-id", "", "trade id")
	version := fs.Int("version", 0, "trade version")
	counterParty := fs.String("counterparty", "", "counterparty id")
	book := fs.String("book", "", "book id")
	maturity := fs.String("maturity", "", "maturity date (YYYY-MM-DD)")
	created := fs.String("created", "", "creation date (YYYY-MM-DD, default today)")

	return &ffcli.Command{
		Name:       "save",
		ShortUsage: "tradestore save -trade-id T1 -version 1 -maturity 2030-01-01 [flags]",
		ShortHelp:  "validate and store a trade version (with -store memory: validation smoke check only)",
		FlagSet:    fs,
		Exec: func(ctx context.Context, _ []string) error {
			if *id == "" {
				return errors.New("missing trade id")
			}
			if *maturity == "" {
				return errors.New("missing maturity date")
			}
			maturityDate, err := model.ParseDate(*maturity)
			if err != nil {
				return err
			}
			creationDate := model.DateOf(time.Now())
			if *created != "" {
				if creationDate, err = model.ParseDate(*created); err != nil {
					return err
				}
			}
			t := &model.Trade{
				TradeID:        *id,
				Version:        *version,
				CounterPartyID: *counterParty,
				BookID:         *book,
				MaturityDate:   maturityDate,
				CreationDate:   creationDate,
			}
			return withService(ctx, cfg, "save", func(ctx context.Context, svc *trade.Service, _ store.Store) error {
				saved, err := svc.SaveTrade(ctx, t)
				if err != nil {
					return err
				}
				return writeTrade(out, saved)
			})
		},
	}
}

func newGetCommand(cfg *config.Config, out io.Writer) *ffcli.Command {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	return &ffcli.Command{
		Name:       "get",
		ShortUsage: "tradestore get <trade-id> <version>",
		ShortHelp:  "print one stored trade version",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 2 {
				return errors.New("usage: tradestore get <trade-id> <version>")
			}
			version, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[1], err)
			}
			if err := requirePersistent(cfg); err != nil {
				return err
			}
			return withService(ctx, cfg, "get", func(ctx context.Context, svc *trade.Service, _ store.Store) error {
				t, ok, err := svc.GetTradeByIDAndVersion(ctx, args[0], version)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("trade %s v%d not found", args[0], version)
				}
				return writeTrade(out, t)
			})
		},
	}
}

func newExpireCommand(cfg *config.Config) *ffcli.Command {
	fs := flag.NewFlagSet("expire", flag.ExitOnError)
	date := fs.String("date", "", "cutoff date (YYYY-MM-DD, default today)")
	return &ffcli.Command{
		Name:       "expire",
		ShortUsage: "tradestore expire [-date YYYY-MM-DD]",
		ShortHelp:  "mark trades maturing before the cutoff as expired",
		FlagSet:    fs,
		Exec: func(ctx context.Context, _ []string) error {
			cutoff := model.DateOf(time.Now())
			if *date != "" {
				var err error
				if cutoff, err = model.ParseDate(*date); err != nil {
					return err
				}
			}
			if err := requirePersistent(cfg); err != nil {
				return err
			}
			return withService(ctx, cfg, "expire", func(ctx context.Context, svc *trade.Service, _ store.Store) error {
				return svc.UpdateExpireFlag(ctx, cutoff)
			})
		},
	}
}

func newResetCommand(cfg *config.Config) *ffcli.Command {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	yes := fs.Bool("yes", false, "confirm deleting every stored trade")
	return &ffcli.Command{
		Name:       "reset",
		ShortUsage: "tradestore reset -yes",
		ShortHelp:  "delete all trades (administrative)",
		FlagSet:    fs,
		Exec: func(ctx context.Context, _ []string) error {
			if !*yes {
				return errors.New("refusing to delete all trades without -yes")
			}
			if err := requirePersistent(cfg); err != nil {
				return err
			}
			return withService(ctx, cfg, "reset", func(ctx context.Context, svc *trade.Service, _ store.Store) error {
				return svc.DeleteAll(ctx)
			})
		},
	}
}

// tradeView renders dates without a time component.
type tradeView struct {
	TradeID        string `json:"trade_id"`
	Version        int    `json:"version"`
	CounterPartyID string `json:"counter_party_id"`
	BookID         string `json:"book_id"`
	MaturityDate   string `json:"maturity_date"`
	CreationDate   string `json:"creation_date"`
	Expired        bool   `json:"expired"`
}

func writeTrade(w io.Writer, t *model.Trade) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(tradeView{
		TradeID:        t.TradeID,
		Version:        t.Version,
		CounterPartyID: t.CounterPartyID,
		BookID:         t.BookID,
		MaturityDate:   model.FormatDate(t.MaturityDate),
		CreationDate:   model.FormatDate(t.CreationDate),
		Expired:        t.Expired,
	})
}
