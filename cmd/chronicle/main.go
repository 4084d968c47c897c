package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mkarpov/chronicle/internal/codec"
	"github.com/mkarpov/chronicle/internal/environment"
	"github.com/mkarpov/chronicle/internal/fsx"
	"github.com/mkarpov/chronicle/internal/gitstore"
	"github.com/mkarpov/chronicle/internal/identity"
	"github.com/mkarpov/chronicle/internal/jsonstream"
	"github.com/mkarpov/chronicle/internal/logging"
	"github.com/mkarpov/chronicle/internal/projection"
	"github.com/mkarpov/chronicle/internal/storage"
	"github.com/mkarpov/chronicle/internal/types"
)

var (
	// Build info (set via ldflags).
	Version = "dev"
	Build   = "unknown"
)

var (
	// Global flags.
	flagRepo      string
	flagWorkDir   string
	flagAssetsDir string
	flagJSON      bool
	flagQuiet     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chronicle",
		Short: "Git-backed personal event log",
		Long: `Chronicle records events into a git-backed, append-friendly log.

Every change is one transaction: event records and configuration are
committed to a working copy of the remote repository and pushed; binary
assets are copied into a deterministic layout alongside the log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagRepo, "repo", "", "Remote repository (or CHRONICLE_REPOSITORY env var)")
	rootCmd.PersistentFlags().StringVar(&flagWorkDir, "workdir", "", "Working copy directory (or CHRONICLE_WORKDIR env var)")
	rootCmd.PersistentFlags().StringVar(&flagAssetsDir, "assets-dir", "", "Assets root (or CHRONICLE_ASSETS_DIR env var)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "JSON output for scripting")
	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "Suppress non-essential output")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("chronicle v{{.Version}} (build: " + Build + ", " + goruntime.Version() + ")\n")

	rootCmd.AddCommand(
		newRecordCmd(),
		newLogCmd(),
		newShortcutsCmd(),
		newSyncCmd(),
		newReindexCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "chronicle: %v\n", err)
		os.Exit(1)
	}
}

// wireEnv resolves configuration and builds the logger.
func wireEnv() (environment.Env, *logging.Logger, error) {
	env, err := environment.Resolve(flagRepo, flagWorkDir, flagAssetsDir)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(env.LogLevel(), env.LogFile())
	if err != nil {
		return nil, nil, err
	}
	return env, log, nil
}

// wire builds the production engine: OS filesystem, git working copy.
func wire() (*storage.Storage, environment.Env, *logging.Logger, error) {
	env, log, err := wireEnv()
	if err != nil {
		return nil, nil, nil, err
	}
	engine := storage.New(fsx.OS(), storage.GitBackend(gitstore.New(log)), env, log)
	return engine, env, log, nil
}

func newRecordCmd() *cobra.Command {
	var (
		flagDescription string
		flagModifiers   []string
		flagAssets      []string
		flagOriginal    string
	)

	cmd := &cobra.Command{
		Use:   "record <type> <input...>",
		Short: "Record one event in the log",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, log, err := wire()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			input := strings.Join(args[1:], " ")
			original := flagOriginal
			if original == "" {
				original = input
			}

			modifiers := make(map[string]string, len(flagModifiers))
			for _, pair := range flagModifiers {
				key, value, ok := strings.Cut(pair, "=")
				if !ok {
					return fmt.Errorf("modifier %q is not key=value", pair)
				}
				modifiers[key] = value
			}

			now := time.Now()
			event := types.Event{
				ID:          identity.NewEventID(now),
				Date:        now,
				Original:    original,
				Input:       input,
				Type:        args[0],
				Description: input,
				Modifiers:   modifiers,
				Creator:     identity.NewCreator("chronicle", Version),
			}
			if flagDescription != "" {
				event.Description = flagDescription
			}

			caps := fsx.OS()
			assets := make([]types.Asset, 0, len(flagAssets))
			for _, path := range flagAssets {
				file, err := caps.Checker.Check(ctx, path)
				if err != nil {
					return err
				}
				assets = append(assets, types.Asset{Event: event, File: file})
			}

			err = engine.Transaction(ctx, func(ctx context.Context, tx *storage.Tx) error {
				tx.AddEntry(event, assets...)
				return nil
			})
			if err != nil {
				return err
			}

			if flagJSON {
				return json.NewEncoder(os.Stdout).Encode(codec.SerializeEvent(event))
			}
			if !flagQuiet {
				fmt.Printf("recorded %s (%s)\n", event.ID, event.Type)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagDescription, "description", "", "Event description (defaults to the input)")
	cmd.Flags().StringArrayVar(&flagModifiers, "modifier", nil, "Modifier as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&flagAssets, "asset", nil, "Asset file to attach (repeatable)")
	cmd.Flags().StringVar(&flagOriginal, "original", "", "Raw input before shortcut expansion")
	return cmd
}

func newLogCmd() *cobra.Command {
	var (
		flagLimit int
		flagType  string
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List events from the log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, log, err := wireEnv()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			store := gitstore.New(log)
			if err := store.Synchronize(ctx, env.EventLogRepository(), env.WorkingDirectory()); err != nil {
				return err
			}

			db, err := projection.Open(":memory:")
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			projector := projection.NewProjector(db, log)
			if err := projector.Rebuild(ctx, fsx.OS().Reader, env.WorkingDirectory()); err != nil {
				return err
			}

			var events []projection.StoredEvent
			if flagType != "" {
				events, err = projection.EventsByType(ctx, db, flagType)
			} else {
				events, err = projection.RecentEvents(ctx, db, flagLimit)
			}
			if err != nil {
				return err
			}

			return printEvents(events)
		},
	}

	cmd.Flags().IntVar(&flagLimit, "limit", 20, "Maximum events to show")
	cmd.Flags().StringVar(&flagType, "type", "", "Only events of this type")
	return cmd
}

func printEvents(events []projection.StoredEvent) error {
	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		for _, stored := range events {
			if err := enc.Encode(codec.SerializeEvent(stored.Event)); err != nil {
				return err
			}
		}
		return nil
	}

	pretty := term.IsTerminal(int(os.Stdout.Fd()))
	for _, stored := range events {
		e := stored.Event
		if pretty {
			fmt.Printf("%s  %-12s %s\n", e.Date.Local().Format("2006-01-02 15:04"), e.Type, e.Description)
		} else {
			fmt.Printf("%s\t%s\t%s\t%s\n", e.ID, codec.FormatDate(e.Date), e.Type, e.Description)
		}
	}
	return nil
}

func newShortcutsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shortcuts",
		Short: "Show or edit the shortcut configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, log, err := wireEnv()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			store := gitstore.New(log)
			if err := store.Synchronize(ctx, env.EventLogRepository(), env.WorkingDirectory()); err != nil {
				return err
			}

			values, err := jsonstream.ReadObjects(ctx, fsx.OS().Reader, filepath.Join(env.WorkingDirectory(), "config.json"))
			if err != nil || len(values) == 0 {
				fmt.Println("no configuration")
				return nil
			}
			config, schemaErr := codec.TryDeserializeConfig(values[0])
			if schemaErr != nil {
				return fmt.Errorf("config.json: %w", schemaErr)
			}

			if flagJSON {
				return json.NewEncoder(os.Stdout).Encode(codec.SerializeConfig(config))
			}
			if config.Help != "" {
				fmt.Println(config.Help)
				fmt.Println()
			}
			for _, s := range config.Shortcuts {
				if s.Description != "" {
					fmt.Printf("%-12s -> %-24s %s\n", s.Pattern, s.Replacement, s.Description)
				} else {
					fmt.Printf("%-12s -> %s\n", s.Pattern, s.Replacement)
				}
			}
			return nil
		},
	}

	cmd.AddCommand(newShortcutsAddCmd(), newShortcutsSetHelpCmd())
	return cmd
}

func newShortcutsAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <pattern> <replacement> [description]",
		Short: "Add a shortcut",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, log, err := wire()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			shortcut := types.Shortcut{Pattern: args[0], Replacement: args[1]}
			if len(args) == 3 {
				shortcut.Description = args[2]
			}

			return engine.Transaction(cmd.Context(), func(ctx context.Context, tx *storage.Tx) error {
				config, err := tx.ExistingConfig(ctx)
				if err != nil {
					return err
				}
				next := types.Config{}
				if config != nil {
					next = *config
				}
				next.Shortcuts = append(next.Shortcuts, shortcut)
				tx.SetConfig(next)
				return nil
			})
		},
	}
}

func newShortcutsSetHelpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-help <text>",
		Short: "Replace the configuration help text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, log, err := wire()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			return engine.Transaction(cmd.Context(), func(ctx context.Context, tx *storage.Tx) error {
				config, err := tx.ExistingConfig(ctx)
				if err != nil {
					return err
				}
				next := types.Config{Help: args[0]}
				if config != nil {
					next.Shortcuts = config.Shortcuts
				}
				tx.SetConfig(next)
				return nil
			})
		},
	}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fast-forward the working copy from the remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, log, err := wireEnv()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			store := gitstore.New(log)
			if err := store.Synchronize(cmd.Context(), env.EventLogRepository(), env.WorkingDirectory()); err != nil {
				return err
			}
			if !flagQuiet {
				fmt.Printf("synchronized %s\n", env.WorkingDirectory())
			}
			return nil
		},
	}
}

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the query index from the log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, log, err := wireEnv()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			store := gitstore.New(log)
			if err := store.Synchronize(ctx, env.EventLogRepository(), env.WorkingDirectory()); err != nil {
				return err
			}

			// The index lives next to the working copy, never inside it.
			indexPath := env.WorkingDirectory() + ".index.db"
			db, err := projection.Open(indexPath)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			projector := projection.NewProjector(db, log)
			if err := projector.Rebuild(ctx, fsx.OS().Reader, env.WorkingDirectory()); err != nil {
				return err
			}
			if !flagQuiet {
				fmt.Printf("index rebuilt at %s\n", indexPath)
			}
			return nil
		},
	}
}
