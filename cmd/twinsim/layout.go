package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/twinsim/twinsim/internal/persist"
	"github.com/twinsim/twinsim/internal/plant"
	"github.com/twinsim/twinsim/internal/sim"
)

func newLayoutCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Check, convert and store layout documents",
	}
	cmd.AddCommand(newLayoutValidateCommand())
	cmd.AddCommand(newLayoutConvertCommand())
	cmd.AddCommand(newLayoutSaveCommand(root))
	cmd.AddCommand(newLayoutLoadCommand(root))
	cmd.AddCommand(newLayoutListCommand(root))
	return cmd
}

// buildLayout loads rec into a headless world and returns it.
func buildLayout(rec persist.Record) (*sim.World, error) {
	w := sim.NewWorld(zap.NewNop())
	if _, err := persist.Load(w, &plant.Codecs, w.Root(), rec); err != nil {
		return nil, err
	}
	return w, nil
}

// kindCounts tallies the persisted entities of w by kind.
func kindCounts(w *sim.World) map[string]int {
	counts := make(map[string]int)
	w.Walk(w.Root(), func(e *sim.Entity) bool {
		if e.ID == w.Root() {
			return true
		}
		if e.Transient {
			return false
		}
		counts[e.Kind.String()]++
		return true
	})
	return counts
}

func printCounts(out io.Writer, counts map[string]int) {
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		printStat(out, k, counts[k])
	}
}

func newLayoutValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Build a layout without running it and report what it contains",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := persist.ReadFile(args[0])
			if err != nil {
				return err
			}
			w, err := buildLayout(rec)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			out := cmd.OutOrStdout()
			printOK(out, args[0]+" is valid")
			printCounts(out, kindCounts(w))
			return nil
		},
	}
}

func newLayoutConvertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Rewrite a layout in the format given by the output extension",
		Long: `Read a layout document and write it back in the format chosen by the
output file's extension (.json, .yaml or .yml). The layout is built once
on the way through, so the output is normalized: every parameter is
written out with its effective value.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := persist.ReadFile(args[0])
			if err != nil {
				return err
			}
			w, err := buildLayout(rec)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			norm, err := persist.Save(w, &plant.Codecs, w.Root())
			if err != nil {
				return err
			}
			if err := persist.WriteFile(args[1], norm); err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), fmt.Sprintf("%s -> %s (%d entities)", args[0], args[1], norm.Count()-1))
			return nil
		},
	}
}

// withStore opens the configured store for the duration of fn.
func withStore(ctx context.Context, root *rootOptions, fn func(ctx context.Context, store persist.Store, name string) error) error {
	cfg, err := root.config()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	store, err := persist.Open(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if store == nil {
		return fmt.Errorf("database.driver is %q, snapshots need a store", cfg.Database.Driver)
	}
	defer store.Close()
	return fn(ctx, store, cfg.Layout.SnapshotName)
}

func newLayoutSaveCommand(root *rootOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "save <file>",
		Short: "Write the latest stored snapshot to a layout file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), root, func(ctx context.Context, store persist.Store, def string) error {
				if name == "" {
					name = def
				}
				snap, err := store.LatestSnapshot(ctx, name)
				if err != nil {
					return fmt.Errorf("snapshot %q: %w", name, err)
				}
				if err := persist.WriteFile(args[0], snap.Layout); err != nil {
					return err
				}
				printOK(cmd.OutOrStdout(), fmt.Sprintf("snapshot %s (tick %d) -> %s", snap.ID, snap.Tick, args[0]))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "snapshot name (default layout.snapshot_name)")
	return cmd
}

func newLayoutLoadCommand(root *rootOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "load <file>",
		Short: "Validate a layout file and store it as the newest snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := persist.ReadFile(args[0])
			if err != nil {
				return err
			}
			if _, err := buildLayout(rec); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return withStore(cmd.Context(), root, func(ctx context.Context, store persist.Store, def string) error {
				if name == "" {
					name = def
				}
				snap := persist.NewSnapshot(name, 0, rec)
				if err := store.SaveSnapshot(ctx, snap); err != nil {
					return err
				}
				printOK(cmd.OutOrStdout(), fmt.Sprintf("%s stored as snapshot %s (%d entities)", args[0], snap.ID, snap.Entities))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "snapshot name (default layout.snapshot_name)")
	return cmd
}

func newLayoutListCommand(root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), root, func(ctx context.Context, store persist.Store, _ string) error {
				infos, err := store.ListSnapshots(ctx, limit)
				if err != nil {
					return err
				}
				printSnapshots(cmd.OutOrStdout(), infos)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of snapshots")
	return cmd
}

func printSnapshots(out io.Writer, infos []persist.SnapshotInfo) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTICK\tENTITIES\tCREATED")
	for _, s := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", s.ID, s.Name, s.Tick, s.Entities, s.CreatedAt.Local().Format(time.DateTime))
	}
	tw.Flush()
}
