package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tilebridge/pkg/bridge"
	"tilebridge/pkg/config"
	"tilebridge/pkg/snapshot"
	"tilebridge/pkg/state"
)

var (
	stateNamespace string
	importReplace  bool
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect and edit stored state",
	Long: `Inspect and edit the state scripts have stored.

Namespaces: window, layout, windowlist, surface.

Examples:
  tilebridge state list -n layout
  tilebridge state get geom
  tilebridge state put -n layout desk1 '{"layout":"monocle"}'
  tilebridge state export backup.json`,
}

var stateGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNamespace(func(ctx context.Context, view *state.Namespace) error {
			value, ok, err := view.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s/%s is not set", view.Name(), args[0])
			}
			fmt.Println(value)
			return nil
		})
	},
}

var statePutCmd = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "Store a value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNamespace(func(ctx context.Context, view *state.Namespace) error {
			return view.Set(ctx, args[0], args[1])
		})
	},
}

var stateDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove a value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNamespace(func(ctx context.Context, view *state.Namespace) error {
			return view.Delete(ctx, args[0])
		})
	},
}

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keys and values of a namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNamespace(func(ctx context.Context, view *state.Namespace) error {
			all, err := view.GetAll(ctx)
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Printf("No %s state stored.\n", view.Name())
				return nil
			}

			keys := make([]string, 0, len(all))
			for k := range all {
				keys = append(keys, k)
			}
			slices.Sort(keys)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tVALUE")
			for _, k := range keys {
				fmt.Fprintf(w, "%s\t%s\n", k, truncate(all[k], 80))
			}
			return w.Flush()
		})
	},
}

var stateClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every key of a namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNamespace(func(ctx context.Context, view *state.Namespace) error {
			if err := view.Clear(ctx); err != nil {
				return err
			}
			fmt.Printf("Cleared %s state.\n", view.Name())
			return nil
		})
	},
}

var stateExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write all namespaces to a snapshot file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBridge(func(ctx context.Context, _ *bridge.Bridge, kv state.KV, cfg *config.Config) error {
			path := cfg.State.SnapshotPath
			if len(args) == 1 {
				path = args[0]
			}
			snap, err := snapshot.Export(ctx, kv)
			if err != nil {
				return err
			}
			if err := snapshot.WriteFile(path, snap); err != nil {
				return err
			}
			fmt.Printf("Exported %d keys to %s\n", snap.Keys(), path)
			return nil
		})
	},
}

var stateImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Load a snapshot file into the store",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBridge(func(ctx context.Context, _ *bridge.Bridge, kv state.KV, cfg *config.Config) error {
			path := cfg.State.SnapshotPath
			if len(args) == 1 {
				path = args[0]
			}
			snap, err := snapshot.ReadFile(path)
			if err != nil {
				return err
			}
			if err := snapshot.Restore(ctx, kv, snap, importReplace); err != nil {
				return err
			}
			fmt.Printf("Imported %d keys from %s\n", snap.Keys(), path)
			return nil
		})
	},
}

func init() {
	stateCmd.PersistentFlags().StringVarP(&stateNamespace, "namespace", "n", string(bridge.NamespaceWindow),
		"namespace: window, layout, windowlist or surface")
	stateImportCmd.Flags().BoolVar(&importReplace, "replace", false, "clear each imported namespace first")

	stateCmd.AddCommand(stateGetCmd)
	stateCmd.AddCommand(statePutCmd)
	stateCmd.AddCommand(stateDeleteCmd)
	stateCmd.AddCommand(stateListCmd)
	stateCmd.AddCommand(stateClearCmd)
	stateCmd.AddCommand(stateExportCmd)
	stateCmd.AddCommand(stateImportCmd)

	rootCmd.AddCommand(stateCmd)
}

func withNamespace(fn func(ctx context.Context, view *state.Namespace) error) error {
	ns, err := bridge.ParseNamespace(stateNamespace)
	if err != nil {
		return err
	}
	return withBridge(func(ctx context.Context, _ *bridge.Bridge, kv state.KV, _ *config.Config) error {
		return fn(ctx, state.Namespaced(kv, string(ns)))
	})
}

// truncate truncates a string to the specified length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
