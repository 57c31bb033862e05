package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tilebridge/pkg/bridge"
	"tilebridge/pkg/config"
	"tilebridge/pkg/state"
)

var windowsRaw bool

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "Read and replace the known window list",
}

var windowsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the window list, one id per line",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBridge(func(ctx context.Context, b *bridge.Bridge, _ state.KV, _ *config.Config) error {
			list, err := b.WindowList().Get(ctx)
			if err != nil {
				return err
			}
			if windowsRaw {
				fmt.Println(list)
				return nil
			}
			ids, err := bridge.DecodeWindowList(list)
			if err != nil {
				return fmt.Errorf("%w (use --raw to print it as stored)", err)
			}
			if len(ids) > 0 {
				fmt.Println(strings.Join(ids, "\n"))
			}
			return nil
		})
	},
}

var windowsPutCmd = &cobra.Command{
	Use:   "put <id>...",
	Short: "Replace the window list",
	Long: `Replace the window list with the given ids. With --raw, the single
argument is stored verbatim.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var list string
		if windowsRaw {
			if len(args) != 1 {
				return fmt.Errorf("--raw takes exactly one argument")
			}
			list = args[0]
		} else {
			encoded, err := bridge.EncodeWindowList(args)
			if err != nil {
				return err
			}
			list = encoded
		}
		return withBridge(func(ctx context.Context, b *bridge.Bridge, _ state.KV, _ *config.Config) error {
			return b.WindowList().Put(ctx, list)
		})
	},
}

func init() {
	windowsCmd.PersistentFlags().BoolVar(&windowsRaw, "raw", false, "do not encode or decode the list")
	windowsCmd.AddCommand(windowsGetCmd)
	windowsCmd.AddCommand(windowsPutCmd)
	rootCmd.AddCommand(windowsCmd)
}
