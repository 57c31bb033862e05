package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tilebridge/pkg/bridge"
	"tilebridge/pkg/config"
	"tilebridge/pkg/state"
)

var surfaceCmd = &cobra.Command{
	Use:   "surface",
	Short: "Read and assign surface groups",
}

var surfaceGetCmd = &cobra.Command{
	Use:   "get <desktop> <screen>",
	Short: "Print the group of a (desktop, screen) cell; -1 when unassigned",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ints, err := parseInts(args)
		if err != nil {
			return err
		}
		return withBridge(func(ctx context.Context, b *bridge.Bridge, _ state.KV, _ *config.Config) error {
			group, err := b.Surfaces().Get(ctx, ints[0], ints[1])
			if err != nil {
				return err
			}
			fmt.Println(group)
			return nil
		})
	},
}

var surfaceSetCmd = &cobra.Command{
	Use:   "set <desktop> <screen> <group>",
	Short: "Assign a group to a (desktop, screen) cell",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ints, err := parseInts(args)
		if err != nil {
			return err
		}
		return withBridge(func(ctx context.Context, b *bridge.Bridge, _ state.KV, _ *config.Config) error {
			return b.Surfaces().Set(ctx, ints[0], ints[1], ints[2])
		})
	},
}

func init() {
	surfaceCmd.AddCommand(surfaceGetCmd)
	surfaceCmd.AddCommand(surfaceSetCmd)
	rootCmd.AddCommand(surfaceCmd)
}

func parseInts(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %q is not an integer", i+1, a)
		}
		out[i] = n
	}
	return out, nil
}
