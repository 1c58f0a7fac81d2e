package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"go.llib.dev/sharedrt/internal/demo/glyph"
)

func glyphsCmd(a *app) *cobra.Command {
	var font glyph.Font
	cmd := &cobra.Command{
		Use:   "glyphs <text>",
		Short: "Typeset text and report how many glyphs were shared",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store := &glyph.Store{
				Name:             "glyphs",
				Capacity:         a.config.StoreCapacity,
				TTL:              a.config.StoreTTL,
				ReleaseOnLastRef: a.config.StoreReleaseOnLastRef,
				Logger:           a.logger,
				Metrics:          a.metrics,
			}
			defer func() { _ = store.Close(ctx) }()

			line, err := glyph.Typeset(ctx, store, args[0], font)
			if err != nil {
				return err
			}
			defer line.Release()

			keys := store.Keys()
			sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "typeset %d symbols with %d glyphs\n", len(line.Glyphs), len(keys))
			for _, k := range keys {
				fmt.Fprintf(w, "%s\tx%d\n", k, store.Refs(k))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&font.Family, "family", "Arial", "font family")
	cmd.Flags().IntVar(&font.Size, "size", 12, "font size")
	cmd.Flags().StringVar(&font.Color, "color", "Black", "font color")
	return cmd
}
