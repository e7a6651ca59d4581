package cli

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newShopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shop",
		Short: "Browse and buy upgrades",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show upgrade prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Catalog
			if err := client.Get("/shop", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "buy <upgrade>",
		Short:     "Buy the next level of an upgrade",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"click", "factory", "multiplier"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Purchase
			if err := client.Post("/shop/"+url.PathEscape(args[0]), nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	})

	return cmd
}
