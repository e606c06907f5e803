package main

import (
	"fmt"

	"github.com/dfryer1193/goblog-images/blog/persistence"
	"github.com/spf13/cobra"
)

func newPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete cache entries written under retired key schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			kv, err := openStore(cfg)
			if err != nil {
				return err
			}
			cache := persistence.NewCache(kv)
			defer cache.Close()

			n, err := cache.PurgeRetired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d entries\n", n)
			return nil
		},
	}
	addStoreFlags(cmd.Flags())
	return cmd
}
