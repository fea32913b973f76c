package main

import (
	"fmt"
	"slices"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/crewline/crewline/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write orchestrator configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print a config value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, _, closeFn, err := openStore()
			if err != nil {
				return err
			}
			defer closeFn()
			value, err := config.NewStore(storeDB).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, _, closeFn, err := openStore()
			if err != nil {
				return err
			}
			defer closeFn()
			if !slices.Contains(config.Keys(), args[0]) {
				log.Warn().Str("key", args[0]).Msg("setting unrecognized config key")
			}
			if err := config.NewStore(storeDB).Set(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("%s = %s\n", args[0], args[1])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the full config snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, _, closeFn, err := openStore()
			if err != nil {
				return err
			}
			defer closeFn()
			snapshot, err := config.NewStore(storeDB).All(cmd.Context())
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(snapshot))
			for key := range snapshot {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Printf("%s = %s\n", key, snapshot[key])
			}
			return nil
		},
	})
	return cmd
}
