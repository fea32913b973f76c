package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crewline/crewline/internal/autoplay"
	"github.com/crewline/crewline/internal/config"
	"github.com/crewline/crewline/internal/feature"
	"github.com/crewline/crewline/internal/openspec"
	"github.com/crewline/crewline/internal/vcs"
)

func autoplayCmd() *cobra.Command {
	var mode string
	var autoMerge bool
	cmd := &cobra.Command{
		Use:   "autoplay",
		Short: "Run the pipeline until the backlog drains",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, root, closeFn, err := openStore()
			if err != nil {
				return err
			}
			defer closeFn()

			cfg := config.NewStore(storeDB)
			if cmd.Flags().Changed("mode") {
				if mode != config.ModeTeam && mode != config.ModeOrchestrator {
					return fmt.Errorf("unknown mode %q (team|orchestrator)", mode)
				}
				cfg.Override(config.KeyExecutionMode, mode)
			}
			if cmd.Flags().Changed("auto-merge") {
				cfg.Override(config.KeyAutoMerge, strconv.FormatBool(autoMerge))
			}

			features := feature.NewStore(storeDB)
			bridge := vcs.NewBridge(root, features)
			importer := openspec.NewImporter(features, openspec.NewClient(root))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			controller := autoplay.New(root, features, cfg, bridge, importer)
			return controller.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "execution mode for this run (team|orchestrator)")
	cmd.Flags().BoolVar(&autoMerge, "auto-merge", true, "merge PRs automatically for this run")
	return cmd
}
