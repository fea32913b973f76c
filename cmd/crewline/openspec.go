package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/crewline/crewline/internal/feature"
	"github.com/crewline/crewline/internal/openspec"
)

func openspecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "openspec",
		Short: "Integrate external OpenSpec changes",
	}
	cmd.AddCommand(openspecInstallCmd())
	cmd.AddCommand(openspecRefreshCmd())
	cmd.AddCommand(openspecStatusCmd())
	cmd.AddCommand(openspecImportCmd())
	cmd.AddCommand(openspecArchiveCmd())
	return cmd
}

func newImporter() (*openspec.Importer, func(), error) {
	storeDB, root, closeFn, err := openStore()
	if err != nil {
		return nil, func() {}, err
	}
	client := openspec.NewClient(root)
	return openspec.NewImporter(feature.NewStore(storeDB), client), closeFn, nil
}

func openspecInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the openspec CLI (best-effort)",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot()
			if err != nil {
				return err
			}
			client := openspec.NewClient(root)
			if client.Available() {
				fmt.Println("openspec CLI already installed")
				return nil
			}
			if err := client.Install(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("openspec CLI installed")
			return nil
		},
	}
}

func openspecRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Re-run the openspec project update",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot()
			if err != nil {
				return err
			}
			if err := openspec.NewClient(root).Refresh(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("openspec project refreshed")
			return nil
		},
	}
}

func openspecStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print openspec version and active changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot()
			if err != nil {
				return err
			}
			client := openspec.NewClient(root)
			if version, err := client.Version(cmd.Context()); err == nil {
				fmt.Printf("openspec %s\n", version)
			} else {
				fmt.Println("openspec CLI not available (filesystem fallback active)")
			}
			changes, err := client.ActiveChanges(cmd.Context())
			if err != nil {
				return err
			}
			if len(changes) == 0 {
				fmt.Println("no active changes")
				return nil
			}
			fmt.Printf("active changes: %s\n", strings.Join(changes, ", "))
			return nil
		},
	}
}

func openspecImportCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "import [change]",
		Short: "Upsert features from a change (or all active changes)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("a change name or --all is required")
			}
			importer, closeFn, err := newImporter()
			if err != nil {
				return err
			}
			defer closeFn()
			var results []openspec.Result
			if all {
				results, err = importer.ImportAll(cmd.Context())
			} else {
				var result openspec.Result
				result, err = importer.Import(cmd.Context(), args[0])
				results = []openspec.Result{result}
			}
			if err != nil {
				return err
			}
			for _, result := range results {
				log.Info().Str("change", result.Change).
					Int("created", len(result.Created)).
					Int("updated", len(result.Updated)).
					Msg("change imported")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "import every active change")
	return cmd
}

func openspecArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <feature-id>",
		Short: "Archive the feature's change once every sibling is complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			importer, closeFn, err := newImporter()
			if err != nil {
				return err
			}
			defer closeFn()
			archived, err := importer.MaybeArchive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !archived {
				fmt.Println("change not archived: siblings still in progress or no change attached")
				return nil
			}
			fmt.Println("change archived")
			return nil
		},
	}
}
