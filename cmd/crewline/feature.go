package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/crewline/crewline/internal/feature"
)

func featureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feature",
		Short: "Manage pipeline features",
	}
	cmd.AddCommand(featureListCmd())
	cmd.AddCommand(featureGetCmd())
	cmd.AddCommand(featureCreateCmd())
	cmd.AddCommand(featureUpdateCmd())
	cmd.AddCommand(featureDeleteCmd())
	cmd.AddCommand(featureExportCmd())
	cmd.AddCommand(featureImportCmd())
	return cmd
}

var statusStyles = map[feature.Status]lipgloss.Style{
	feature.StatusPending:        lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	feature.StatusInDev:          lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	feature.StatusReadyForReview: lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
	feature.StatusApproved:       lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	feature.StatusNeedsRevision:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	feature.StatusQATesting:      lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
	feature.StatusPROpen:         lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
	feature.StatusComplete:       lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
}

var statusIcons = map[feature.Status]string{
	feature.StatusPending:        "○",
	feature.StatusInDev:          "◐",
	feature.StatusReadyForReview: "◑",
	feature.StatusApproved:       "◎",
	feature.StatusNeedsRevision:  "↺",
	feature.StatusQATesting:      "▣",
	feature.StatusPROpen:         "⇡",
	feature.StatusComplete:       "●",
}

func renderFeatureLine(f feature.Feature) string {
	style, ok := statusStyles[f.Status]
	if !ok {
		style = lipgloss.NewStyle()
	}
	icon := statusIcons[f.Status]
	if icon == "" {
		icon = "?"
	}
	line := fmt.Sprintf("%s %s  %s  [%s]", icon, f.ID, f.Description, f.Status)
	if len(f.DependsOn) > 0 {
		line += fmt.Sprintf("  deps: %s", strings.Join(f.DependsOn, ", "))
	}
	return style.Render(line)
}

func featureListCmd() *cobra.Command {
	var status, assigned string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List features",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, _, closeFn, err := openStore()
			if err != nil {
				return err
			}
			defer closeFn()
			features, err := feature.NewStore(storeDB).List(cmd.Context(), feature.Filter{Status: status, AssignedTo: assigned})
			if err != nil {
				return err
			}
			if len(features) == 0 {
				fmt.Println("no features")
				return nil
			}
			for _, f := range features {
				fmt.Println(renderFeatureLine(f))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&assigned, "assigned", "", "filter by assigned agent")
	return cmd
}

func featureGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print a feature as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, _, closeFn, err := openStore()
			if err != nil {
				return err
			}
			defer closeFn()
			f, err := feature.NewStore(storeDB).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			raw, err := json.MarshalIndent(f, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal feature: %w", err)
			}
			fmt.Println(string(raw))
			return nil
		},
	}
}

func featureCreateCmd() *cobra.Command {
	var description, category, openspecRef string
	var depends, compliance []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a feature with the next available id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(description) == "" {
				return fmt.Errorf("description is required")
			}
			storeDB, _, closeFn, err := openStore()
			if err != nil {
				return err
			}
			defer closeFn()
			store := feature.NewStore(storeDB)
			id, err := store.NextID(cmd.Context())
			if err != nil {
				return err
			}
			created, err := store.Create(cmd.Context(), feature.Feature{
				ID:                     id,
				Category:               category,
				Description:            description,
				Status:                 feature.StatusPending,
				DependsOn:              depends,
				ArchitectureCompliance: compliance,
				OpenSpecReference:      openspecRef,
				AssignedTo:             "dev",
				ReviewedBy:             "reviewer",
				TestedBy:               "qa",
			})
			if err != nil {
				return err
			}
			log.Info().Msgf("feature %s created", created.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "feature description (required)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "feature category")
	cmd.Flags().StringSliceVar(&depends, "depends", nil, "feature id this feature depends on (repeatable)")
	cmd.Flags().StringVar(&openspecRef, "openspec", "", "path to external spec artifacts")
	cmd.Flags().StringSliceVar(&compliance, "compliance", nil, "architecture compliance item (repeatable)")
	return cmd
}

func featureUpdateCmd() *cobra.Command {
	var status, notes string
	var passes bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Partially update a feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, _, closeFn, err := openStore()
			if err != nil {
				return err
			}
			defer closeFn()
			update := feature.Update{}
			if cmd.Flags().Changed("status") {
				s := feature.Status(status)
				update.Status = &s
			}
			if cmd.Flags().Changed("passes") {
				update.Passes = &passes
			}
			if cmd.Flags().Changed("notes") {
				update.Notes = &notes
			}
			updated, err := feature.NewStore(storeDB).Update(cmd.Context(), args[0], update)
			if err != nil {
				return err
			}
			log.Info().Msgf("feature %s updated (status=%s passes=%t)", updated.ID, updated.Status, updated.Passes)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().BoolVar(&passes, "passes", false, "QA verdict")
	cmd.Flags().StringVar(&notes, "notes", "", "new notes")
	return cmd
}

func featureDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, _, closeFn, err := openStore()
			if err != nil {
				return err
			}
			defer closeFn()
			if err := feature.NewStore(storeDB).Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			log.Info().Msgf("feature %s deleted", args[0])
			return nil
		},
	}
}

func defaultExportPath(root string) string {
	return filepath.Join(root, "architecture", "feature-requirements.json")
}

func featureExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all features to JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, root, closeFn, err := openStore()
			if err != nil {
				return err
			}
			defer closeFn()
			path := out
			if path == "" {
				path = defaultExportPath(root)
			}
			if err := feature.NewStore(storeDB).Export(cmd.Context(), path); err != nil {
				return err
			}
			fmt.Printf("features exported to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path")
	return cmd
}

func featureImportCmd() *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import features from a JSON export",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, root, closeFn, err := openStore()
			if err != nil {
				return err
			}
			defer closeFn()
			path := in
			if path == "" {
				path = defaultExportPath(root)
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("import file missing: %s", path)
			}
			count, err := feature.NewStore(storeDB).Import(cmd.Context(), path)
			if err != nil {
				return err
			}
			fmt.Printf("imported %d features from %s\n", count, path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "input", "i", "", "input path")
	return cmd
}
