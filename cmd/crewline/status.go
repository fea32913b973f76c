package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/crewline/crewline/internal/autoplay"
	"github.com/crewline/crewline/internal/feature"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print pipeline status with counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, _, closeFn, err := openStore()
			if err != nil {
				return err
			}
			defer closeFn()
			store := feature.NewStore(storeDB)
			features, err := store.List(cmd.Context(), feature.Filter{})
			if err != nil {
				return err
			}

			fmt.Println(headerStyle.Render("Pipeline status"))
			counts := map[feature.Status]int{}
			for _, f := range features {
				counts[f.Status]++
			}
			fmt.Printf("total: %d\n", len(features))
			for _, status := range feature.Statuses() {
				if counts[status] > 0 {
					fmt.Printf("  %s %-17s %d\n", statusIcons[status], status, counts[status])
				}
			}

			blocked := feature.Blocked(features)
			if len(blocked) > 0 {
				ids := make([]string, 0, len(blocked))
				for id := range blocked {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				fmt.Println(headerStyle.Render("Blocked"))
				for _, id := range ids {
					fmt.Printf("  %s waiting on %s\n", id, strings.Join(blocked[id], ", "))
				}
			}

			sessions, err := store.RecentSessions(cmd.Context(), 10)
			if err != nil {
				return err
			}
			if len(sessions) > 0 {
				fmt.Println(headerStyle.Render("Recent sessions"))
				for _, s := range sessions {
					fmt.Printf("  #%d %s %s → %s (%s)\n", s.SessionNumber, s.AgentRole, s.FeatureID, s.Outcome, s.CreatedAt)
				}
			}
			return nil
		},
	}
}

func guidedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "guided",
		Short: "Print next step instructions for a human driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, _, closeFn, err := openStore()
			if err != nil {
				return err
			}
			defer closeFn()
			features, err := feature.NewStore(storeDB).List(cmd.Context(), feature.Filter{})
			if err != nil {
				return err
			}
			md, err := autoplay.GuidedMarkdown(features, map[string]bool{}, 1)
			if err != nil {
				return err
			}
			fmt.Print(autoplay.RenderMarkdown(md))
			return nil
		},
	}
}
