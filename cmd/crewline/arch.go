package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crewline/crewline/internal/arch"
)

func archCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arch",
		Short: "Move architecture JSON documents between disk and the store",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import",
		Short: "Copy architecture/*.json into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, root, closeFn, err := openStore()
			if err != nil {
				return err
			}
			defer closeFn()
			imported, err := arch.NewStore(storeDB).Import(cmd.Context(), root)
			if err != nil {
				return err
			}
			if len(imported) == 0 {
				fmt.Println("no architecture documents found")
				return nil
			}
			fmt.Printf("imported: %s\n", strings.Join(imported, ", "))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Write stored architecture documents back to architecture/",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, root, closeFn, err := openStore()
			if err != nil {
				return err
			}
			defer closeFn()
			exported, err := arch.NewStore(storeDB).Export(cmd.Context(), root)
			if err != nil {
				return err
			}
			if len(exported) == 0 {
				fmt.Println("no architecture documents stored")
				return nil
			}
			fmt.Printf("exported: %s\n", strings.Join(exported, ", "))
			return nil
		},
	})
	return cmd
}
