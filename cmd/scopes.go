package cmd

import (
	"fmt"

	"github.com/andresmejia3/memento/internal/utils"
	"github.com/spf13/cobra"
)

var scopesCmd = &cobra.Command{
	Use:   "scopes",
	Short: "List the scopes that own enrolled people",
	Run: func(cmd *cobra.Command, args []string) {
		scopes, err := DB.Scopes(cmd.Context())
		if err != nil {
			utils.Die("Failed to list scopes", err, nil)
		}
		if len(scopes) == 0 {
			fmt.Println("No people found in database.")
			return
		}
		for _, s := range scopes {
			fmt.Println(s)
		}
	},
}

func init() {
	rootCmd.AddCommand(scopesCmd)
}
