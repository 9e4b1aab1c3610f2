package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/memento/internal/types"
	"github.com/andresmejia3/memento/internal/utils"
	"github.com/spf13/cobra"
)

var listScope string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the people enrolled in a scope",
	Run: func(cmd *cobra.Command, args []string) {
		runList(cmd.Context(), listScope)
	},
}

func init() {
	listCmd.Flags().StringVarP(&listScope, "scope", "u", "", "Scope to list")
	listCmd.MarkFlagRequired("scope")
	rootCmd.AddCommand(listCmd)
}

func runList(ctx context.Context, scope string) {
	people, err := DB.ListPeople(ctx, scope)
	if err != nil {
		utils.Die("Failed to list people", err, nil)
	}

	if len(people) == 0 {
		fmt.Println("No people found in this scope.")
		return
	}
	printPeople(os.Stdout, people)
}

func printPeople(out io.Writer, people []types.PersonRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tRELATION\tENROLLED")
	fmt.Fprintln(w, "--\t----\t--------\t--------")

	for _, p := range people {
		enrolled := "no"
		if p.HasEmbedding() {
			enrolled = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Relation, enrolled)
	}
	w.Flush()
}
