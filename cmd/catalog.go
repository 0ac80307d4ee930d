package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"workflow-builder/api/services/catalog"
)

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog [query]",
		Short: "List node templates, optionally filtered by a search query",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			templates := catalog.Default().Search(strings.Join(args, " "))
			if len(templates) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No templates match.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tCATEGORY\tLABEL\tCREDENTIALS")
			for _, t := range templates {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					t.ID, t.Type, t.Category, t.Label, strings.Join(t.RequiredCredentialKinds, ","))
			}
			return tw.Flush()
		},
	}
}
