package cmd

import (
	"github.com/spf13/cobra"
)

var catalogueCmd = &cobra.Command{
	Use:   "catalogue",
	Short: "Show the loaded story-element catalogue",
	Long: `Load the catalogue the same way every other command does and print
where it came from, how many items and variants it holds, and the
variant count per item.

The first readable and valid file from --catalogue (or CATALOGUE_PATHS)
is used; when none loads, the built-in sample data is shown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		renderCatalogue(cmd.OutOrStdout(), a.catalogue, a.lang)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogueCmd)
}
