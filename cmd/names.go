package cmd

import (
	"fmt"
	"io"

	"github.com/Yates-Labs/storyprompt/internal/prompt"
	"github.com/spf13/cobra"
)

var nameCount int

var namesCmd = &cobra.Command{
	Use:   "names",
	Short: "Generate katakana character names",
	Long: `Generate short two-katakana character names to use with --characters.

Examples:
  storyprompt names
  storyprompt names -n 5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		return runNames(cmd.OutOrStdout(), a, nameCount)
	},
}

func init() {
	rootCmd.AddCommand(namesCmd)
	namesCmd.Flags().IntVarP(&nameCount, "count", "n", 3, "Number of names")
}

func runNames(w io.Writer, a *app, n int) error {
	if n < 1 {
		return fmt.Errorf("name count must be positive, got %d", n)
	}
	names := prompt.NewNameGenerator(a.newSampler().Source()).Names(n)
	renderNames(w, names, a.lang)
	return nil
}
