package cmd

import (
	"fmt"
	"io"

	"github.com/Yates-Labs/storyprompt/internal/session"
	"github.com/spf13/cobra"
)

var elementCount int

var elementsCmd = &cobra.Command{
	Use:   "elements",
	Short: "Draw random story elements",
	Long: `Draw story elements from the catalogue. Each element is one variant of one
catalogue item, and no variant is drawn twice.

Examples:
  storyprompt elements
  storyprompt elements -n 8 --seed 42
  storyprompt elements --catalogue my_elements.json --lang en`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		count := a.cfg.ElementCount
		if cmd.Flags().Changed("count") {
			count = elementCount
		}
		return runElements(cmd.OutOrStdout(), a, count)
	},
}

func init() {
	rootCmd.AddCommand(elementsCmd)
	elementsCmd.Flags().IntVarP(&elementCount, "count", "n", session.DefaultElementCount, "Number of elements to draw")
}

// newSession starts a session over the app's catalogue with count elements drawn.
func newSession(w io.Writer, a *app, count int) (*session.Session, error) {
	if count < 1 {
		return nil, fmt.Errorf("element count must be positive, got %d", count)
	}
	sess := session.New(a.catalogue, a.newSampler(), a.lang)
	views := sess.Resample(count)
	renderElements(w, views, a.lang)
	renderPartial(w, len(views), count, a.lang)
	return sess, nil
}

func runElements(w io.Writer, a *app, count int) error {
	_, err := newSession(w, a, count)
	return err
}
