package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Yates-Labs/storyprompt/internal/prompt"
	"github.com/Yates-Labs/storyprompt/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// promptOptions are the flags shared by prompt and generate.
type promptOptions struct {
	Count       int
	Template    string
	WordCount   int
	Genre       string
	Ending      string
	Characters  []string
	RandomNames int
}

var (
	promptOpts promptOptions
	outputPath string
	saveDir    string
	savePrompt bool
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Draw story elements and print a writing prompt",
	Long: `Draw story elements and assemble them into a writing prompt, without
calling any AI vendor. Paste the prompt into any chat assistant.

Templates:
  shortshort  Literary short-short story with a twist ending (default)
  story       General story-writing instructions with genre and ending

Examples:
  storyprompt prompt
  storyprompt prompt --template story --genre "SF" --words 2000
  storyprompt prompt --names 2 --save
  storyprompt prompt --lang en --output prompt.txt`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		opts := promptOpts.withConfig(cmd.Flags(), a)
		return runPrompt(cmd.OutOrStdout(), a, opts, outputPath, savePrompt, saveDir, time.Now())
	},
}

func init() {
	rootCmd.AddCommand(promptCmd)
	addPromptFlags(promptCmd.Flags(), &promptOpts)
	promptCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the prompt to this file")
	promptCmd.Flags().BoolVar(&savePrompt, "save", false, "Save the prompt under a timestamped file name")
	promptCmd.Flags().StringVar(&saveDir, "dir", ".", "Directory for --save")
}

func addPromptFlags(flags *pflag.FlagSet, opts *promptOptions) {
	flags.IntVarP(&opts.Count, "count", "n", session.DefaultElementCount, "Number of story elements to draw")
	flags.StringVarP(&opts.Template, "template", "t", "", "Prompt template: shortshort or story (default from PROMPT_TEMPLATE)")
	flags.IntVarP(&opts.WordCount, "words", "w", 0, "Target length in characters/words (default from WORD_COUNT)")
	flags.StringVar(&opts.Genre, "genre", "", "Genre or style (default depends on the template)")
	flags.StringVar(&opts.Ending, "ending", "", "Ending style (default depends on the template)")
	flags.StringSliceVar(&opts.Characters, "characters", nil, "Character names, comma separated")
	flags.IntVar(&opts.RandomNames, "names", 0, "Add this many generated character names")
}

// withConfig fills the options the user did not set from the configuration.
func (o promptOptions) withConfig(flags *pflag.FlagSet, a *app) promptOptions {
	if !flags.Changed("count") {
		o.Count = a.cfg.ElementCount
	}
	if !flags.Changed("template") {
		o.Template = a.cfg.Template
	}
	if !flags.Changed("words") {
		o.WordCount = a.cfg.WordCount
	}
	return o
}

// resolve turns the options into prompt parameters for sess.
func (o promptOptions) resolve(a *app, sess *session.Session) (prompt.Params, prompt.Template, error) {
	tmpl, err := prompt.ParseTemplate(o.Template)
	if err != nil {
		return prompt.Params{}, "", err
	}
	var characters []string
	for _, name := range o.Characters {
		if name = strings.TrimSpace(name); name != "" {
			characters = append(characters, name)
		}
	}
	if o.RandomNames > 0 {
		characters = append(characters, sess.Names(o.RandomNames)...)
	}
	params := prompt.Params{
		WordCount:  o.WordCount,
		Genre:      strings.TrimSpace(o.Genre),
		Ending:     strings.TrimSpace(o.Ending),
		Characters: characters,
	}
	if params.WordCount == 0 {
		params.WordCount = a.cfg.WordCount
	}
	return params.WithDefaults(a.lang, tmpl), tmpl, nil
}

func runPrompt(w io.Writer, a *app, opts promptOptions, output string, save bool, dir string, now time.Time) error {
	sess, err := newSession(w, a, opts.Count)
	if err != nil {
		return err
	}
	params, tmpl, err := opts.resolve(a, sess)
	if err != nil {
		return err
	}
	text, err := sess.BuildPrompt(params, tmpl)
	if err != nil {
		return err
	}
	renderPrompt(w, text, a.lang)

	if output != "" {
		if err := writeFile(output, []byte(text)); err != nil {
			return err
		}
		renderSaved(w, output, a.lang)
	}
	if save {
		path := filepath.Join(dir, session.PromptFilename(a.lang, now))
		if err := writeFile(path, []byte(text)); err != nil {
			return err
		}
		renderSaved(w, path, a.lang)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
