package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/Yates-Labs/storyprompt/internal/i18n"
	"github.com/Yates-Labs/storyprompt/internal/narrative"
	"github.com/Yates-Labs/storyprompt/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// generateOptions are the generate-only flags.
type generateOptions struct {
	Vendor     string
	APIKey     string
	Rating     int
	Save       bool
	Dir        string
	ShowPrompt bool
}

var (
	genPromptOpts promptOptions
	genOpts       generateOptions
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Draw story elements and have an AI vendor write the story",
	Long: `Draw story elements, assemble the prompt and send it to an AI vendor.

Vendors:
  claude  Anthropic Claude   (ANTHROPIC_API_KEY)
  grok    xAI Grok           (XAI_API_KEY)
  openai  OpenAI             (OPENAI_API_KEY)
  gemini  Google Gemini      (GEMINI_API_KEY)
  demo    Offline demo story (no key needed)

Examples:
  storyprompt generate
  storyprompt generate --vendor claude --rating 4 --save
  storyprompt generate --vendor openai --template story --genre "Mystery" --names 2`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = a.log.Sync() }()
		opts := genPromptOpts.withConfig(cmd.Flags(), a)
		return runGenerate(cmd.Context(), cmd.OutOrStdout(), a, opts, genOpts, narrative.NewLLM, time.Now)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	addPromptFlags(generateCmd.Flags(), &genPromptOpts)
	generateCmd.Flags().StringVar(&genOpts.Vendor, "vendor", "", "AI vendor: claude, grok, openai, gemini, demo (default from VENDOR)")
	generateCmd.Flags().StringVar(&genOpts.APIKey, "api-key", "", "API key for the vendor (default from the vendor's environment variable)")
	generateCmd.Flags().IntVar(&genOpts.Rating, "rating", 0, "Rate the story from 1 to 5 stars")
	generateCmd.Flags().BoolVar(&genOpts.Save, "save", false, "Save the story under a file name derived from its title")
	generateCmd.Flags().StringVar(&genOpts.Dir, "dir", ".", "Directory for --save")
	generateCmd.Flags().BoolVar(&genOpts.ShowPrompt, "show-prompt", false, "Also print the prompt sent to the vendor")
}

func runGenerate(
	ctx context.Context,
	w io.Writer,
	a *app,
	opts promptOptions,
	gen generateOptions,
	newLLM func(narrative.LLMConfig) (narrative.LLM, error),
	now func() time.Time,
) error {
	if gen.Rating < 0 || gen.Rating > session.MaxRating {
		return fmt.Errorf("%w: got %d", session.ErrInvalidRating, gen.Rating)
	}
	vendor := a.cfg.DefaultVendor()
	if gen.Vendor != "" {
		var err error
		if vendor, err = narrative.ParseVendor(gen.Vendor); err != nil {
			return err
		}
	}

	sess, err := newSession(w, a, opts.Count)
	if err != nil {
		return err
	}
	params, tmpl, err := opts.resolve(a, sess)
	if err != nil {
		return err
	}
	if gen.ShowPrompt {
		text, err := sess.BuildPrompt(params, tmpl)
		if err != nil {
			return err
		}
		renderPrompt(w, text, a.lang)
	}

	llmCfg := a.cfg.LLMConfig(vendor, gen.APIKey)
	llm, err := newLLM(llmCfg)
	if err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, mutedStyle.Render("→ "+i18n.Text(a.lang, "cli.generating")))
	a.log.Debug("Generating story", zap.String("vendor", string(vendor)), zap.String("model", llmCfg.Model))

	record, err := sess.Generate(ctx, narrative.NewGenerator(llm, llmCfg), params, tmpl)
	if err != nil {
		return err
	}
	if gen.Rating != 0 {
		if record, err = sess.Rate(gen.Rating); err != nil {
			return err
		}
	}
	renderStory(w, record, a.lang)

	if gen.Save {
		filename, data, err := sess.Download(now())
		if err != nil {
			return err
		}
		path := filepath.Join(gen.Dir, filename)
		if err := writeFile(path, data); err != nil {
			return err
		}
		renderSaved(w, path, a.lang)
	}
	return nil
}
