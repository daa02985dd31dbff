package cmd

import (
	"fmt"
	"os"

	"github.com/Yates-Labs/storyprompt/internal/catalogue"
	"github.com/Yates-Labs/storyprompt/internal/config"
	"github.com/Yates-Labs/storyprompt/internal/i18n"
	"github.com/Yates-Labs/storyprompt/internal/logger"
	"github.com/Yates-Labs/storyprompt/internal/sampler"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

var (
	cataloguePaths []string
	langFlag       string
	logLevel       string
	seed           uint64
)

var rootCmd = &cobra.Command{
	Use:   "storyprompt",
	Short: "storyprompt - Random story elements and short-short story prompts",
	Long: `storyprompt draws random story elements from a catalogue of themed items,
assembles them into a writing prompt, and optionally asks an AI vendor
(Claude, Grok, OpenAI, Gemini or an offline demo) to write the story.

Settings are read from the environment and a .env file; flags override them.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&cataloguePaths, "catalogue", nil, "Catalogue JSON files to try in order (default from CATALOGUE_PATHS)")
	rootCmd.PersistentFlags().StringVar(&langFlag, "lang", "", "Output language: ja or en (default from STORY_LANGUAGE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from LOG_LEVEL)")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 0, "Random seed for reproducible draws (0 = random)")
}

// Execute runs the root command
func Execute() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

// app is the state every subcommand starts from.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	catalogue *catalogue.Catalogue
	lang      language.Tag
	seed      uint64
}

// loadApp reads the configuration, applies flag overrides and loads the catalogue.
func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("catalogue") {
		cfg.CataloguePaths = cataloguePaths
	}
	if flags.Changed("lang") {
		cfg.Language = langFlag
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	log, err := logger.New(cfg.Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &app{
		cfg:       cfg,
		log:       log,
		catalogue: catalogue.NewLoader(log, cfg.CataloguePaths...).Load(),
		lang:      i18n.Match(cfg.Language),
		seed:      seed,
	}, nil
}

// newSampler returns a seeded sampler when --seed is set.
func (a *app) newSampler() *sampler.Sampler {
	if a.seed != 0 {
		return sampler.NewSeeded(a.seed)
	}
	return sampler.NewRandom()
}
