// Package cmd provides the command-line interface of mdbook-env.
//
// Run without a subcommand, mdbook-env is an mdbook preprocessor: it reads
// the [context, book] JSON pair from standard input and writes the book
// with every environment block rendered to standard output.
//
// Configuration System:
//
//	Configuration is merged from several sources with clear precedence:
//	1. Command-line flags (--no-builtin, --workers, ...) - highest priority
//	2. MDBOOK_ENV_ environment variables (MDBOOK_ENV_WORKERS, MDBOOK_ENV_LOG_LEVEL, ...)
//	3. Configuration file: --config, MDBOOK_ENV_CONFIG_FILE or .mdbook-env.{yml,json,toml}
//	4. The [preprocessor.env] table of book.toml
//	5. Defaults - lowest priority
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/mdbook-env/internal/config"
	"github.com/conneroisu/mdbook-env/internal/env"
	enverrors "github.com/conneroisu/mdbook-env/internal/errors"
	"github.com/conneroisu/mdbook-env/internal/logging"
	"github.com/conneroisu/mdbook-env/internal/mdbook"
	"github.com/conneroisu/mdbook-env/internal/preprocess"
)

var (
	cfgFile   string
	bookFile  string
	configErr error
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mdbook-env",
	Short: "An mdbook preprocessor providing LaTeX styled environments",
	Long: `mdbook-env renders fenced code blocks such as theorem, lemma or proof
into numbered, styled markdown/HTML through user-configurable templates.

Add it to book.toml:

  [preprocessor.env]
  command = "mdbook-env"

Then write environments in your chapters:

  ` + "```theorem \"Pythagoras\"" + `
  a² + b² = c²
  ` + "```" + `

Run without a subcommand, it reads the book from standard input and writes
the processed book to standard output, as mdbook expects.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          runPreprocess,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "environment config file (default is .mdbook-env.{yml,json,toml}, can also use MDBOOK_ENV_CONFIG_FILE)")
	flags.StringVar(&bookFile, "book", "book.toml", "book.toml to read [preprocessor.env] from outside of an mdbook run")
	flags.Bool("no-builtin", false, "turn off all builtin environments")
	flags.StringP("log-level", "l", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("log-format", config.DefaultLogFormat, "log format (text, json)")
	flags.Int("workers", config.DefaultWorkers, "number of chapters processed concurrently")

	_ = viper.BindPFlag(config.KeyNoBuiltin, flags.Lookup("no-builtin"))
	_ = viper.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = viper.BindPFlag(config.KeyLogFormat, flags.Lookup("log-format"))
	_ = viper.BindPFlag(config.KeyWorkers, flags.Lookup("workers"))

	AddFlagValidation(rootCmd.PersistentFlags(), "log-level", func(level string) error {
		_, err := logging.ParseLevel(level)
		return err
	})
	AddFlagValidation(rootCmd.PersistentFlags(), "workers", ValidatePositiveInt)
	AddFlagValidation(rootCmd.PersistentFlags(), "config", ValidateFileExists)
}

// initConfig initializes the configuration system.
//
// Configuration file priority (highest to lowest):
//  1. --config flag
//  2. MDBOOK_ENV_CONFIG_FILE environment variable
//  3. .mdbook-env.{yml,yaml,json,toml} in the current directory
//
// A missing default file is fine; an explicitly named file must load.
func initConfig() {
	explicit := true
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("MDBOOK_ENV_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		explicit = false
		viper.AddConfigPath(".")
		viper.SetConfigName(".mdbook-env")
	}

	viper.SetEnvPrefix("MDBOOK_ENV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			configErr = fmt.Errorf("configuration error: %w", err)
		}
	}
}

// app is everything a command needs once configuration is loaded.
type app struct {
	cfg      *config.Config
	logger   logging.Logger
	registry *env.Registry
	close    func()
}

// newApp loads the configuration, with bookTable layered under the other
// sources, and builds the logger and the environment registry.
func newApp(cmd *cobra.Command, bookTable map[string]interface{}) (*app, error) {
	if configErr != nil {
		return nil, configErr
	}

	v := viper.GetViper()
	if bookTable != nil {
		config.ApplyBookConfig(v, bookTable)
	}

	cfg, err := config.LoadFrom(v)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := newLogger(cmd, cfg.Log)
	if err != nil {
		return nil, err
	}

	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug(commandContext(cmd), "Using config file", "path", used)
	}

	registry, err := config.BuildRegistry(cfg)
	if err != nil {
		closeLog()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		close:    closeLog,
	}, nil
}

// newLocalApp is newApp for commands running outside of mdbook: the
// [preprocessor.env] table comes from the book.toml named by --book.
func newLocalApp(cmd *cobra.Command) (*app, error) {
	table, err := localBookTable(cmd)
	if err != nil {
		return nil, err
	}
	return newApp(cmd, table)
}

func localBookTable(cmd *cobra.Command) (map[string]interface{}, error) {
	book, err := readLocalBook(cmd)
	if err != nil || book == nil {
		return nil, err
	}
	return book.PreprocessorTable(mdbook.Name), nil
}

// readLocalBook reads --book. The default book.toml is optional.
func readLocalBook(cmd *cobra.Command) (*config.BookTOML, error) {
	if bookFile == "" {
		return nil, nil
	}
	explicit := cmd.Flags().Changed("book")
	if _, err := os.Stat(bookFile); err != nil && !explicit {
		return nil, nil
	}
	return config.ReadBookTOML(bookFile)
}

func newLogger(cmd *cobra.Command, lc config.LogConfig) (logging.Logger, func(), error) {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return nil, nil, err
	}

	base := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: lc.Format,
		Output: cmd.ErrOrStderr(),
	})

	if lc.Dir == "" {
		return base, func() {}, nil
	}

	file, err := logging.NewFileLogger(&logging.LoggerConfig{Level: level, Format: lc.Format}, lc.Dir)
	if err != nil {
		return nil, nil, err
	}
	return logging.NewMultiLogger(base, file), func() { _ = file.Close() }, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runPreprocess(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	var a *app
	defer func() {
		if a != nil {
			a.close()
		}
	}()

	err := mdbook.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), func(bookCtx *mdbook.Context) (*mdbook.Runner, error) {
		var err error
		if a, err = newApp(cmd, bookCtx.PreprocessorConfig(mdbook.Name)); err != nil {
			return nil, err
		}
		return mdbook.NewRunner(preprocess.New(a.registry, a.logger), a.cfg.Workers, a.logger), nil
	})
	if err != nil {
		if a != nil {
			enverrors.NewErrorHandler(a.logger).Handle(ctx, err)
		}
		return fmt.Errorf("preprocessor error: %w", err)
	}
	return nil
}
