package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/hcm/internal/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hcm",
	Short: "Merge and inspect repository configuration modules",
	Long: `hcm discovers configuration modules, orders them by their declared
dependencies and merges their definitions into one configuration tree.

Quick Start:
  hcm validate                     Load and merge all modules, report problems
  hcm build                        Print the merged configuration tree
  hcm list                         List modules in merge order
  hcm query '.nodes[].name'        Run a jq expression over the tree
  hcm resolve http://localhost/    Find the mount serving a URL
  hcm watch                        Rebuild whenever a module changes`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
			color.NoColor = true
		}
	},
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorColor.Sprint("Error: ")+err.Error())
		printSuggestions(os.Stderr, err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .hcm.yml, can also use HCM_CONFIG_FILE env var)")
	flags.StringSliceP("module-path", "m", nil, "directories to search for modules (default \".\")")
	flags.StringSlice("exclude", nil, "glob patterns of module paths to skip")
	flags.StringP("log-level", "l", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("log-format", config.DefaultLogFormat, "log format (text, json)")
	flags.Bool("no-color", false, "disable colored output")

	AddFlagValidation(rootCmd.PersistentFlags(), "log-level", enumValidator(config.LogLevels))
	AddFlagValidation(rootCmd.PersistentFlags(), "log-format", enumValidator(config.LogFormats))

	bindFlag(config.KeyModulePaths, flags.Lookup("module-path"))
	bindFlag(config.KeyModuleExclude, flags.Lookup("exclude"))
	bindFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	bindFlag(config.KeyLogFormat, flags.Lookup("log-format"))
}

// initConfig sets up viper. Precedence, highest first: flags, HCM_*
// environment variables (including those from .env), the config file,
// defaults. The config file is --config, else HCM_CONFIG_FILE, else
// .hcm.yml in the working directory.
func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, warningColor.Sprint("Warning: ")+"failed to read .env: "+err.Error())
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvConfigKey); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(config.FileName)
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, warningColor.Sprint("Warning: ")+err.Error())
		}
	}
}

func bindFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag for %s: %v", key, err))
	}
}
