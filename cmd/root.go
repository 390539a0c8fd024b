// Package cmd wires the cobra CLI surface named in spec.md §6: make, hot,
// version.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hotwatch",
	Short: "Watch-and-hot-reload coordinator for an external single-shot compiler",
	Long: `hotwatch coordinates an external single-shot compiler across one or more
project-config files, either as a one-shot batch build ("make") or as a
long-running watch-and-hot-reload session serving live browser clients
("hot").`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "", "project-config file (default is hotwatch.yaml, can also use __HOTWATCH_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	if err := viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fmt.Fprintln(os.Stderr, "failed to bind log-level flag:", err)
	}
}

// initConfig resolves which file viper should read before internal/config.Load
// unmarshals it, in the same three-tier order as the original tool's
// __ELM_WATCH_CONFIG_FILE convention: --config flag, then
// __HOTWATCH_CONFIG_FILE env var, then hotwatch.yaml in the working directory.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("__HOTWATCH_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("hotwatch")
	}

	viper.SetEnvPrefix("__HOTWATCH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
