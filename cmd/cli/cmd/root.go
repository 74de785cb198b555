package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/picogrid/hexfleet/pkg/config"
	"github.com/picogrid/hexfleet/pkg/logger"
)

var (
	cfgFile     string
	profileName string
	logLevel    string
	noColor     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hexfleet",
	Short: "Hexagonal grid fleet simulator",
	Long: `hexfleet simulates a delivery fleet on a hexagonal spatial grid.
It clusters vehicles into grid cells, derives congestion, price and ETA
figures for every delivery and reports geofence entries and exits.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.hexfleet/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "insight provider profile to use")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(geofenceCmd)
	rootCmd.AddCommand(cellsCmd)
	rootCmd.AddCommand(insightCmd)
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	logger.SetLevel(logger.ParseLevel(logLevel))
	if noColor || !logger.IsTerminal(os.Stdout) {
		logger.SetNoColor(true)
	}

	v := viper.GetViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath("$HOME/" + config.DirName)
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}
	config.ConfigureViper(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			logger.Warnf("Failed to read config %s: %v", cfgFile, err)
		}
		return
	}
	logger.Debugf("Using config file %s", v.ConfigFileUsed())
}

// engineConfig resolves engine settings from defaults, the config file and
// HEXFLEET_ environment variables.
func engineConfig() (config.EngineConfig, error) {
	return config.LoadEngineConfig(viper.GetViper())
}

// colorOff reports whether output should be written without color.
func colorOff() bool {
	return !logger.ColorEnabled()
}
