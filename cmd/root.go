package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/riskscope/riskscope/internal/utils"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `         _     _
    _ __(_)___| | _____  ___ ___  _ __   ___
   | '__| / __| |/ / __|/ __/ _ \| '_ \ / _ \
   | |  | \__ \   <\__ \ (_| (_) | |_) |  __/
   |_|  |_|___/_|\_\___/\___\___/| .__/ \___|
                                 |_|
`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "riskscope",
	Short: "Diabetes risk assessments from your command line.",
	Long: LOGO + `
riskscope validates clinical measurements, sends them to a prediction service
and keeps a local history of the last assessments that you can filter, export
and turn into reports.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.riskscope.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to SQLite history file (default is $HOME/.config/riskscope/riskscope.sqlite)")

	viper.BindPFlag("proxy", rootCmd.PersistentFlags().Lookup("proxy"))
	viper.BindPFlag("history.dbpath", rootCmd.PersistentFlags().Lookup("dbpath"))
}

func setDefaults() {
	viper.SetDefault("api.url", "http://localhost:5000")
	viper.SetDefault("api.timeout", 30)
	viper.SetDefault("api.aux_retries", 2)
	viper.SetDefault("history.dbpath", "")
	viper.SetDefault("history.slot", "predictionHistory")
	viper.SetDefault("history.max", 50)
	viper.SetDefault("display.timezone", "")
	viper.SetDefault("server.listen", "127.0.0.1:8080")
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setDefaults()

	home, err := homedir.Dir()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(home)
		viper.SetConfigName(".riskscope")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("riskscope")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			configPath := filepath.Join(home, ".riskscope.yaml")
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s\n", err)
			}
		} else {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	if err := utils.SetLogLevel(levelString); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
