package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-frontend/frontend/config"
	"github.com/RyanBlaney/sonido-frontend/logging"
)

var (
	// Global flags
	configFile string
	logLevel   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "sonido-frontend",
	Short: "Streaming fixed-point log-mel feature extraction",
	Long: `sonido-frontend - compute the log-mel features a keyword spotter expects.

Audio is windowed, transformed, integrated into mel bands, noise reduced,
gain normalized (PCAN) and log scaled, all in fixed-point arithmetic.

Configuration is a YAML (or JSON) file; omitted fields keep their defaults.
Print the defaults with 'sonido-frontend config'.

Examples:
  # Features for a WAV file as JSON lines
  sonido-frontend extract -i speech.wav

  # Raw 16 kHz PCM from stdin, msgpack records to a file
  arecord -t raw -f S16_LE -r 16000 | sonido-frontend extract -i - -f msgpack -o feats.mp

  # Inspect the filterbank a custom configuration builds
  sonido-frontend inspect -c frontend.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logging.ParseLevel(logLevel)
		if verbose {
			level = logging.DebugLevel
		}
		logging.SetGlobalLogger(logging.NewWriterLogger(cmd.ErrOrStderr(), level))
	},
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "frontend config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig returns the configuration named by --config, or the defaults.
func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
