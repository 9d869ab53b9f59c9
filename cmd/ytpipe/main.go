package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/ytpipe-go/internal/app"
	"github.com/yourusername/ytpipe-go/internal/domain"
	"github.com/yourusername/ytpipe-go/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	configPath  string
	serverURL   string
	noAutoStart bool
	verbose     bool

	rootCmd = &cobra.Command{
		Use:   "ytpipe",
		Short: "ytpipe - yt-dlp front end with an ffmpeg pipeline",
		Long: `ytpipe downloads videos with yt-dlp. URLs of the special host are streamed
through ffmpeg and re-encoded to H.264/AAC without an intermediate file.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./configs, ~/.ytpipe or /etc/ytpipe)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server URL for remote commands (default: from config)")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log tool output to stderr")

	rootCmd.Version = version
}

// loadConfig loads the configuration named by --config
func loadConfig() (*domain.Config, error) {
	config, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return config, nil
}

// newLogger builds the console logger. Interactive commands stay at warn
// unless --verbose is given so the progress display is not interleaved.
func newLogger(config *domain.Config, interactive bool) (*zap.Logger, error) {
	level := config.Logging.Level
	if interactive && !verbose {
		level = "warn"
	} else if verbose {
		level = "debug"
	}
	return logger.New(logger.Config{
		Level:      level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
