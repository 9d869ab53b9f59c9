package app

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/yourusername/ytpipe-go/internal/domain"
)

// LoadConfig loads configuration from file and environment.
// Environment variables use the YTPIPE_ prefix with dots replaced by
// underscores, e.g. YTPIPE_PIPELINE_SPECIAL_HOST.
func LoadConfig(configPath string) (*domain.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, domain.DefaultConfig())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.ytpipe")
		v.AddConfigPath("/etc/ytpipe")
	}

	v.SetEnvPrefix("YTPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// no config file, defaults and environment apply
	}

	config := &domain.Config{}
	err := v.Unmarshal(config, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults registers every key so that environment overrides are seen
// by Unmarshal even without a config file
func setDefaults(v *viper.Viper, d *domain.Config) {
	for key, value := range configValues(d) {
		v.SetDefault(key, value)
	}
}

// ConfigSettings returns the config as sorted "key: value" lines
func ConfigSettings(c *domain.Config) []string {
	values := configValues(c)
	lines := make([]string, 0, len(values))
	for key, value := range values {
		lines = append(lines, fmt.Sprintf("%s: %v", key, value))
	}
	sort.Strings(lines)
	return lines
}

// configValues flattens config into viper keys
func configValues(c *domain.Config) map[string]interface{} {
	return map[string]interface{}{
		"server.host": c.Server.Host,
		"server.port": c.Server.Port,

		"download.dir":                c.Download.Dir,
		"download.format":             c.Download.Format,
		"download.merge_format":       c.Download.MergeFormat,
		"download.output_template":    c.Download.OutputTemplate,
		"download.extra_args":         c.Download.ExtraArgs,
		"download.heartbeat_interval": c.Download.HeartbeatInterval.String(),

		"tools.bin_dir":       c.Tools.BinDir,
		"tools.ytdlp_binary":  c.Tools.YTDLPBinary,
		"tools.ffmpeg_binary": c.Tools.FFmpegBinary,

		"pipeline.special_host":     c.Pipeline.SpecialHost,
		"pipeline.title_timeout":    c.Pipeline.TitleTimeout.String(),
		"pipeline.title_max_bytes":  c.Pipeline.TitleMaxBytes,
		"pipeline.fallback_name":    c.Pipeline.FallbackName,
		"pipeline.input_format":     c.Pipeline.InputFormat,
		"pipeline.probe_size":       c.Pipeline.ProbeSize,
		"pipeline.analyze_duration": c.Pipeline.AnalyzeDuration.String(),
		"pipeline.video_codec":      c.Pipeline.VideoCodec,
		"pipeline.preset":           c.Pipeline.Preset,
		"pipeline.audio_codec":      c.Pipeline.AudioCodec,
		"pipeline.audio_bitrate":    c.Pipeline.AudioBitrate,
		"pipeline.extra_args":       c.Pipeline.ExtraArgs,

		"process.terminate_grace": c.Process.TerminateGrace.String(),
		"process.kill_wait":       c.Process.KillWait.String(),
		"process.max_line_size":   c.Process.MaxLineSize,

		"history.enabled":       c.History.Enabled,
		"history.database_path": c.History.DatabasePath,

		"notification.enabled": c.Notification.Enabled,
		"notification.method":  c.Notification.Method,

		"logging.level":       c.Logging.Level,
		"logging.format":      c.Logging.Format,
		"logging.output_path": c.Logging.OutputPath,
		"logging.logs_dir":    c.Logging.LogsDir,
		"logging.buffer_size": c.Logging.BufferSize,
	}
}

// stringToByteSizeHookFunc parses human-readable sizes like "100MB" into int64
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 || t == durationType {
			return data, nil
		}

		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(data.(string))); err != nil {
			// plain numbers fall through to the default conversion
			return data, nil
		}
		return int64(size.Bytes()), nil
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.Dir = expandPath(config.Download.Dir)
	config.Tools.BinDir = expandPath(config.Tools.BinDir)
	config.Tools.YTDLPBinary = expandPath(config.Tools.YTDLPBinary)
	config.Tools.FFmpegBinary = expandPath(config.Tools.FFmpegBinary)
	config.History.DatabasePath = expandPath(config.History.DatabasePath)
	config.Logging.LogsDir = expandPath(config.Logging.LogsDir)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	path = os.ExpandEnv(path)

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}

	return path
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Download.Dir == "" {
		return fmt.Errorf("download directory not configured")
	}

	if config.Download.Format == "" {
		return fmt.Errorf("download format not configured")
	}

	if config.Pipeline.TitleTimeout <= 0 {
		return fmt.Errorf("title timeout must be positive")
	}

	if config.Process.TerminateGrace < 0 || config.Process.KillWait < 0 {
		return fmt.Errorf("process timeouts cannot be negative")
	}

	if config.History.Enabled && config.History.DatabasePath == "" {
		return fmt.Errorf("history database path not configured")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	if config.Logging.BufferSize <= 0 {
		config.Logging.BufferSize = domain.DefaultConfig().Logging.BufferSize
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range configValues(config) {
		v.Set(key, value)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
