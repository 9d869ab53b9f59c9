package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Tools        ToolsConfig        `mapstructure:"tools"`
	Pipeline     PipelineConfig     `mapstructure:"pipeline"`
	Process      ProcessConfig      `mapstructure:"process"`
	History      HistoryConfig      `mapstructure:"history"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains settings for the direct (single process) strategy
type DownloadConfig struct {
	Dir               string        `mapstructure:"dir"`
	Format            string        `mapstructure:"format"`          // yt-dlp -f selector
	MergeFormat       string        `mapstructure:"merge_format"`    // --merge-output-format
	OutputTemplate    string        `mapstructure:"output_template"` // relative to Dir
	ExtraArgs         string        `mapstructure:"extra_args"`      // shell-style, split before launch
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

// ToolsConfig locates the external executables
type ToolsConfig struct {
	BinDir       string `mapstructure:"bin_dir"`
	YTDLPBinary  string `mapstructure:"ytdlp_binary"`  // empty means <bin_dir>/yt-dlp
	FFmpegBinary string `mapstructure:"ffmpeg_binary"` // empty means <bin_dir>/ffmpeg
}

// PipelineConfig contains settings for the piped (yt-dlp | ffmpeg) strategy
type PipelineConfig struct {
	SpecialHost     string        `mapstructure:"special_host"`
	TitleTimeout    time.Duration `mapstructure:"title_timeout"`
	TitleMaxBytes   int64         `mapstructure:"title_max_bytes"`
	FallbackName    string        `mapstructure:"fallback_name"`
	InputFormat     string        `mapstructure:"input_format"`
	ProbeSize       int64         `mapstructure:"probe_size"`
	AnalyzeDuration time.Duration `mapstructure:"analyze_duration"`
	VideoCodec      string        `mapstructure:"video_codec"`
	Preset          string        `mapstructure:"preset"`
	AudioCodec      string        `mapstructure:"audio_codec"`
	AudioBitrate    string        `mapstructure:"audio_bitrate"`
	ExtraArgs       string        `mapstructure:"extra_args"` // appended to the ffmpeg output options
}

// ProcessConfig tunes process supervision
type ProcessConfig struct {
	TerminateGrace time.Duration `mapstructure:"terminate_grace"`
	KillWait       time.Duration `mapstructure:"kill_wait"`
	MaxLineSize    int64         `mapstructure:"max_line_size"`
}

// HistoryConfig contains session history persistence settings
type HistoryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DatabasePath string `mapstructure:"database_path"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
	LogsDir    string `mapstructure:"logs_dir"`    // raw tool output, one file per day
	BufferSize int    `mapstructure:"buffer_size"` // in-memory tool output lines
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8686,
		},
		Download: DownloadConfig{
			Dir:               "$HOME/Movies/YtDlpDownloads",
			Format:            "bv+ba/b",
			MergeFormat:       "mp4",
			OutputTemplate:    "%(title)s.%(ext)s",
			HeartbeatInterval: time.Second,
		},
		Tools: ToolsConfig{
			BinDir: "$HOME/.ytpipe/bin",
		},
		Pipeline: PipelineConfig{
			SpecialHost:     "animethemes.moe",
			TitleTimeout:    5 * time.Second,
			TitleMaxBytes:   1 << 20,
			FallbackName:    "animethemes",
			InputFormat:     "webm",
			ProbeSize:       100_000_000,
			AnalyzeDuration: 100 * time.Second,
			VideoCodec:      "libx264",
			Preset:          "veryfast",
			AudioCodec:      "aac",
			AudioBitrate:    "192k",
		},
		Process: ProcessConfig{
			TerminateGrace: 1500 * time.Millisecond,
			KillWait:       5 * time.Second,
			MaxLineSize:    1 << 20,
		},
		History: HistoryConfig{
			Enabled:      true,
			DatabasePath: "$HOME/.ytpipe/history.db",
		},
		Notification: NotificationConfig{
			Enabled: false,
			Method:  "osascript",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stderr",
			LogsDir:    "$HOME/.ytpipe/logs",
			BufferSize: 1000,
		},
	}
}
