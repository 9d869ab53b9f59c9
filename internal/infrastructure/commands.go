package infrastructure

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"github.com/yourusername/ytpipe-go/internal/domain"
)

// CommandBuilder builds validated yt-dlp and ffmpeg invocations
type CommandBuilder struct {
	tools    domain.ToolLocator
	download *domain.DownloadConfig
	pipeline *domain.PipelineConfig
}

// NewCommandBuilder creates a new command builder
func NewCommandBuilder(tools domain.ToolLocator, download *domain.DownloadConfig, pipeline *domain.PipelineConfig) *CommandBuilder {
	return &CommandBuilder{
		tools:    tools,
		download: download,
		pipeline: pipeline,
	}
}

// DirectDownload builds the single yt-dlp invocation that downloads url
// into targetDir, merging into the configured container.
func (b *CommandBuilder) DirectDownload(url, targetDir string) (domain.Command, error) {
	if err := validateURL(url); err != nil {
		return domain.Command{}, err
	}
	if targetDir == "" || !filepath.IsAbs(targetDir) {
		return domain.Command{}, &domain.CommandError{Field: "target_dir", Reason: "must be an absolute path"}
	}
	extra, err := splitExtraArgs("download.extra_args", b.download.ExtraArgs)
	if err != nil {
		return domain.Command{}, err
	}

	args := []string{
		"--no-playlist",
		"-f", b.download.Format,
		"--merge-output-format", b.download.MergeFormat,
		"--ffmpeg-location", b.tools.TranscoderPath(),
		"-o", filepath.Join(targetDir, b.download.OutputTemplate),
	}
	args = append(args, extra...)
	args = append(args, url)

	return domain.Command{Tool: domain.ToolDownloader, Binary: b.tools.DownloaderPath(), Args: args}, nil
}

// PipedDownload builds the yt-dlp command that streams url to stdout and
// the ffmpeg command that transcodes stdin into outputPath.
func (b *CommandBuilder) PipedDownload(url, outputPath string) (domain.Command, domain.Command, error) {
	if err := validateURL(url); err != nil {
		return domain.Command{}, domain.Command{}, err
	}
	if outputPath == "" || !filepath.IsAbs(outputPath) {
		return domain.Command{}, domain.Command{}, &domain.CommandError{Field: "output_path", Reason: "must be an absolute path"}
	}
	extra, err := splitExtraArgs("pipeline.extra_args", b.pipeline.ExtraArgs)
	if err != nil {
		return domain.Command{}, domain.Command{}, err
	}

	downloader := domain.Command{
		Tool:   domain.ToolDownloader,
		Binary: b.tools.DownloaderPath(),
		Args: []string{
			"--no-playlist",
			"-f", b.download.Format,
			"-o", "-",
			url,
		},
	}

	p := b.pipeline
	args := []string{
		"-loglevel", "error",
		"-analyzeduration", strconv.FormatInt(p.AnalyzeDuration.Microseconds(), 10),
		"-probesize", strconv.FormatInt(p.ProbeSize, 10),
		"-f", p.InputFormat,
		"-i", "pipe:0",
		"-c:v", p.VideoCodec,
		"-preset", p.Preset,
		"-c:a", p.AudioCodec,
		"-b:a", p.AudioBitrate,
		"-ignore_unknown",
		"-movflags", "+faststart",
	}
	args = append(args, extra...)
	args = append(args, "-f", "mp4", "-y", outputPath)

	transcoder := domain.Command{Tool: domain.ToolTranscoder, Binary: b.tools.TranscoderPath(), Args: args}
	return downloader, transcoder, nil
}

func validateURL(url string) error {
	switch {
	case strings.TrimSpace(url) == "":
		return &domain.CommandError{Field: "url", Reason: "empty"}
	case strings.HasPrefix(url, "-"):
		return &domain.CommandError{Field: "url", Reason: "must not start with '-'"}
	case strings.ContainsAny(url, "\r\n\x00"):
		return &domain.CommandError{Field: "url", Reason: "contains control characters"}
	}
	return nil
}

func splitExtraArgs(field, raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	args, err := shlex.Split(raw)
	if err != nil {
		return nil, &domain.CommandError{Field: field, Reason: err.Error()}
	}
	return args, nil
}
