package infrastructure

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/ytpipe-go/internal/domain"
)

func newTestBuilder() (*CommandBuilder, *domain.Config) {
	config := domain.DefaultConfig()
	tools := staticTools{downloader: "/opt/bin/yt-dlp", transcoder: "/opt/bin/ffmpeg", binDir: "/opt/bin"}
	return NewCommandBuilder(tools, &config.Download, &config.Pipeline), config
}

func TestCommandBuilder_DirectDownload(t *testing.T) {
	b, _ := newTestBuilder()

	cmd, err := b.DirectDownload("https://www.youtube.com/watch?v=abc", "/videos")
	require.NoError(t, err)

	assert.Equal(t, domain.ToolDownloader, cmd.Tool)
	assert.Equal(t, "/opt/bin/yt-dlp", cmd.Binary)
	assert.Equal(t, []string{
		"--no-playlist",
		"-f", "bv+ba/b",
		"--merge-output-format", "mp4",
		"--ffmpeg-location", "/opt/bin/ffmpeg",
		"-o", "/videos/%(title)s.%(ext)s",
		"https://www.youtube.com/watch?v=abc",
	}, cmd.Args)
}

func TestCommandBuilder_DirectDownloadExtraArgs(t *testing.T) {
	b, config := newTestBuilder()
	config.Download.ExtraArgs = `--cookies-from-browser firefox --user-agent "Mozilla/5.0 test"`

	cmd, err := b.DirectDownload("https://example.com/v", "/videos")
	require.NoError(t, err)

	n := len(cmd.Args)
	assert.Equal(t, []string{"--cookies-from-browser", "firefox", "--user-agent", "Mozilla/5.0 test", "https://example.com/v"}, cmd.Args[n-5:])
}

func TestCommandBuilder_PipedDownload(t *testing.T) {
	b, _ := newTestBuilder()

	up, down, err := b.PipedDownload("https://animethemes.moe/video/Foo.webm", "/videos/Foo-1.mp4")
	require.NoError(t, err)

	assert.Equal(t, domain.ToolDownloader, up.Tool)
	assert.Equal(t, []string{"--no-playlist", "-f", "bv+ba/b", "-o", "-", "https://animethemes.moe/video/Foo.webm"}, up.Args)

	assert.Equal(t, domain.ToolTranscoder, down.Tool)
	assert.Equal(t, "/opt/bin/ffmpeg", down.Binary)
	assert.Equal(t, []string{
		"-loglevel", "error",
		"-analyzeduration", "100000000",
		"-probesize", "100000000",
		"-f", "webm",
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-c:a", "aac",
		"-b:a", "192k",
		"-ignore_unknown",
		"-movflags", "+faststart",
		"-f", "mp4",
		"-y", "/videos/Foo-1.mp4",
	}, down.Args)
}

func TestCommandBuilder_PipedDownloadHonorsConfig(t *testing.T) {
	b, config := newTestBuilder()
	config.Pipeline.AnalyzeDuration = 2500 * time.Millisecond
	config.Pipeline.ProbeSize = 5_000_000
	config.Pipeline.Preset = "slow"
	config.Pipeline.ExtraArgs = "-metadata title='My Clip'"

	_, down, err := b.PipedDownload("https://animethemes.moe/v", "/out/x.mp4")
	require.NoError(t, err)

	assert.Contains(t, down.Args, "2500000")
	assert.Contains(t, down.Args, "5000000")
	assert.Contains(t, down.Args, "slow")
	n := len(down.Args)
	assert.Equal(t, []string{"-metadata", "title=My Clip", "-f", "mp4", "-y", "/out/x.mp4"}, down.Args[n-6:])
}

func TestCommandBuilder_Validation(t *testing.T) {
	b, config := newTestBuilder()

	tests := []struct {
		name  string
		url   string
		dir   string
		field string
	}{
		{"empty url", "  ", "/videos", "url"},
		{"option-like url", "--exec=rm", "/videos", "url"},
		{"newline in url", "https://x/\nfoo", "/videos", "url"},
		{"relative dir", "https://x/v", "videos", "target_dir"},
		{"empty dir", "https://x/v", "", "target_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.DirectDownload(tt.url, tt.dir)
			var cmdErr *domain.CommandError
			require.True(t, errors.As(err, &cmdErr), "got %v", err)
			assert.Equal(t, tt.field, cmdErr.Field)
		})
	}

	_, _, err := b.PipedDownload("https://x/v", "relative.mp4")
	var cmdErr *domain.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "output_path", cmdErr.Field)

	config.Pipeline.ExtraArgs = `-metadata "unterminated`
	_, _, err = b.PipedDownload("https://x/v", "/out/x.mp4")
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "pipeline.extra_args", cmdErr.Field)
}

func TestCommand_String(t *testing.T) {
	b, _ := newTestBuilder()
	cmd, err := b.DirectDownload("https://example.com/watch?v=1&t=2", "/my videos")
	require.NoError(t, err)

	s := cmd.String()
	assert.Contains(t, s, "/opt/bin/yt-dlp --no-playlist")
	assert.Contains(t, s, "'/my videos/%(title)s.%(ext)s'")
	assert.Contains(t, s, "'https://example.com/watch?v=1&t=2'")
}
