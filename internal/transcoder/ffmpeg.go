package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// EncodeProfile fixes the codecs every clip is re-encoded to, so that clips cut
// from heterogeneous sources can be joined
type EncodeProfile struct {
	VideoCodec string
	AudioCodec string
	Preset     string
	CRF        int
}

// DefaultProfile is a fast H.264/AAC profile
var DefaultProfile = EncodeProfile{
	VideoCodec: "libx264",
	AudioCodec: "aac",
	Preset:     "ultrafast",
	CRF:        23,
}

func (p EncodeProfile) withDefaults() EncodeProfile {
	if p.VideoCodec == "" {
		p.VideoCodec = DefaultProfile.VideoCodec
	}
	if p.AudioCodec == "" {
		p.AudioCodec = DefaultProfile.AudioCodec
	}
	if p.Preset == "" {
		p.Preset = DefaultProfile.Preset
	}
	if p.CRF <= 0 {
		p.CRF = DefaultProfile.CRF
	}
	return p
}

func (p EncodeProfile) args() []string {
	return []string{
		"-c:v", p.VideoCodec,
		"-preset", p.Preset,
		"-crf", strconv.Itoa(p.CRF),
		"-c:a", p.AudioCodec,
	}
}

// FFmpeg wraps FFmpeg operations
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	profile     EncodeProfile
}

// NewFFmpeg creates a new FFmpeg instance
func NewFFmpeg(ffmpegPath, ffprobePath string, profile EncodeProfile) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		profile:     profile.withDefaults(),
	}
}

// Profile returns the encode profile in use
func (f *FFmpeg) Profile() EncodeProfile {
	return f.profile
}

// Available checks that the ffmpeg binary can be executed
func (f *FFmpeg) Available(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, f.ffmpegPath, "-hide_banner", "-version")
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg not available: %w, output: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// run executes ffmpeg and returns its combined output on failure
func (f *FFmpeg) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg interrupted: %w", ctxErr)
		}
		return fmt.Errorf("ffmpeg failed: %w, output: %s", err, lastLines(string(output), 20))
	}
	return nil
}

// VideoMetadata holds video metadata extracted from ffprobe
type VideoMetadata struct {
	Format  FormatInfo   `json:"format"`
	Streams []StreamInfo `json:"streams"`
}

// FormatInfo holds format information
type FormatInfo struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// StreamInfo holds stream information
type StreamInfo struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// ProbeVideo extracts metadata from a video file
func (f *FFmpeg) ProbeVideo(ctx context.Context, inputPath string) (*VideoMetadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}

	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, stderr.String())
	}

	return parseProbeOutput(stdout.Bytes())
}

func parseProbeOutput(data []byte) (*VideoMetadata, error) {
	var metadata VideoMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &metadata, nil
}

// Duration returns the container duration in seconds
func (m *VideoMetadata) Duration() float64 {
	d, err := strconv.ParseFloat(m.Format.Duration, 64)
	if err != nil {
		return 0
	}
	return d
}

// ProbeDuration returns the duration of a media file in seconds
func (f *FFmpeg) ProbeDuration(ctx context.Context, inputPath string) (float64, error) {
	metadata, err := f.ProbeVideo(ctx, inputPath)
	if err != nil {
		return 0, err
	}
	return metadata.Duration(), nil
}

// verifyOutput fails when the tool exited cleanly but left nothing usable behind
func verifyOutput(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("output %s missing: %w", path, err)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("output %s is empty", path)
	}
	return info.Size(), nil
}

// lastLines keeps the tail of ffmpeg's output, which is where the error is
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
