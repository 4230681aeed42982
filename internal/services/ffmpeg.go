package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ---------------------------------------------------------------------------
// FFmpegService: subprocess-based transcoding
//
// Segment rendering loops a still image over the narration audio, burns in
// the SRT subtitles, and trims to the caption-derived duration. Assembly
// stream-copies the ordered segments with the concat demuxer. All paths are
// absolute; the working directory is never changed.
// ---------------------------------------------------------------------------

// SubprocessError carries the ffmpeg diagnostic output alongside the exit
// error so callers can surface it (gated) to users.
type SubprocessError struct {
	Cmd    string
	Output string
	Err    error
}

func (e *SubprocessError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Cmd, e.Err)
}

func (e *SubprocessError) Unwrap() error {
	return e.Err
}

type FFmpegService struct {
	ffmpegPath  string
	ffprobePath string
}

func NewFFmpegService() *FFmpegService {
	return &FFmpegService{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
	}
}

// RenderSegment produces one subtitle-burned video segment from a still
// image and its narration audio.
//
//   - the image is looped for the full duration
//   - audio is stream-copied, video re-encoded with libx264
//   - durationSec trims the output (the looped image stream is unbounded)
//   - subtitles are burned in as a filter
func (s *FFmpegService) RenderSegment(ctx context.Context, imagePath, audioPath, subtitlePath, outputPath string, durationSec float64) error {
	vf := fmt.Sprintf("subtitles='%s'", escapeFilterPath(subtitlePath))

	args := []string{
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		"-vf", vf,
		"-c:v", "libx264",
		"-c:a", "copy",
		"-pix_fmt", "yuv420p",
		"-t", fmt.Sprintf("%.2f", durationSec),
		"-y",
		outputPath,
	}

	log.Printf("[FFmpeg] Rendering segment %s (duration=%.2fs)", filepath.Base(outputPath), durationSec)

	return s.run(ctx, args)
}

// Concatenate joins the ordered segments into one video using the concat
// demuxer in stream-copy mode. The manifest is written next to the output
// inside the job workspace with absolute entry paths.
func (s *FFmpegService) Concatenate(ctx context.Context, segmentPaths []string, outputPath string) error {
	if len(segmentPaths) == 0 {
		return fmt.Errorf("no segments to concatenate")
	}

	listPath := filepath.Join(filepath.Dir(outputPath), "concat_list.txt")

	var sb strings.Builder
	for _, path := range segmentPaths {
		// FFmpeg concat manifest format
		fmt.Fprintf(&sb, "file '%s'\n", path)
	}
	if err := os.WriteFile(listPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	defer os.Remove(listPath)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		outputPath,
	}

	log.Printf("[FFmpeg] Concatenating %d segments into %s", len(segmentPaths), filepath.Base(outputPath))

	return s.run(ctx, args)
}

// GetVideoDuration returns a media file's duration in milliseconds.
func (s *FFmpegService) GetVideoDuration(ctx context.Context, path string) (int, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.CommandContext(ctx, s.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var durationSec float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &durationSec); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return int(durationSec * 1000), nil
}

// run executes ffmpeg with the given args, capturing combined output into
// the returned SubprocessError on non-zero exit.
func (s *FFmpegService) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		return &SubprocessError{
			Cmd:    "ffmpeg " + strings.Join(args, " "),
			Output: output.String(),
			Err:    err,
		}
	}

	return nil
}

// escapeFilterPath escapes special characters in file paths for FFmpeg
// filter syntax (colons, backslashes, and single quotes are significant).
// Quotes use the filter parser's backslash escape, not shell quoting.
func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "\\\\")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "\\'")
	return path
}
