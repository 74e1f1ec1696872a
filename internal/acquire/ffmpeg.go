package acquire

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// A Thumbnailer produces a still-frame preview image for a video file.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, videoPath string, imagePath string) error
}

// FFmpegThumbnailer extracts a single frame with the ffmpeg binary.
type FFmpegThumbnailer struct {
	// Binary is the ffmpeg executable to run, defaulting to "ffmpeg" on $PATH.
	Binary string
	// Offset is how far into the video to grab the frame from.
	Offset time.Duration
}

func (t FFmpegThumbnailer) Thumbnail(ctx context.Context, videoPath string, imagePath string) error {
	binary := t.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	args := []string{
		"-ss", strconv.FormatFloat(t.Offset.Seconds(), 'f', -1, 64),
		"-i", videoPath,
		"-vframes", "1",
		"-q:v", "2",
		"-y",
		imagePath,
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg thumbnail: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
