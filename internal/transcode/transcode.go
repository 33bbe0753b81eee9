// Package transcode re-encodes video files with ffmpeg to reclaim space.
package transcode

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Transcode re-encodes input into output with AV1 video and copied audio.
// It shells out to the ffmpeg binary; ffmpeg must be on PATH.
func Transcode(input, output string) error {
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("input video does not exist: %w", err)
	}

	cmd := exec.Command("ffmpeg",
		"-y", // overwrite output
		"-i", input,
		"-vf", "format=yuv420p",
		"-crf", "35",
		"-preset", "8",
		"-c:v", "libsvtav1",
		"-c:a", "copy",
		output,
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w\n%s", err, out)
	}
	return nil
}

// Bitrate probes the video bitrate of a file in bits per second using
// ffprobe.
func Bitrate(path string) (int64, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=bit_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	rate, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse bitrate for %s: %w", path, err)
	}
	return rate, nil
}
