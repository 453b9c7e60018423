// Package ffmpeg wraps the ffmpeg/ffprobe tools for duration probing and
// audio extraction.
package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/iconidentify/albumproxy/internal/domain"
)

// Processor runs ffmpeg and ffprobe.
type Processor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewProcessor creates a processor, locating ffmpeg and ffprobe in PATH.
func NewProcessor() (*Processor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	return &Processor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}, nil
}

// ProbeDuration returns the media duration in seconds for a URL or local
// path. known is false when the duration cannot be reliably determined,
// which callers must treat as "proceed", not "skip".
func (p *Processor) ProbeDuration(ctx context.Context, input string) (seconds float64, known bool, err error) {
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		input,
	)

	output, err := cmd.Output()
	if err != nil {
		// A probe failure is not fatal to the pipeline; the duration is
		// simply unknown.
		return 0, false, nil
	}

	var parsed struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &parsed); err != nil {
		return 0, false, nil
	}
	if parsed.Format.Duration == "" {
		return 0, false, nil
	}

	dur, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil || dur <= 0 {
		return 0, false, nil
	}

	return dur, true, nil
}

// ExtractAudio extracts a mono 16kHz PCM WAV track from videoPath into
// outputPath. The process is terminated when ctx expires, reported as
// domain.ErrExtractionTimeout (transient). A crash of the tool itself is
// reported as domain.ErrProcessingCrash (permanent: a crash indicates a
// structurally bad input file).
func (p *Processor) ExtractAudio(ctx context.Context, videoPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		outputPath,
	)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return domain.ErrExtractionTimeout
		}
		if crashed(err) {
			return fmt.Errorf("%w: %v", domain.ErrProcessingCrash, err)
		}
		return fmt.Errorf("extract audio: %w", err)
	}

	return nil
}

// crashed reports whether err represents the tool dying abnormally (signal
// such as SIGSEGV/SIGABRT) rather than exiting with a conversion error.
func crashed(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}

	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return false
	}
	if status.Signaled() {
		return true
	}
	// Shells report death-by-signal as 128+signo; ffmpeg wrappers sometimes
	// surface it the same way.
	return status.ExitStatus() > 128
}

// IsAvailable checks if ffmpeg and ffprobe are available on the system.
func IsAvailable() bool {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return false
	}
	_, err := exec.LookPath("ffprobe")
	return err == nil
}
