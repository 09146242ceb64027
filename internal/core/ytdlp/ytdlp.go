// Package ytdlp wraps the yt-dlp binary for video metadata and audio downloads.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Track is one caption rendition listed by yt-dlp.
type Track struct {
	Ext  string `json:"ext"`
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// Info is the subset of `yt-dlp -J` output vbrief uses.
type Info struct {
	ID                string             `json:"id"`
	Title             string             `json:"title"`
	Uploader          string             `json:"uploader"`
	Duration          float64            `json:"duration"` // seconds, 0 if unknown
	IsLive            bool               `json:"is_live"`
	Subtitles         map[string][]Track `json:"subtitles"`
	AutomaticCaptions map[string][]Track `json:"automatic_captions"`
}

// ProgressFunc receives download progress in bytes.
type ProgressFunc func(downloaded, total int64)

// Runner invokes yt-dlp.
type Runner struct {
	binary      string
	audioFormat string
	logger      *slog.Logger
}

// New returns a Runner. An empty binary means "yt-dlp" from PATH; an empty
// audioFormat means mp3.
func New(binary, audioFormat string, logger *slog.Logger) *Runner {
	if binary == "" {
		binary = "yt-dlp"
	}
	if audioFormat == "" {
		audioFormat = "mp3"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{binary: binary, audioFormat: audioFormat, logger: logger}
}

// Available reports whether the yt-dlp binary can be found.
func (r *Runner) Available() bool {
	_, err := exec.LookPath(r.binary)
	return err == nil
}

// Inspect fetches video metadata, including caption track listings, without
// downloading media.
func (r *Runner) Inspect(ctx context.Context, videoURL string) (*Info, error) {
	cmd := exec.CommandContext(ctx, r.binary,
		"-J",
		"--skip-download",
		"--no-playlist",
		"--no-warnings",
		videoURL,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp metadata lookup failed: %w: %s", err, lastLine(stderr.String()))
	}

	var info Info
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp metadata: %w", err)
	}
	return &info, nil
}

// DownloadAudio downloads the audio track only into dir and returns the path
// of the produced file. The caller owns dir and its cleanup.
func (r *Runner) DownloadAudio(ctx context.Context, videoURL, dir string, progressFn ProgressFunc) (string, error) {
	outputTemplate := filepath.Join(dir, "audio.%(ext)s")

	cmd := exec.CommandContext(ctx, r.binary,
		"-f", "bestaudio/best",
		"-x", // audio only
		"--audio-format", r.audioFormat,
		"--no-playlist",
		"--newline", // progress on new lines for parsing
		"-o", outputTemplate,
		videoURL,
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	scanProgress(stdout, progressFn)

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("yt-dlp audio download failed: %w: %s", err, lastLine(stderr.String()))
	}

	matches, err := filepath.Glob(filepath.Join(dir, "audio.*"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		// yt-dlp leaves .part/.ytdl files behind on some failures
		if ext := filepath.Ext(m); ext == ".part" || ext == ".ytdl" {
			continue
		}
		r.logger.Debug("audio downloaded", "path", m)
		return m, nil
	}
	return "", fmt.Errorf("yt-dlp produced no audio file in %s", dir)
}

// Format: [download]  45.2% of  150.00MiB at  5.00MiB/s ETA 00:15
var progressRe = regexp.MustCompile(`\[download\]\s+(\d+\.?\d*)%\s+of\s+~?\s*(\d+\.?\d*)(Ki|Mi|Gi)?B`)

func scanProgress(r io.Reader, progressFn ProgressFunc) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if progressFn == nil {
			continue
		}
		if downloaded, total, ok := parseProgress(scanner.Text()); ok {
			progressFn(downloaded, total)
		}
	}
}

func parseProgress(line string) (downloaded, total int64, ok bool) {
	matches := progressRe.FindStringSubmatch(line)
	if len(matches) < 3 {
		return 0, 0, false
	}
	percent, _ := strconv.ParseFloat(matches[1], 64)
	size, _ := strconv.ParseFloat(matches[2], 64)

	multiplier := int64(1)
	if len(matches) >= 4 {
		switch matches[3] {
		case "Ki":
			multiplier = 1024
		case "Mi":
			multiplier = 1024 * 1024
		case "Gi":
			multiplier = 1024 * 1024 * 1024
		}
	}

	total = int64(size * float64(multiplier))
	downloaded = int64(float64(total) * percent / 100)
	return downloaded, total, true
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}
