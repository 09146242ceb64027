// Package audio transcribes a video's speech when it has no usable captions.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/guiyumin/vbrief/internal/core/ai/transcriber"
	"github.com/guiyumin/vbrief/internal/core/apperr"
	"github.com/guiyumin/vbrief/internal/core/ytdlp"
)

const (
	DefaultMaxDuration   = 30 * time.Minute
	DefaultMinAudioBytes = 16 * 1024
	MinAudioDuration     = time.Second
)

// Inspector reports video metadata; only Duration is consulted here.
type Inspector interface {
	Inspect(ctx context.Context, videoURL string) (*ytdlp.Info, error)
}

// Downloader fetches a video's audio track into dir and returns the file path.
type Downloader interface {
	DownloadAudio(ctx context.Context, videoURL, dir string, progressFn ytdlp.ProgressFunc) (string, error)
}

// Options tunes the fallback. Zero values take the defaults above.
type Options struct {
	MaxDuration   time.Duration
	MinAudioBytes int64
	// Timeout bounds download plus transcription; 0 means no extra bound.
	Timeout time.Duration
	// TempDir is the parent for per-call scratch directories.
	TempDir string
}

// Transcript is the fallback's output.
type Transcript struct {
	Text            string
	Language        string
	DurationSeconds float64
}

// Fallback downloads audio and runs speech-to-text on it.
type Fallback struct {
	inspector   Inspector
	downloader  Downloader
	transcriber transcriber.Transcriber
	opts        Options
	logger      *slog.Logger
}

// NewFallback wires a Fallback. t may be nil when transcription is disabled;
// Transcribe then fails with TranscriptionFailure after the duration gate.
func NewFallback(inspector Inspector, downloader Downloader, t transcriber.Transcriber, opts Options, logger *slog.Logger) *Fallback {
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultMaxDuration
	}
	if opts.MinAudioBytes <= 0 {
		opts.MinAudioBytes = DefaultMinAudioBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{
		inspector:   inspector,
		downloader:  downloader,
		transcriber: t,
		opts:        opts,
		logger:      logger,
	}
}

// Transcribe runs the fallback for videoURL. knownDuration (seconds, 0 if
// unknown) saves a metadata lookup when the caption lookup already has it.
//
// The scratch directory holding the audio is removed before Transcribe
// returns, on success, failure and cancellation alike.
func (f *Fallback) Transcribe(ctx context.Context, videoURL string, knownDuration float64) (*Transcript, error) {
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	duration, err := f.checkDuration(ctx, videoURL, knownDuration)
	if err != nil {
		return nil, err
	}

	if f.transcriber == nil {
		return nil, apperr.New(apperr.TranscriptionFailure, "speech-to-text is disabled and the video has no captions")
	}

	dir, err := os.MkdirTemp(f.opts.TempDir, "vbrief-audio-*")
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to create scratch directory")
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			f.logger.Warn("failed to remove scratch directory", "dir", dir, "error", err)
		}
	}()

	path, err := f.downloader.DownloadAudio(ctx, videoURL, dir, f.logProgress(videoURL))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apperr.Wrap(apperr.TranscriptionFailure, ctxErr, "audio download timed out")
		}
		return nil, apperr.Wrap(apperr.ExtractionFailed, err, "failed to download audio")
	}

	if err := f.validate(path); err != nil {
		return nil, err
	}

	f.logger.Info("transcribing audio", "url", videoURL, "engine", f.transcriber.Name(), "duration", duration)
	start := time.Now()

	result, err := f.transcriber.Transcribe(ctx, path)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.TranscriptionFailure, err, "transcription timed out")
		}
		return nil, apperr.Wrap(apperr.TranscriptionFailure, err, "speech-to-text failed")
	}

	f.logger.Info("transcription complete", "url", videoURL, "elapsed", time.Since(start).Round(time.Millisecond),
		"chars", len(result.Text))

	out := &Transcript{
		Text:            result.Text,
		Language:        result.Language,
		DurationSeconds: duration,
	}
	if out.DurationSeconds <= 0 && result.Duration > 0 {
		out.DurationSeconds = result.Duration.Seconds()
	}
	return out, nil
}

// checkDuration enforces MaxDuration before any download. An unknown length
// is inspected; if it is still unknown (live streams, odd extractors) the
// download proceeds.
func (f *Fallback) checkDuration(ctx context.Context, videoURL string, known float64) (float64, error) {
	duration := known
	if duration <= 0 && f.inspector != nil {
		info, err := f.inspector.Inspect(ctx, videoURL)
		if err != nil {
			return 0, apperr.Wrap(apperr.ExtractionFailed, err, "failed to read video metadata")
		}
		duration = info.Duration
	}

	if duration <= 0 {
		f.logger.Warn("video duration unknown, skipping duration gate", "url", videoURL)
		return 0, nil
	}

	limit := f.opts.MaxDuration.Seconds()
	if duration > limit {
		return 0, apperr.New(apperr.DurationExceeded,
			"video is %s long, the limit is %s",
			formatSeconds(duration), formatSeconds(limit))
	}
	return duration, nil
}

func (f *Fallback) validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return apperr.Wrap(apperr.EmptyAudio, err, "downloaded audio is missing")
	}
	if info.Size() < f.opts.MinAudioBytes {
		return apperr.New(apperr.EmptyAudio,
			"downloaded audio is only %d bytes; the video may have no sound", info.Size())
	}

	d, ok, err := DecodableDuration(path)
	if !ok {
		return nil
	}
	if err != nil {
		return apperr.Wrap(apperr.EmptyAudio, err, "downloaded audio is not decodable")
	}
	if d < MinAudioDuration {
		return apperr.New(apperr.EmptyAudio, "downloaded audio is only %s long", d)
	}
	return nil
}

func (f *Fallback) logProgress(videoURL string) ytdlp.ProgressFunc {
	lastDecile := int64(-1)
	return func(downloaded, total int64) {
		if total <= 0 {
			return
		}
		if decile := downloaded * 10 / total; decile > lastDecile {
			lastDecile = decile
			f.logger.Debug("audio download", "url", videoURL, "percent", decile*10)
		}
	}
}

func formatSeconds(s float64) string {
	return fmt.Sprint(time.Duration(s * float64(time.Second)).Round(time.Second))
}
