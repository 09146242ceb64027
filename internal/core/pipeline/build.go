package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/guiyumin/vbrief/internal/core/ai/summarizer"
	"github.com/guiyumin/vbrief/internal/core/ai/transcriber"
	"github.com/guiyumin/vbrief/internal/core/audio"
	"github.com/guiyumin/vbrief/internal/core/captions"
	"github.com/guiyumin/vbrief/internal/core/config"
	"github.com/guiyumin/vbrief/internal/core/extractor"
	"github.com/guiyumin/vbrief/internal/core/langdetect"
	"github.com/guiyumin/vbrief/internal/core/ytdlp"
)

// Stack is a Router wired from configuration together with the resources it
// owns. Close releases them.
type Stack struct {
	Router *Router
	// Transcriber names the speech-to-text engine, or "none".
	Transcriber string

	closers []io.Closer
}

// Build wires a Router from cfg. A transcription engine that fails to load
// only disables the audio fallback; a missing provider is fatal.
func Build(cfg *config.Config, logger *slog.Logger) (*Stack, error) {
	if logger == nil {
		logger = slog.Default()
	}

	provider, err := summarizer.New(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("summarization provider: %w", err)
	}

	st := &Stack{Transcriber: "none"}

	yt := ytdlp.New(cfg.Transcription.YtDlp, "", logger)
	if !yt.Available() {
		logger.Warn("yt-dlp not found; video sources will fail")
	}
	fetchTimeout := cfg.Fetch.TimeoutDuration()
	caps := captions.NewResolver(yt, captions.NewHTTPFetcher(fetchTimeout, cfg.Fetch.UserAgent), cfg.Captions.Language, logger)

	var stt extractor.AudioSource
	t, err := transcriber.New(cfg.Transcription, logger)
	switch {
	case errors.Is(err, transcriber.ErrDisabled):
		logger.Info("audio transcription disabled")
	case err != nil:
		logger.Warn("audio transcription unavailable", "engine", cfg.Transcription.Engine, "error", err)
	default:
		st.Transcriber = t.Name()
		if c, ok := t.(io.Closer); ok {
			st.closers = append(st.closers, c)
		}
		stt = audio.NewFallback(yt, yt, t, audio.Options{
			MaxDuration:   time.Duration(cfg.Limits.MaxDurationSeconds) * time.Second,
			MinAudioBytes: cfg.Limits.MinAudioBytes,
			Timeout:       cfg.Transcription.TimeoutDuration(),
		}, logger)
	}

	var renderer extractor.Renderer
	if cfg.Fetch.BrowserFallback {
		renderer = extractor.NewBrowserRenderer(false, 0, logger)
	}

	ex := extractor.New(extractor.Config{
		Pages:        extractor.NewWebpageFetcher(fetchTimeout, cfg.Fetch.UserAgent, renderer, logger),
		Videos:       extractor.NewVideoExtractor(caps, stt, extractor.NewTranscriptCache(cfg.Cache.MaxEntries), logger),
		Detector:     langdetect.New(),
		MinTextChars: cfg.Limits.MinTextChars,
		Logger:       logger,
	})

	st.Router = NewRouter(ex, provider, Options{
		MinRawTextChars: cfg.Limits.MinRawTextChars,
		MaxFollowUps:    cfg.Limits.MaxFollowUps,
		Summaries:       NewSummaryCache(cfg.Cache.MaxSummaries),
	}, logger)
	return st, nil
}

// Close releases the stack's resources, such as a loaded speech model.
func (s *Stack) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
