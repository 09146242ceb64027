package extractor

import (
	"context"
	"log/slog"

	"github.com/guiyumin/vbrief/internal/core/apperr"
	"github.com/guiyumin/vbrief/internal/core/audio"
	"github.com/guiyumin/vbrief/internal/core/captions"
	"github.com/guiyumin/vbrief/internal/core/source"
)

// CaptionSource finds published captions for a video.
type CaptionSource interface {
	Resolve(ctx context.Context, videoURL string) (captions.Captions, bool, error)
}

// AudioSource transcribes a video's audio track. knownDuration is 0 when
// the duration has not been inspected yet.
type AudioSource interface {
	Transcribe(ctx context.Context, videoURL string, knownDuration float64) (*audio.Transcript, error)
}

// VideoExtractor acquires a video transcript: cache, then captions, then
// speech-to-text.
type VideoExtractor struct {
	captions CaptionSource
	audio    AudioSource
	cache    *TranscriptCache
	logger   *slog.Logger
}

// NewVideoExtractor wires the video path. stt may be nil, in which case a
// video without captions fails with TranscriptionFailure.
func NewVideoExtractor(caps CaptionSource, stt AudioSource, cache *TranscriptCache, logger *slog.Logger) *VideoExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoExtractor{captions: caps, audio: stt, cache: cache, logger: logger}
}

// Extract returns the transcript for videoID.
func (v *VideoExtractor) Extract(ctx context.Context, videoID string, onStage StageFunc) (*Result, error) {
	if cached, ok := v.cache.Get(videoID); ok {
		v.logger.Debug("transcript cache hit", "video", videoID)
		return cached, nil
	}

	videoURL := source.CanonicalVideoURL(videoID)

	onStage.report(StageCheckingCaptions)
	caps, found, err := v.captions.Resolve(ctx, videoURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apperr.Wrap(apperr.ExtractionFailed, ctxErr, "caption lookup was interrupted")
		}
		return nil, apperr.Wrap(apperr.ExtractionFailed, err, "could not read video information")
	}

	var res *Result
	if found {
		v.logger.Info("using captions", "video", videoID, "language", caps.Language,
			"format", caps.Format, "automatic", caps.Automatic)
		res = &Result{
			Text:            caps.Text,
			Provenance:      ProvenanceCaptions,
			DurationSeconds: caps.DurationSeconds(),
			Language:        caps.Language,
		}
		if caps.Info != nil {
			res.Title = caps.Info.Title
		}
	} else {
		if v.audio == nil {
			return nil, apperr.New(apperr.TranscriptionFailure,
				"this video has no captions and audio transcription is disabled")
		}
		v.logger.Info("no captions, transcribing audio", "video", videoID)
		onStage.report(StageTranscribingAudio)

		t, err := v.audio.Transcribe(ctx, videoURL, caps.DurationSeconds())
		if err != nil {
			return nil, err
		}
		res = &Result{
			Text:            t.Text,
			Provenance:      ProvenanceSpeechToText,
			DurationSeconds: t.DurationSeconds,
		}
		if t.Language != "auto" {
			res.Language = t.Language
		}
		if caps.Info != nil {
			res.Title = caps.Info.Title
		}
	}

	v.cache.Add(videoID, res)
	return res, nil
}
