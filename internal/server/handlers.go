package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/guiyumin/vbrief/internal/core/ai/summarizer"
	"github.com/guiyumin/vbrief/internal/core/apperr"
	"github.com/guiyumin/vbrief/internal/core/conversation"
	"github.com/guiyumin/vbrief/internal/core/extractor"
	"github.com/guiyumin/vbrief/internal/core/pipeline"
	"github.com/guiyumin/vbrief/internal/core/source"
	"github.com/guiyumin/vbrief/internal/core/version"
)

// summaryPayload is a pipeline response tagged with the session that now
// holds its context.
type summaryPayload struct {
	SessionID string `json:"session_id"`
	*pipeline.Response
}

type textRequest struct {
	Text      string `json:"text"`
	Length    string `json:"length"`
	SessionID string `json:"session_id"`
}

type urlRequest struct {
	URL       string `json:"url"`
	Length    string `json:"length"`
	SessionID string `json:"session_id"`
}

type sourceRequest struct {
	Source    source.Descriptor `json:"source"`
	Length    string            `json:"length"`
	SessionID string            `json:"session_id"`
}

type followUpRequest struct {
	SessionID     string            `json:"session_id"`
	Question      string            `json:"question"`
	GroundingText string            `json:"grounding_text"`
	History       []summarizer.Turn `json:"history"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.InvalidSource, apperr.InvalidRequest:
		return http.StatusBadRequest
	case apperr.NoActiveContext:
		return http.StatusNotFound
	case apperr.FollowUpInProgress:
		return http.StatusConflict
	case apperr.DurationExceeded:
		return http.StatusRequestEntityTooLarge
	case apperr.FollowUpLimitReached:
		return http.StatusTooManyRequests
	case apperr.EmptyAudio, apperr.ExtractionFailed, apperr.TranscriptionFailure:
		return http.StatusUnprocessableEntity
	case apperr.ProviderError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	msg := apperr.Message(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, Response{
		Code:    status,
		Data:    gin.H{"error_kind": kind, "message": msg},
		Message: msg,
	})
}

// parseLength falls back to medium for values the panel should not send.
func (s *Server) parseLength(name string) summarizer.Length {
	length, ok := summarizer.ParseLength(name)
	if !ok {
		s.logger.Warn("unknown summary length, using medium", "length", name)
	}
	return length
}

func badBody(err error) error {
	return apperr.Wrap(apperr.InvalidRequest, err, "invalid request body")
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"status":      "ok",
			"version":     version.Version,
			"provider":    s.router.ProviderName(),
			"transcriber": s.transcriber,
		},
		Message: "everything is good",
	})
}

func (s *Server) handleSummarizeText(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badBody(err))
		return
	}
	s.summarize(c, source.Descriptor{Kind: source.KindText, Reference: req.Text}, req.Length, req.SessionID)
}

func (s *Server) handleSummarizeURL(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badBody(err))
		return
	}
	s.summarize(c, source.Descriptor{Kind: source.KindURL, Reference: req.URL}, req.Length, req.SessionID)
}

func (s *Server) handleSummarizeYouTube(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badBody(err))
		return
	}
	s.summarize(c, source.Descriptor{Kind: source.KindYouTube, Reference: req.URL}, req.Length, req.SessionID)
}

func (s *Server) handleSummarizeSource(c *gin.Context) {
	var req sourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badBody(err))
		return
	}
	s.summarize(c, req.Source, req.Length, req.SessionID)
}

func (s *Server) summarize(c *gin.Context, d source.Descriptor, lengthName, sessionID string) {
	length := s.parseLength(lengthName)

	// Classify up front so a bad source never allocates a session.
	if _, err := s.router.Classify(d); err != nil {
		s.respondError(c, err)
		return
	}

	id, conv := s.sessions.Acquire(sessionID)
	resp, err := s.router.Summarize(c.Request.Context(), pipeline.Request{
		Source:       d,
		Length:       length,
		Conversation: conv,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    summaryPayload{SessionID: id, Response: resp},
		Message: "summary created",
	})
}

func (s *Server) handleFollowUp(c *gin.Context) {
	var req followUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badBody(err))
		return
	}

	var (
		ex  *conversation.Exchange
		err error
	)
	if req.SessionID != "" {
		conv, ok := s.sessions.Get(req.SessionID)
		if !ok {
			s.respondError(c, apperr.New(apperr.NoActiveContext, "unknown session %q", req.SessionID))
			return
		}
		ex, err = s.router.FollowUp(c.Request.Context(), conv, req.Question)
	} else {
		ex, err = s.router.Answer(c.Request.Context(), req.Question, req.GroundingText, req.History)
	}
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    ex,
		Message: "answered",
	})
}

func (s *Server) handleGetSession(c *gin.Context) {
	id := c.Param("id")
	conv, ok := s.sessions.Get(id)
	if !ok {
		s.respondError(c, apperr.New(apperr.NoActiveContext, "unknown session %q", id))
		return
	}
	snap, ok := conv.Snapshot()
	if !ok {
		s.respondError(c, apperr.New(apperr.NoActiveContext, "session %q has no active summary", id))
		return
	}

	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"session_id":     id,
			"context":        snap,
			"remaining":      conv.Remaining(),
			"max_follow_ups": conv.MaxFollowUps(),
		},
		Message: "ok",
	})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	id := c.Param("id")
	if !s.sessions.Remove(id) {
		s.respondError(c, apperr.New(apperr.NoActiveContext, "unknown session %q", id))
		return
	}
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    gin.H{"session_id": id},
		Message: "session reset",
	})
}

func (s *Server) handleCreateJob(c *gin.Context) {
	var req sourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badBody(err))
		return
	}
	req.Length = string(s.parseLength(req.Length))
	if _, err := s.router.Classify(req.Source); err != nil {
		s.respondError(c, err)
		return
	}

	id, _ := s.sessions.Acquire(req.SessionID)
	job, err := s.jobQueue.AddJob(id, req.Source, req.Length)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, Response{
			Code:    503,
			Data:    nil,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, Response{
		Code: 202,
		Data: gin.H{
			"id":         job.ID,
			"session_id": job.SessionID,
			"status":     job.Status,
		},
		Message: "summarization queued",
	})
}

// runJob is the job queue's SummarizeFunc.
func (s *Server) runJob(ctx context.Context, job *Job, onStage extractor.StageFunc) (*pipeline.Response, error) {
	length, _ := summarizer.ParseLength(job.Length)
	_, conv := s.sessions.Acquire(job.SessionID)
	return s.router.Summarize(ctx, pipeline.Request{
		Source:       job.Source,
		Length:       length,
		Conversation: conv,
		OnStage:      onStage,
	})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job := s.jobQueue.GetJob(c.Param("id"))
	if job == nil {
		c.JSON(http.StatusNotFound, Response{
			Code:    404,
			Data:    nil,
			Message: "job not found",
		})
		return
	}
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    job,
		Message: string(job.Status),
	})
}

func (s *Server) handleGetJobs(c *gin.Context) {
	jobs := s.jobQueue.GetAllJobs()
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    gin.H{"jobs": jobs},
		Message: fmt.Sprintf("%d jobs", len(jobs)),
	})
}

func (s *Server) handleClearJobs(c *gin.Context) {
	count := s.jobQueue.ClearHistory()
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    gin.H{"cleared": count},
		Message: fmt.Sprintf("%d jobs cleared", count),
	})
}

func (s *Server) handleDeleteJob(c *gin.Context) {
	id := c.Param("id")

	// Cancel an active job first, else remove a finished one
	if s.jobQueue.CancelJob(id) {
		c.JSON(http.StatusOK, Response{
			Code:    200,
			Data:    gin.H{"id": id},
			Message: "job cancelled",
		})
	} else if s.jobQueue.RemoveJob(id) {
		c.JSON(http.StatusOK, Response{
			Code:    200,
			Data:    gin.H{"id": id},
			Message: "job removed",
		})
	} else {
		c.JSON(http.StatusNotFound, Response{
			Code:    404,
			Data:    nil,
			Message: "job not found or cannot be cancelled/removed",
		})
	}
}
