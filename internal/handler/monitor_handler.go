package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/arstate/FAFA-BIMBEL/internal/presence"
	"github.com/arstate/FAFA-BIMBEL/internal/response"
	"github.com/arstate/FAFA-BIMBEL/internal/service"
	"github.com/arstate/FAFA-BIMBEL/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	refreshInterval   = 5 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second
)

// MonitorHandler streams live admin views over SSE: the attempts running on
// a quiz and the online roster.
type MonitorHandler struct {
	store          store.Store
	contentService *service.ContentService
	quizService    *service.QuizSessionService
	log            zerolog.Logger
}

func NewMonitorHandler(
	s store.Store,
	contentService *service.ContentService,
	quizService *service.QuizSessionService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		store:          s,
		contentService: contentService,
		quizService:    quizService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// quizMonitorSnapshot is one frame of the quiz monitor stream.
type quizMonitorSnapshot struct {
	Active  []model.QuizMonitorEntry `json:"active"`
	Results []model.QuizResult       `json:"results"`
}

// MonitorQuizSSE godoc
// GET /api/v1/admin/classes/:classId/weeks/:weekId/items/:itemId/monitor
// Sends a snapshot on connect, whenever a result lands and every few seconds
// while attempts are running.
func (h *MonitorHandler) MonitorQuizSSE(c *gin.Context) {
	ref := itemRef(c)
	reqCtx := c.Request.Context()

	item, err := h.contentService.GetItem(reqCtx, ref)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	if !item.IsQuiz() {
		response.Fail(c, http.StatusBadRequest, response.ErrNotQuiz)
		return
	}

	sub, err := h.store.Subscribe(reqCtx, store.Paths.Results(ref))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	defer sub.Close()

	setSSEHeaders(c)

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	h.log.Info().Str("item_id", ref.ItemID).Msg("Admin attached to quiz monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("item_id", ref.ItemID).Msg("Admin disconnected from quiz monitor SSE")
			return

		case _, ok := <-sub.Updates():
			if !ok {
				return
			}
			h.sendQuizSnapshot(c, ref)

		case <-refreshTicker.C:
			// Countdown values only move while someone is taking the quiz.
			if len(h.quizService.ActiveSessions(ref)) == 0 {
				continue
			}
			h.sendQuizSnapshot(c, ref)

		case <-keepAliveTicker.C:
			c.SSEvent("ping", gin.H{"type": "ping"})
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) sendQuizSnapshot(c *gin.Context, ref model.ItemRef) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), refreshTimeout)
	defer cancel()

	results, err := h.contentService.ListResults(ctx, ref)
	if err != nil {
		h.log.Warn().Err(err).Str("item_id", ref.ItemID).Msg("Failed to load results for monitor")
		return
	}
	c.SSEvent("snapshot", quizMonitorSnapshot{
		Active:  h.quizService.ActiveSessions(ref),
		Results: results,
	})
	c.Writer.Flush()
}

// PresenceSSE godoc
// GET /api/v1/admin/presence/stream
// Streams the student roster with online flags whenever any user changes.
func (h *MonitorHandler) PresenceSSE(c *gin.Context) {
	reqCtx := c.Request.Context()

	sub, err := h.store.Subscribe(reqCtx, store.Paths.Users())
	if err != nil {
		fail(c, h.log, err)
		return
	}
	defer sub.Close()

	setSSEHeaders(c)

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	for {
		select {
		case <-reqCtx.Done():
			return

		case snap, ok := <-sub.Updates():
			if !ok {
				return
			}
			entries, err := presence.Roster(snap)
			if err != nil {
				h.log.Warn().Err(err).Msg("Failed to decode roster")
				continue
			}
			c.SSEvent("presence", gin.H{"users": entries})
			c.Writer.Flush()

		case <-keepAliveTicker.C:
			c.SSEvent("ping", gin.H{"type": "ping"})
			c.Writer.Flush()
		}
	}
}

func setSSEHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
}
