package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/arstate/FAFA-BIMBEL/internal/middleware"
	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/arstate/FAFA-BIMBEL/internal/presence"
	"github.com/arstate/FAFA-BIMBEL/internal/response"
	"github.com/arstate/FAFA-BIMBEL/internal/service"
	ws "github.com/arstate/FAFA-BIMBEL/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	sendBuffer   = 64
	closeTimeout = 5 * time.Second
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler serves the realtime stream: comment threads, quiz views and the
// connection that keeps the user's presence alive.
type WSHandler struct {
	quizService    *service.QuizSessionService
	commentService *service.CommentService
	tracker        *presence.Tracker
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	quizService *service.QuizSessionService,
	commentService *service.CommentService,
	tracker *presence.Tracker,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		quizService:    quizService,
		commentService: commentService,
		tracker:        tracker,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// streamConn is the state of one WebSocket connection. Subscriptions are
// only touched by the read loop; every write goes through send.
type streamConn struct {
	h     *WSHandler
	conn  *websocket.Conn
	pc    *presence.Connection
	actor model.Actor
	log   zerolog.Logger

	ctx     context.Context
	send    chan interface{}
	threads map[model.ThreadRef]*threadStream
	quizzes map[model.ItemRef]*service.QuizWatcher
}

// Stream godoc
// WS /ws/v1/stream?token=...
// One connection per browser tab, for students and the admin alike.
func (h *WSHandler) Stream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	actor := claims.Actor()
	wsLog := h.log.With().Str("user_id", actor.ID).Logger()

	pc, err := h.tracker.Connect(ctx, actor.ID)
	if err != nil {
		wsLog.Error().Err(err).Msg("Presence connect failed")
		ws.WriteError(conn, response.GetMessage(response.ErrInternal))
		return
	}
	defer func() {
		closeCtx, cancelClose := context.WithTimeout(context.Background(), closeTimeout)
		defer cancelClose()
		pc.Close(closeCtx)
	}()

	sc := &streamConn{
		h:       h,
		conn:    conn,
		pc:      pc,
		actor:   actor,
		log:     wsLog,
		ctx:     ctx,
		send:    make(chan interface{}, sendBuffer),
		threads: make(map[model.ThreadRef]*threadStream),
		quizzes: make(map[model.ItemRef]*service.QuizWatcher),
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		sc.writeLoop(cancel)
	}()

	ws.KeepAlive(conn, sc.heartbeat)

	wsLog.Info().Str("connection_id", pc.ID).Msg("Stream connected")
	sc.readLoop()

	cancel()
	sc.release()
	<-writerDone
	wsLog.Info().Str("connection_id", pc.ID).Msg("Stream closed")
}

func (sc *streamConn) readLoop() {
	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(sc.conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sc.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				sc.log.Debug().Msg("Connection closed")
			}
			return
		}
		if sc.ctx.Err() != nil {
			return
		}

		switch msg.Action {
		case ws.ActionPing:
			sc.heartbeat()
			sc.emit(ws.PongResponse{Event: ws.EventPong})
		case ws.ActionSubscribeThread:
			sc.subscribeThread(&msg)
		case ws.ActionUnsubscribeThread:
			sc.unsubscribeThread(&msg)
		case ws.ActionSendComment:
			sc.sendComment(&msg)
		case ws.ActionQuizAttach:
			sc.attachQuiz(&msg)
		case ws.ActionQuizAnswer:
			sc.answer(&msg)
		case ws.ActionQuizSubmit:
			sc.submit(&msg)
		case ws.ActionQuizLeave:
			sc.leave(&msg)
		default:
			sc.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			sc.emit(ws.ErrorResponse{
				Event:  ws.EventError,
				Action: msg.Action,
				Code:   string(response.ErrInvalidPayload),
				Error:  "unknown action: " + string(msg.Action),
			})
		}
	}
}

// writeLoop is the only writer on the connection. A failed write ends the
// connection.
func (sc *streamConn) writeLoop(cancel context.CancelFunc) {
	ping := time.NewTicker(ws.PingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-sc.ctx.Done():
			return
		case v := <-sc.send:
			if err := ws.WriteTyped(sc.conn, v); err != nil {
				sc.log.Debug().Err(err).Msg("Write failed")
				cancel()
				sc.conn.Close()
				return
			}
		case <-ping.C:
			if err := ws.WritePing(sc.conn); err != nil {
				cancel()
				sc.conn.Close()
				return
			}
		}
	}
}

func (sc *streamConn) heartbeat() {
	if err := sc.pc.Heartbeat(sc.ctx); err != nil {
		sc.log.Warn().Err(err).Msg("Presence heartbeat failed")
	}
}

// emit queues v for the writer. It gives up once the connection is gone.
func (sc *streamConn) emit(v interface{}) {
	select {
	case sc.send <- v:
	case <-sc.ctx.Done():
	}
}

func (sc *streamConn) emitError(action ws.Action, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		sc.log.Error().Err(err).Str("action", string(action)).Msg("Stream action failed")
	}
	sc.emit(ws.ErrorResponse{
		Event:  ws.EventError,
		Action: action,
		Code:   string(code),
		Error:  response.GetMessage(code),
	})
}

// release drops every subscription and view held by the connection.
func (sc *streamConn) release() {
	for ref, sub := range sc.threads {
		sub.Close()
		delete(sc.threads, ref)
	}
	for ref, w := range sc.quizzes {
		sc.h.quizService.Detach(w)
		delete(sc.quizzes, ref)
	}
}

func (sc *streamConn) thread(msg *ws.RequestPayload) model.ThreadRef {
	studentID := msg.StudentID
	if studentID == "" {
		studentID = sc.actor.ID
	}
	return model.ThreadRef{ItemRef: msg.Item(), StudentID: studentID}
}

// threadStream guards one thread subscription of a connection. Once closed,
// lists still in flight are dropped instead of reaching the client.
type threadStream struct {
	sub *service.ThreadSubscription

	mu     sync.Mutex
	closed bool
}

func (t *threadStream) forward(send func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		send()
	}
}

func (t *threadStream) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.sub.Close()
}

// ─── Comments ──────────────────────────────────────────────────────

func (sc *streamConn) subscribeThread(msg *ws.RequestPayload) {
	ref := sc.thread(msg)
	if _, ok := sc.threads[ref]; ok {
		return
	}

	sub, err := sc.h.commentService.SubscribeThread(sc.ctx, ref, sc.actor)
	if err != nil {
		sc.emitError(msg.Action, err)
		return
	}
	ts := &threadStream{sub: sub}
	sc.threads[ref] = ts

	go func() {
		for comments := range sub.Updates() {
			ts.forward(func() {
				sc.emit(ws.CommentsResponse{Event: ws.EventComments, Thread: ref, Comments: comments})
			})
		}
	}()
}

func (sc *streamConn) unsubscribeThread(msg *ws.RequestPayload) {
	ref := sc.thread(msg)
	if sub, ok := sc.threads[ref]; ok {
		sub.Close()
		delete(sc.threads, ref)
	}
}

func (sc *streamConn) sendComment(msg *ws.RequestPayload) {
	comment, err := sc.h.commentService.Send(sc.ctx, sc.thread(msg), sc.actor, msg.Text)
	if err != nil {
		sc.emitError(msg.Action, err)
		return
	}
	sc.emit(ws.CommentSentResponse{Event: ws.EventCommentSent, Comment: *comment})
}

// ─── Quiz ──────────────────────────────────────────────────────────

// attachQuiz starts or resumes the attempt and follows its state. A quiz
// that is already done only gets its state sent once.
func (sc *streamConn) attachQuiz(msg *ws.RequestPayload) {
	ref := msg.Item()
	if sc.actor.IsAdmin() {
		sc.emit(ws.ErrorResponse{
			Event:  ws.EventError,
			Action: msg.Action,
			Code:   string(response.ErrStudentAccessOnly),
			Error:  response.GetMessage(response.ErrStudentAccessOnly),
		})
		return
	}
	if _, ok := sc.quizzes[ref]; ok {
		return
	}

	state, err := sc.h.quizService.Start(sc.ctx, ref, sc.actor)
	if err != nil {
		sc.emitError(msg.Action, err)
		return
	}
	if state.Status.Terminal() {
		sc.emit(ws.QuizStateResponse{Event: ws.EventQuizState, State: state})
		return
	}

	w, err := sc.h.quizService.Attach(ref, sc.actor.ID)
	if err != nil {
		sc.emitError(msg.Action, err)
		return
	}
	sc.quizzes[ref] = w

	go func() {
		for st := range w.Updates() {
			sc.emit(ws.QuizStateResponse{Event: ws.EventQuizState, State: st})
		}
	}()
}

func (sc *streamConn) answer(msg *ws.RequestPayload) {
	ref := msg.Item()
	state, err := sc.h.quizService.RecordAnswer(sc.ctx, ref, sc.actor.ID, msg.QuestionID, msg.Answer)
	if err != nil {
		sc.emitError(msg.Action, err)
		if state.Status != "" {
			sc.emit(ws.QuizStateResponse{Event: ws.EventQuizState, State: state})
		}
	}
}

func (sc *streamConn) submit(msg *ws.RequestPayload) {
	ref := msg.Item()
	state, err := sc.h.quizService.Submit(sc.ctx, ref, sc.actor.ID)
	if err != nil {
		sc.emitError(msg.Action, err)
	}
	if _, attached := sc.quizzes[ref]; !attached && state.Status != "" {
		sc.emit(ws.QuizStateResponse{Event: ws.EventQuizState, State: state})
	}
}

// leave abandons the attempt even when other views are still open.
func (sc *streamConn) leave(msg *ws.RequestPayload) {
	ref := msg.Item()
	sc.h.quizService.Abandon(ref, sc.actor.ID)
	if w, ok := sc.quizzes[ref]; ok {
		sc.h.quizService.Detach(w)
		delete(sc.quizzes, ref)
	}
}
