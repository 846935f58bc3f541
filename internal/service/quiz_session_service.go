package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/arstate/FAFA-BIMBEL/internal/feedback"
	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/arstate/FAFA-BIMBEL/internal/scoring"
	"github.com/arstate/FAFA-BIMBEL/internal/store"
	"github.com/rs/zerolog"
)

// Quiz session errors.
var (
	ErrNoQuestions       = errors.New("quiz has no questions")
	ErrSessionNotFound   = errors.New("no active quiz session")
	ErrQuizNotInProgress = errors.New("quiz is not in progress")
	ErrSubmitFailed      = errors.New("quiz submission failed")
)

// autoSubmitTimeout bounds a countdown-triggered submission.
const autoSubmitTimeout = 2 * time.Minute

type sessionKey struct {
	ref       model.ItemRef
	studentID string
}

// attempt is the sanitized answer set being submitted. It is kept across
// retries so a failed persist never loses the student's work.
type attempt struct {
	answers     map[string]string
	submittedAt time.Time
	auto        bool
	feedback    map[string]string
	assessed    bool
}

// quizSession is one student's attempt at one quiz. All fields are guarded
// by mu.
type quizSession struct {
	key         sessionKey
	studentName string
	questions   []model.Question
	duration    int
	ai          bool
	detail      model.DetailLevel

	mu        sync.Mutex
	status    model.QuizSessionStatus
	startedAt time.Time
	remaining int
	answers   map[string]string
	attempt   *attempt
	inFlight  bool
	result    *model.QuizResult
	lastErr   string
	watchers  map[*QuizWatcher]struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

func (q *quizSession) stopTimer() {
	q.stopOnce.Do(func() { close(q.stop) })
}

func (q *quizSession) stateLocked() model.QuizSessionState {
	st := model.QuizSessionState{
		ItemRef:          q.key.ref,
		StudentID:        q.key.studentID,
		Status:           q.status,
		DurationMinutes:  q.duration,
		RemainingSeconds: q.remaining,
		Result:           q.result,
		LastError:        q.lastErr,
	}
	if !q.startedAt.IsZero() {
		started := q.startedAt
		st.StartedAt = &started
	}
	if q.status == model.QuizInProgress || q.status == model.QuizSubmitting {
		st.Questions = make([]model.QuestionForStudent, 0, len(q.questions))
		for _, qq := range q.questions {
			st.Questions = append(st.Questions, qq.ForStudent())
		}
		st.Answers = make(map[string]string, len(q.answers))
		for k, v := range q.answers {
			st.Answers[k] = v
		}
	}
	return st
}

// publishLocked hands the current state to every watcher.
func (q *quizSession) publishLocked() {
	if len(q.watchers) == 0 {
		return
	}
	st := q.stateLocked()
	for w := range q.watchers {
		w.offer(st)
	}
}

// QuizWatcher receives state snapshots of one session. Only the latest
// snapshot is buffered; a slow reader skips intermediate ticks.
type QuizWatcher struct {
	session *quizSession
	ch      chan model.QuizSessionState
}

// Updates yields session states. It is closed on Detach.
func (w *QuizWatcher) Updates() <-chan model.QuizSessionState { return w.ch }

func (w *QuizWatcher) offer(st model.QuizSessionState) {
	for {
		select {
		case w.ch <- st:
			return
		default:
		}
		select {
		case <-w.ch:
		default:
		}
	}
}

// QuizSessionService runs the timed quiz state machine for every active
// attempt on this instance.
type QuizSessionService struct {
	store           store.Store
	content         *ContentService
	assessor        feedback.Assessor
	clock           Clock
	defaultDuration int
	log             zerolog.Logger

	mu       sync.Mutex
	sessions map[sessionKey]*quizSession
	wg       sync.WaitGroup
}

// NewQuizSessionService creates a new QuizSessionService. defaultDuration is
// used, in minutes, for quizzes without a duration.
func NewQuizSessionService(s store.Store, content *ContentService, assessor feedback.Assessor, defaultDuration int, log zerolog.Logger) *QuizSessionService {
	if assessor == nil {
		assessor = feedback.Nop{}
	}
	return &QuizSessionService{
		store:           s,
		content:         content,
		assessor:        assessor,
		clock:           realClock{},
		defaultDuration: defaultDuration,
		log:             log.With().Str("component", "quiz_session").Logger(),
		sessions:        make(map[sessionKey]*quizSession),
	}
}

func (s *QuizSessionService) lookup(ref model.ItemRef, studentID string) *quizSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sessionKey{ref: ref, studentID: studentID}]
}

// Start begins an attempt, or resumes the student's active one. A student
// who already has a result gets ALREADY_COMPLETED with that result.
func (s *QuizSessionService) Start(ctx context.Context, ref model.ItemRef, actor model.Actor) (model.QuizSessionState, error) {
	if sess := s.lookup(ref, actor.ID); sess != nil {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.stateLocked(), nil
	}

	item, err := s.content.GetItem(ctx, ref)
	if err != nil {
		return model.QuizSessionState{}, err
	}
	if !item.IsQuiz() {
		return model.QuizSessionState{}, ErrNotQuiz
	}

	existing, err := s.content.GetResult(ctx, ref, actor.ID)
	if err != nil && !errors.Is(err, ErrResultNotFound) {
		return model.QuizSessionState{}, err
	}
	if existing != nil {
		return model.QuizSessionState{
			ItemRef:   ref,
			StudentID: actor.ID,
			Status:    model.QuizAlreadyCompleted,
			Result:    existing,
		}, nil
	}

	questions, err := s.content.ListQuestions(ctx, ref)
	if err != nil {
		return model.QuizSessionState{}, err
	}
	if len(questions) == 0 {
		return model.QuizSessionState{}, ErrNoQuestions
	}

	duration := item.DurationMinutes
	if duration <= 0 {
		duration = s.defaultDuration
	}
	detail := item.DetailLevel
	if detail == "" {
		detail = model.DetailBrief
	}

	sess := &quizSession{
		key:         sessionKey{ref: ref, studentID: actor.ID},
		studentName: actor.Name,
		questions:   questions,
		duration:    duration,
		ai:          item.AICorrection,
		detail:      detail,
		status:      model.QuizInProgress,
		startedAt:   s.clock.Now().UTC(),
		remaining:   duration * 60,
		answers:     make(map[string]string),
		watchers:    make(map[*QuizWatcher]struct{}),
		stop:        make(chan struct{}),
	}

	s.mu.Lock()
	if other, ok := s.sessions[sess.key]; ok {
		s.mu.Unlock()
		other.mu.Lock()
		defer other.mu.Unlock()
		return other.stateLocked(), nil
	}
	s.sessions[sess.key] = sess
	ticker := s.clock.NewTicker(time.Second)
	s.wg.Add(1)
	s.mu.Unlock()

	go s.countdown(sess, ticker)

	s.log.Info().
		Str("item_id", ref.ItemID).
		Str("student_id", actor.ID).
		Int("duration_minutes", duration).
		Int("questions", len(questions)).
		Msg("Quiz started")

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.stateLocked(), nil
}

// countdown is the single timer of a session. It ends when the session
// leaves IN_PROGRESS or its timer is stopped.
func (s *QuizSessionService) countdown(sess *quizSession, ticker Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-sess.stop:
			return
		case <-ticker.C():
		}

		sess.mu.Lock()
		if sess.status != model.QuizInProgress {
			sess.mu.Unlock()
			return
		}
		sess.remaining--
		expired := sess.remaining <= 0
		if expired {
			sess.remaining = 0
		}
		sess.publishLocked()
		sess.mu.Unlock()

		if expired {
			ctx, cancel := context.WithTimeout(context.Background(), autoSubmitTimeout)
			if _, err := s.submit(ctx, sess, true); err != nil {
				s.log.Error().Err(err).
					Str("item_id", sess.key.ref.ItemID).
					Str("student_id", sess.key.studentID).
					Msg("Auto-submit failed")
			}
			cancel()
			return
		}
	}
}

// RecordAnswer sets the answer to one question. An empty answer clears it.
func (s *QuizSessionService) RecordAnswer(ctx context.Context, ref model.ItemRef, studentID, questionID, answer string) (model.QuizSessionState, error) {
	sess := s.lookup(ref, studentID)
	if sess == nil {
		return model.QuizSessionState{}, ErrSessionNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.status != model.QuizInProgress {
		return sess.stateLocked(), ErrQuizNotInProgress
	}
	known := false
	for _, q := range sess.questions {
		if q.ID == questionID {
			known = true
			break
		}
	}
	if !known {
		return sess.stateLocked(), ErrQuestionNotFound
	}

	if strings.TrimSpace(answer) == "" {
		delete(sess.answers, questionID)
	} else {
		sess.answers[questionID] = answer
	}
	sess.publishLocked()
	return sess.stateLocked(), nil
}

// Submit submits the student's attempt. Submitting a completed quiz, or one
// whose submission is already running, returns the current state unchanged.
func (s *QuizSessionService) Submit(ctx context.Context, ref model.ItemRef, studentID string) (model.QuizSessionState, error) {
	sess := s.lookup(ref, studentID)
	if sess == nil {
		st, err := s.State(ctx, ref, studentID)
		if err == nil && st.Status == model.QuizNotStarted {
			err = ErrSessionNotFound
		}
		return st, err
	}
	return s.submit(ctx, sess, false)
}

func (s *QuizSessionService) submit(ctx context.Context, sess *quizSession, auto bool) (model.QuizSessionState, error) {
	sess.mu.Lock()
	switch {
	case sess.status == model.QuizInProgress:
		sess.status = model.QuizSubmitting
		sess.stopTimer()
		sess.attempt = &attempt{
			answers:     scoring.Sanitize(sess.answers),
			submittedAt: s.clock.Now().UTC(),
			auto:        auto,
		}
	case sess.status == model.QuizSubmitting && !sess.inFlight && sess.attempt != nil:
		// Retry of a failed submission with the retained attempt.
	default:
		st := sess.stateLocked()
		sess.mu.Unlock()
		return st, nil
	}
	sess.inFlight = true
	sess.lastErr = ""
	att := sess.attempt
	sess.publishLocked()
	sess.mu.Unlock()

	result, err := s.finalize(ctx, sess, att)

	sess.mu.Lock()
	sess.inFlight = false
	if err != nil {
		sess.lastErr = err.Error()
		sess.publishLocked()
		st := sess.stateLocked()
		sess.mu.Unlock()

		s.log.Error().Err(err).
			Str("item_id", sess.key.ref.ItemID).
			Str("student_id", sess.key.studentID).
			Msg("Failed to persist quiz result")
		return st, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	sess.status = model.QuizCompleted
	sess.result = result
	sess.publishLocked()
	st := sess.stateLocked()
	sess.mu.Unlock()

	s.forget(sess)
	s.log.Info().
		Str("item_id", sess.key.ref.ItemID).
		Str("student_id", sess.key.studentID).
		Int("score", result.Score).
		Bool("auto", result.AutoSubmitted).
		Msg("Quiz submitted")
	return st, nil
}

// finalize grades the attempt, adds AI feedback when enabled and persists
// the result. If a result already exists it is adopted instead.
func (s *QuizSessionService) finalize(ctx context.Context, sess *quizSession, att *attempt) (*model.QuizResult, error) {
	outcome := scoring.Grade(sess.questions, att.answers)

	if sess.ai && !att.assessed {
		att.feedback = s.assessor.Assess(ctx, sess.questions, att.answers, sess.detail)
		att.assessed = true
	}

	result := &model.QuizResult{
		StudentID:     sess.key.studentID,
		StudentName:   sess.studentName,
		Score:         outcome.Score,
		Correct:       outcome.Correct,
		Total:         outcome.Total,
		Answers:       att.answers,
		Verdicts:      outcome.Verdicts,
		AIFeedback:    att.feedback,
		SubmittedAt:   att.submittedAt,
		AutoSubmitted: att.auto,
	}

	written, err := s.store.WriteIfAbsent(ctx, store.Paths.Result(sess.key.ref, sess.key.studentID), result)
	if err != nil {
		return nil, err
	}
	if written {
		return result, nil
	}

	existing, err := s.content.GetResult(ctx, sess.key.ref, sess.key.studentID)
	if err != nil {
		return nil, err
	}
	s.log.Warn().
		Str("item_id", sess.key.ref.ItemID).
		Str("student_id", sess.key.studentID).
		Msg("Result already recorded by another submission, keeping it")
	return existing, nil
}

// State returns the student's session state. Without an active session it
// reports COMPLETED when a result exists and NOT_STARTED otherwise.
func (s *QuizSessionService) State(ctx context.Context, ref model.ItemRef, studentID string) (model.QuizSessionState, error) {
	if sess := s.lookup(ref, studentID); sess != nil {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.stateLocked(), nil
	}

	st := model.QuizSessionState{ItemRef: ref, StudentID: studentID, Status: model.QuizNotStarted}
	result, err := s.content.GetResult(ctx, ref, studentID)
	switch {
	case err == nil:
		st.Status = model.QuizCompleted
		st.Result = result
	case !errors.Is(err, ErrResultNotFound):
		return st, err
	}
	return st, nil
}

// Attach registers a view of the session and immediately delivers its state.
func (s *QuizSessionService) Attach(ref model.ItemRef, studentID string) (*QuizWatcher, error) {
	sess := s.lookup(ref, studentID)
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	w := &QuizWatcher{session: sess, ch: make(chan model.QuizSessionState, 1)}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.watchers[w] = struct{}{}
	w.offer(sess.stateLocked())
	return w, nil
}

// Detach removes a view. When the last view of an in-progress attempt goes
// away the attempt is abandoned.
func (s *QuizSessionService) Detach(w *QuizWatcher) {
	sess := w.session
	sess.mu.Lock()
	if _, ok := sess.watchers[w]; !ok {
		sess.mu.Unlock()
		return
	}
	delete(sess.watchers, w)
	close(w.ch)
	abandon := len(sess.watchers) == 0 && sess.status == model.QuizInProgress
	sess.mu.Unlock()

	if abandon {
		s.abandon(sess, "last view left")
	}
}

// Abandon discards an in-progress attempt without submitting it. Attempts
// that are already submitting are kept.
func (s *QuizSessionService) Abandon(ref model.ItemRef, studentID string) bool {
	sess := s.lookup(ref, studentID)
	if sess == nil {
		return false
	}
	return s.abandon(sess, "left quiz")
}

func (s *QuizSessionService) abandon(sess *quizSession, reason string) bool {
	sess.mu.Lock()
	if sess.status != model.QuizInProgress {
		sess.mu.Unlock()
		return false
	}
	sess.stopTimer()
	sess.status = model.QuizNotStarted
	sess.answers = map[string]string{}
	sess.remaining = 0
	sess.publishLocked()
	sess.mu.Unlock()

	s.forget(sess)
	s.log.Info().
		Str("item_id", sess.key.ref.ItemID).
		Str("student_id", sess.key.studentID).
		Str("reason", reason).
		Msg("Quiz attempt abandoned")
	return true
}

func (s *QuizSessionService) forget(sess *quizSession) {
	s.mu.Lock()
	if s.sessions[sess.key] == sess {
		delete(s.sessions, sess.key)
	}
	s.mu.Unlock()
}

// ActiveSessions summarizes the running attempts on one quiz.
func (s *QuizSessionService) ActiveSessions(ref model.ItemRef) []model.QuizMonitorEntry {
	s.mu.Lock()
	var sessions []*quizSession
	for key, sess := range s.sessions {
		if key.ref == ref {
			sessions = append(sessions, sess)
		}
	}
	s.mu.Unlock()

	entries := make([]model.QuizMonitorEntry, 0, len(sessions))
	for _, sess := range sessions {
		sess.mu.Lock()
		entries = append(entries, model.QuizMonitorEntry{
			StudentID:        sess.key.studentID,
			StudentName:      sess.studentName,
			Status:           sess.status,
			RemainingSeconds: sess.remaining,
			AnsweredCount:    len(sess.answers),
			TotalQuestions:   len(sess.questions),
		})
		sess.mu.Unlock()
	}
	return entries
}

// StopAll halts every countdown without submitting and waits for the timer
// goroutines to exit. Used on shutdown.
func (s *QuizSessionService) StopAll() {
	s.mu.Lock()
	for _, sess := range s.sessions {
		sess.stopTimer()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
