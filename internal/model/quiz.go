package model

import "time"

// QuizResult is the single, immutable outcome of one student's quiz attempt.
type QuizResult struct {
	StudentID     string             `json:"student_id"`
	StudentName   string             `json:"student_name,omitempty"`
	Score         int                `json:"score"`
	Correct       int                `json:"correct"`
	Total         int                `json:"total"`
	Answers       map[string]string  `json:"answers,omitempty"`
	Verdicts      map[string]Verdict `json:"verdicts,omitempty"`
	AIFeedback    map[string]string  `json:"ai_feedback,omitempty"`
	SubmittedAt   time.Time          `json:"submitted_at"`
	AutoSubmitted bool               `json:"auto_submitted,omitempty"`
}

// QuizSessionStatus is the state of one student's attempt at one quiz.
type QuizSessionStatus string

const (
	QuizNotStarted       QuizSessionStatus = "NOT_STARTED"
	QuizInProgress       QuizSessionStatus = "IN_PROGRESS"
	QuizSubmitting       QuizSessionStatus = "SUBMITTING"
	QuizCompleted        QuizSessionStatus = "COMPLETED"
	QuizAlreadyCompleted QuizSessionStatus = "ALREADY_COMPLETED"
)

// Terminal reports whether no further transition is possible.
func (s QuizSessionStatus) Terminal() bool {
	return s == QuizCompleted || s == QuizAlreadyCompleted
}

// QuizSessionState is a point-in-time snapshot of a quiz session, sent to
// the student's views and to the admin monitor.
type QuizSessionState struct {
	ItemRef
	StudentID        string               `json:"student_id"`
	Status           QuizSessionStatus    `json:"status"`
	StartedAt        *time.Time           `json:"started_at,omitempty"`
	DurationMinutes  int                  `json:"duration_minutes,omitempty"`
	RemainingSeconds int                  `json:"remaining_seconds"`
	Questions        []QuestionForStudent `json:"questions,omitempty"`
	Answers          map[string]string    `json:"answers,omitempty"`
	Result           *QuizResult          `json:"result,omitempty"`
	LastError        string               `json:"last_error,omitempty"`
}

// QuizMonitorEntry summarizes an active attempt for the admin monitor.
type QuizMonitorEntry struct {
	StudentID        string            `json:"student_id"`
	StudentName      string            `json:"student_name"`
	Status           QuizSessionStatus `json:"status"`
	RemainingSeconds int               `json:"remaining_seconds"`
	AnsweredCount    int               `json:"answered_count"`
	TotalQuestions   int               `json:"total_questions"`
}

// RecordAnswerRequest sets (or, when empty, clears) one answer.
type RecordAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
	Answer     string `json:"answer" binding:"max=20000"`
}
