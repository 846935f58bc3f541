package model

// QuestionType tags how a question is answered and graded.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionEssay          QuestionType = "essay"
)

// Question is one quiz question. Options and CorrectAnswer are only set for
// multiple-choice questions.
type Question struct {
	ID            string       `json:"id"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Score         int          `json:"score"`
}

// AssignID implements store.Identifiable.
func (q *Question) AssignID(id string) { q.ID = id }

// QuestionForStudent is the view of a question sent to students (no correct answer).
type QuestionForStudent struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"`
	Score   int          `json:"score"`
}

// ForStudent strips the correct answer.
func (q Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:      q.ID,
		Text:    q.Text,
		Type:    q.Type,
		Options: q.Options,
		Score:   q.Score,
	}
}

// Verdict is the per-question classification produced by grading.
type Verdict string

const (
	VerdictCorrect        Verdict = "CORRECT"
	VerdictIncorrect      Verdict = "INCORRECT"
	VerdictUnanswered     Verdict = "UNANSWERED"
	VerdictRequiresReview Verdict = "REQUIRES_REVIEW"
)

// CreateQuestionRequest is the payload for adding a question to a quiz.
type CreateQuestionRequest struct {
	Text          string       `json:"text" binding:"required,min=1,max=5000"`
	Type          QuestionType `json:"type" binding:"required,oneof=multiple_choice essay"`
	Options       []string     `json:"options" binding:"required_if=Type multiple_choice,omitempty,min=2,max=10,dive,required,max=500"`
	CorrectAnswer string       `json:"correct_answer" binding:"required_if=Type multiple_choice,max=500"`
	Score         int          `json:"score" binding:"min=0,max=1000"`
}
