package scoring

import (
	"testing"

	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/stretchr/testify/assert"
)

func mc(id, correct string) model.Question {
	return model.Question{
		ID:            id,
		Type:          model.QuestionMultipleChoice,
		Options:       []string{"A", "B", "C"},
		CorrectAnswer: correct,
		Score:         10,
	}
}

func essay(id string) model.Question {
	return model.Question{ID: id, Type: model.QuestionEssay, Score: 10}
}

func TestGrade_MixedQuiz(t *testing.T) {
	questions := []model.Question{mc("q1", "B"), essay("q2")}
	answers := map[string]string{"q1": "B", "q2": "some text"}

	out := Grade(questions, Sanitize(answers))

	assert.Equal(t, 50, out.Score)
	assert.Equal(t, 1, out.Correct)
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, model.VerdictCorrect, out.Verdicts["q1"])
	assert.Equal(t, model.VerdictRequiresReview, out.Verdicts["q2"])
}

func TestGrade_Score(t *testing.T) {
	tests := []struct {
		name      string
		questions []model.Question
		answers   map[string]string
		want      int
	}{
		{"all correct", []model.Question{mc("q1", "A"), mc("q2", "B")}, map[string]string{"q1": "A", "q2": "B"}, 100},
		{"none answered", []model.Question{mc("q1", "A"), mc("q2", "B")}, nil, 0},
		{"one of three rounds down", []model.Question{mc("q1", "A"), mc("q2", "A"), mc("q3", "A")}, map[string]string{"q1": "A"}, 33},
		{"two of three rounds up", []model.Question{mc("q1", "A"), mc("q2", "A"), mc("q3", "A")}, map[string]string{"q1": "A", "q2": "A"}, 67},
		{"essay only", []model.Question{essay("q1"), essay("q2")}, map[string]string{"q1": "x", "q2": "y"}, 0},
		{"no questions", nil, map[string]string{"q1": "A"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Grade(tt.questions, tt.answers).Score)
		})
	}
}

func TestGrade_MatchingIsExact(t *testing.T) {
	questions := []model.Question{mc("q1", "Jakarta"), mc("q2", "Jakarta"), mc("q3", "Jakarta")}
	answers := map[string]string{"q1": "jakarta", "q2": "Jakarta ", "q3": "Jakarta"}

	out := Grade(questions, answers)

	assert.Equal(t, model.VerdictIncorrect, out.Verdicts["q1"])
	assert.Equal(t, model.VerdictIncorrect, out.Verdicts["q2"])
	assert.Equal(t, model.VerdictCorrect, out.Verdicts["q3"])
}

func TestGrade_Unanswered(t *testing.T) {
	out := Grade([]model.Question{mc("q1", "A")}, map[string]string{"q1": "  "})
	assert.Equal(t, model.VerdictUnanswered, out.Verdicts["q1"])
}

func TestSanitize(t *testing.T) {
	got := Sanitize(map[string]string{"q1": "B", "q2": "", "q3": " \t", "q4": " B "})
	assert.Equal(t, map[string]string{"q1": "B", "q4": " B "}, got)
}
