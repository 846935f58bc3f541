// Package scoring grades a quiz attempt. Multiple-choice answers are
// compared to the correct answer by exact, case-sensitive string equality
// with no trimming; essays are left for review but still count toward the
// question total.
package scoring

import (
	"math"
	"strings"

	"github.com/arstate/FAFA-BIMBEL/internal/model"
)

// Outcome is the result of grading one attempt.
type Outcome struct {
	Score    int
	Correct  int
	Total    int
	Verdicts map[string]model.Verdict
}

// Sanitize returns a copy of answers without empty or whitespace-only entries.
func Sanitize(answers map[string]string) map[string]string {
	out := make(map[string]string, len(answers))
	for qid, a := range answers {
		if strings.TrimSpace(a) == "" {
			continue
		}
		out[qid] = a
	}
	return out
}

// Grade scores answers against questions. Score is
// round(correct / len(questions) * 100), or 0 for an empty question set.
func Grade(questions []model.Question, answers map[string]string) Outcome {
	out := Outcome{
		Total:    len(questions),
		Verdicts: make(map[string]model.Verdict, len(questions)),
	}
	for _, q := range questions {
		out.Verdicts[q.ID] = classify(q, answers)
		if out.Verdicts[q.ID] == model.VerdictCorrect {
			out.Correct++
		}
	}
	if out.Total > 0 {
		out.Score = int(math.Round(float64(out.Correct) / float64(out.Total) * 100))
	}
	return out
}

func classify(q model.Question, answers map[string]string) model.Verdict {
	if q.Type == model.QuestionEssay {
		return model.VerdictRequiresReview
	}
	answer, ok := answers[q.ID]
	switch {
	case !ok || strings.TrimSpace(answer) == "":
		return model.VerdictUnanswered
	case answer == q.CorrectAnswer:
		return model.VerdictCorrect
	default:
		return model.VerdictIncorrect
	}
}
