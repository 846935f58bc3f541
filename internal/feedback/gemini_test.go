package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCreds struct {
	key string
	err error
}

func (s staticCreds) AICredential(context.Context) (string, error) { return s.key, s.err }

type fakeGenerator struct {
	reply  string
	err    error
	calls  int
	prompt string
	block  bool
}

func (f *fakeGenerator) Generate(ctx context.Context, _, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

var quiz = []model.Question{
	{ID: "q1", Text: "Ibu kota Indonesia?", Type: model.QuestionMultipleChoice, Options: []string{"A", "B", "C"}, CorrectAnswer: "B", Score: 10},
	{ID: "q2", Text: "Jelaskan fotosintesis.", Type: model.QuestionEssay, Score: 10},
}

func newAssessor(creds CredentialSource, gen Generator) *GeminiAssessor {
	return NewGeminiAssessor(creds, gen, time.Second, zerolog.Nop())
}

func TestAssess_NoCredential(t *testing.T) {
	gen := &fakeGenerator{}
	out := newAssessor(staticCreds{}, gen).Assess(context.Background(), quiz, map[string]string{"q1": "B"}, model.DetailBrief)

	assert.Empty(t, out)
	assert.NotNil(t, out)
	assert.Zero(t, gen.calls)
}

func TestAssess_CredentialLookupFails(t *testing.T) {
	gen := &fakeGenerator{}
	out := newAssessor(staticCreds{err: errors.New("boom")}, gen).Assess(context.Background(), quiz, nil, model.DetailBrief)

	assert.Empty(t, out)
	assert.Zero(t, gen.calls)
}

func TestAssess_Success(t *testing.T) {
	gen := &fakeGenerator{reply: `[{"questionId":"q1","feedback":"Benar."},{"questionId":"q2","feedback":"Cukup baik."},{"questionId":"zz","feedback":"?"}]`}
	out := newAssessor(staticCreds{key: "k"}, gen).Assess(context.Background(), quiz, map[string]string{"q1": "B", "q2": "cahaya"}, model.DetailDetailed)

	assert.Equal(t, map[string]string{"q1": "Benar.", "q2": "Cukup baik."}, out)
	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.prompt, detailedDirective)
}

func TestAssess_AbsorbsFailures(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"transport error", &fakeGenerator{err: errors.New("503")}},
		{"not json", &fakeGenerator{reply: "Sure! Here is feedback"}},
		{"object not array", &fakeGenerator{reply: `{"questionId":"q1","feedback":"x"}`}},
		{"wrong field types", &fakeGenerator{reply: `[{"questionId":1,"feedback":true}]`}},
		{"timeout", &fakeGenerator{block: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewGeminiAssessor(staticCreds{key: "k"}, tt.gen, 20*time.Millisecond, zerolog.Nop())
			out := a.Assess(context.Background(), quiz, map[string]string{"q1": "A"}, model.DetailBrief)
			assert.Empty(t, out)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt(quiz, map[string]string{"q1": "A"}, model.DetailBrief)
	require.NoError(t, err)

	var req promptRequest
	require.NoError(t, json.Unmarshal([]byte(prompt), &req))
	assert.Contains(t, req.Instructions, briefDirective)
	require.Len(t, req.Questions, 2)

	assert.Equal(t, "q1", req.Questions[0].ID)
	assert.Equal(t, []string{"A", "B", "C"}, req.Questions[0].Options)
	assert.Equal(t, "B", req.Questions[0].CorrectAnswer)
	assert.Equal(t, "A", req.Questions[0].StudentAnswer)

	assert.Equal(t, "essay", req.Questions[1].Type)
	assert.Empty(t, req.Questions[1].Options)
	assert.Empty(t, req.Questions[1].CorrectAnswer)
	assert.Empty(t, req.Questions[1].StudentAnswer)
}

func TestParseReply_StripsCodeFence(t *testing.T) {
	out, err := ParseReply("```json\n[{\"questionId\":\"q1\",\"feedback\":\"  ok \"},{\"questionId\":\"q2\",\"feedback\":\" \"}]\n```", quiz)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"q1": "ok"}, out)
}

func TestNop(t *testing.T) {
	assert.Empty(t, Nop{}.Assess(context.Background(), quiz, nil, model.DetailBrief))
}
