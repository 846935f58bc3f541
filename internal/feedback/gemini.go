package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const (
	briefDirective    = "Keep each feedback to at most two sentences."
	detailedDirective = "For each question explain why the student's answer is correct or incorrect and the underlying concept."
)

// GeminiAssessor builds a single prompt for the whole attempt and asks the
// model for a JSON array of {questionId, feedback}.
type GeminiAssessor struct {
	creds   CredentialSource
	gen     Generator
	timeout time.Duration
	log     zerolog.Logger
}

func NewGeminiAssessor(creds CredentialSource, gen Generator, timeout time.Duration, log zerolog.Logger) *GeminiAssessor {
	return &GeminiAssessor{
		creds:   creds,
		gen:     gen,
		timeout: timeout,
		log:     log.With().Str("component", "ai_feedback").Logger(),
	}
}

type promptQuestion struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"`
	Type          string   `json:"type"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	StudentAnswer string   `json:"studentAnswer"`
}

type promptRequest struct {
	Instructions string           `json:"instructions"`
	Questions    []promptQuestion `json:"questions"`
}

type feedbackItem struct {
	QuestionID string `json:"questionId"`
	Feedback   string `json:"feedback"`
}

var errMalformedReply = errors.New("malformed feedback reply")

// Assess implements Assessor.
func (a *GeminiAssessor) Assess(ctx context.Context, questions []model.Question, answers map[string]string, level model.DetailLevel) map[string]string {
	out := map[string]string{}
	if len(questions) == 0 {
		return out
	}

	key, err := a.creds.AICredential(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("Could not load AI credential, skipping feedback")
		return out
	}
	if key == "" {
		a.log.Debug().Msg("No AI credential configured, skipping feedback")
		return out
	}

	prompt, err := BuildPrompt(questions, answers, level)
	if err != nil {
		a.log.Warn().Err(err).Msg("Failed to build feedback prompt")
		return out
	}

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := a.gen.Generate(callCtx, key, prompt)
	if err != nil {
		a.log.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("AI feedback request failed")
		return out
	}

	out, err = ParseReply(reply, questions)
	if err != nil {
		a.log.Warn().Err(err).Msg("Discarding AI feedback reply")
		return map[string]string{}
	}
	a.log.Debug().Int("count", len(out)).Dur("elapsed", time.Since(start)).Msg("AI feedback received")
	return out
}

// BuildPrompt renders the request embedding every question, the student's
// answer and the verbosity directive.
func BuildPrompt(questions []model.Question, answers map[string]string, level model.DetailLevel) (string, error) {
	directive := briefDirective
	if level == model.DetailDetailed {
		directive = detailedDirective
	}

	req := promptRequest{
		Instructions: strings.Join([]string{
			"You are a teacher reviewing a student's quiz answers.",
			"Give feedback for every question in the questions array, in Bahasa Indonesia.",
			directive,
			"An empty studentAnswer means the question was not answered.",
			`Reply only with a JSON array of objects {"questionId": string, "feedback": string}.`,
		}, " "),
		Questions: make([]promptQuestion, 0, len(questions)),
	}
	for _, q := range questions {
		pq := promptQuestion{
			ID:            q.ID,
			Prompt:        q.Text,
			Type:          string(q.Type),
			StudentAnswer: answers[q.ID],
		}
		if q.Type == model.QuestionMultipleChoice {
			pq.Options = q.Options
			pq.CorrectAnswer = q.CorrectAnswer
		}
		req.Questions = append(req.Questions, pq)
	}

	b, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseReply validates the reply shape and keeps non-empty feedback for
// known question ids.
func ParseReply(reply string, questions []model.Question) (map[string]string, error) {
	reply = strings.TrimSpace(reply)
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")
	reply = strings.TrimSpace(reply)
	if !strings.HasPrefix(reply, "[") {
		return nil, fmt.Errorf("%w: expected a JSON array", errMalformedReply)
	}

	var items []feedbackItem
	if err := json.Unmarshal([]byte(reply), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedReply, err)
	}

	known := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}
	}
	out := make(map[string]string, len(items))
	for _, it := range items {
		if _, ok := known[it.QuestionID]; !ok {
			continue
		}
		if text := strings.TrimSpace(it.Feedback); text != "" {
			out[it.QuestionID] = text
		}
	}
	return out, nil
}

// GenaiGenerator calls the Gemini API. Clients are cached per API key.
type GenaiGenerator struct {
	model string

	mu      sync.Mutex
	clients map[string]*genai.Client
}

func NewGenaiGenerator(model string) *GenaiGenerator {
	return &GenaiGenerator{
		model:   model,
		clients: make(map[string]*genai.Client),
	}
}

func (g *GenaiGenerator) Generate(ctx context.Context, apiKey, prompt string) (string, error) {
	client, err := g.client(ctx, apiKey)
	if err != nil {
		return "", err
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"questionId": {Type: genai.TypeString},
					"feedback":   {Type: genai.TypeString},
				},
				Required: []string{"questionId", "feedback"},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

func (g *GenaiGenerator) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[apiKey]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	// A rotated key replaces the old client.
	g.clients = map[string]*genai.Client{apiKey: c}
	return c, nil
}
