// Package feedback produces optional per-question AI feedback for a graded
// quiz attempt. Failures never propagate: a missing credential, transport
// error or malformed reply all yield an empty mapping.
package feedback

import (
	"context"

	"github.com/arstate/FAFA-BIMBEL/internal/model"
)

// Assessor returns feedback text keyed by question id.
type Assessor interface {
	Assess(ctx context.Context, questions []model.Question, answers map[string]string, level model.DetailLevel) map[string]string
}

// Nop never returns feedback.
type Nop struct{}

func (Nop) Assess(context.Context, []model.Question, map[string]string, model.DetailLevel) map[string]string {
	return map[string]string{}
}

// CredentialSource looks up the API key. An empty key means none is configured.
type CredentialSource interface {
	AICredential(ctx context.Context) (string, error)
}

// Generator sends one prompt and returns the raw model reply.
type Generator interface {
	Generate(ctx context.Context, apiKey, prompt string) (string, error)
}
