// Package reply turns a user's message and conversation history into the
// bot's answer.
package reply

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"maurine-bot/internal/observability"
	"maurine-bot/internal/persona"
)

const (
	NoResponseReply = "Sorry, I couldn’t find a response for that."
	ErrorReply      = "Sorry, I encountered an error while processing your request."
)

// TextModel is a hosted or local text generation backend.
type TextModel interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Generator builds prompts from the persona and history and never fails:
// backend errors become ErrorReply.
type Generator struct {
	model   TextModel
	persona persona.Persona
	ownerID string
	logger  zerolog.Logger
	metrics *observability.Metrics
}

type Option func(*Generator)

// WithOwner sets the identifier that always receives the owner greeting.
func WithOwner(id string) Option {
	return func(g *Generator) {
		g.ownerID = id
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(g *Generator) {
		g.metrics = m
	}
}

func NewGenerator(model TextModel, p persona.Persona, opts ...Option) *Generator {
	g := &Generator{
		model:   model,
		persona: p,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the reply for message. previous must already end with
// the current "User: ..." line.
func (g *Generator) Generate(ctx context.Context, message, userID, userName string, previous []string) string {
	if g.ownerID != "" && userID == g.ownerID {
		return g.persona.OwnerGreeting()
	}
	if message == "" {
		return g.persona.Introduction()
	}

	prompt := BuildPrompt(g.persona, userName, previous)

	start := time.Now()
	text, err := g.model.GenerateText(ctx, prompt)
	if err != nil {
		g.metrics.ObserveGeneration("error", time.Since(start))
		g.logger.Error().Err(err).Str("user", userID).Msg("error fetching response from generation service")
		return ErrorReply
	}
	if text == "" {
		g.metrics.ObserveGeneration("empty", time.Since(start))
		g.logger.Warn().Str("user", userID).Msg("generation service returned no text")
		return NoResponseReply
	}
	g.metrics.ObserveGeneration("ok", time.Since(start))
	return text
}

// BuildPrompt renders the persona preamble followed by the newline-joined
// conversation history.
func BuildPrompt(p persona.Persona, userName string, previous []string) string {
	var sb strings.Builder
	sb.WriteString(p.Preamble(userName))
	sb.WriteString("\nHere is the conversation context:\n")
	sb.WriteString(strings.Join(previous, "\n"))
	return sb.String()
}
