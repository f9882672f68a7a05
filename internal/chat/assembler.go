// Package chat assembles per-user conversation context around each inbound
// message and persists the resulting history.
package chat

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"maurine-bot/internal/store"
)

// UserLinePrefix marks history entries written by the user.
const UserLinePrefix = "User: "

// ReplyGenerator produces the bot's answer. It never fails; backend errors
// come back as a fallback string.
type ReplyGenerator interface {
	Generate(ctx context.Context, message, userID, userName string, previous []string) string
}

// Assembler drives the name-capture flow and the reply round trip for one
// user at a time. It holds no state between calls.
type Assembler struct {
	repo    store.Repository
	replies ReplyGenerator
	logger  zerolog.Logger
}

type Option func(*Assembler)

func WithLogger(logger zerolog.Logger) Option {
	return func(a *Assembler) {
		a.logger = logger
	}
}

func NewAssembler(repo store.Repository, replies ReplyGenerator, opts ...Option) *Assembler {
	a := &Assembler{
		repo:    repo,
		replies: replies,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NameAcknowledgement is the reply to the message captured as a user's name.
func NameAcknowledgement(name string) string {
	return fmt.Sprintf("Got it! Nice to meet you, %s! What would you like to talk about?", name)
}

// HandleUserMessage returns the reply for text sent by userID. The first
// message from an unknown user is stored verbatim as their name. Later
// messages are appended to the conversation together with the reply and
// saved before returning.
func (a *Assembler) HandleUserMessage(ctx context.Context, userID, text string) (string, error) {
	user, created, err := store.FindOrCreateUser(ctx, a.repo, userID)
	if err != nil {
		return "", err
	}
	if created {
		a.logger.Debug().Str("user", userID).Msg("created user")
	}

	if !user.HasName() {
		user.Name = text
		if err := a.repo.SaveUser(ctx, user); err != nil {
			return "", fmt.Errorf("save user name: %w", err)
		}
		a.logger.Info().Str("user", userID).Msg("captured user name")
		return NameAcknowledgement(user.Name), nil
	}

	conv, _, err := store.FindOrCreateConversation(ctx, a.repo, userID)
	if err != nil {
		return "", err
	}

	conv.Append(UserLinePrefix + text)
	reply := a.replies.Generate(ctx, text, userID, user.Name, conv.Messages)
	conv.Append(reply)

	if err := a.repo.SaveConversation(ctx, conv); err != nil {
		return "", fmt.Errorf("save conversation: %w", err)
	}
	return reply, nil
}
