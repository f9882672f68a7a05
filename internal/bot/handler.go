// Package bot decides what to do with each inbound chat message and hands
// accepted ones to the conversation flow.
package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"maurine-bot/internal/observability"
)

// GroupSuffix marks chat identifiers that belong to group conversations.
const GroupSuffix = "@g.us"

// Inbound is one received message as seen by the Handler.
type Inbound interface {
	From() string
	Body() string
	HasQuotedMsg() bool
	QuotedMessage(ctx context.Context) (string, error)
	Reply(ctx context.Context, text string) error
}

// typingIndicator is implemented by transports that can show the bot is
// composing a reply.
type typingIndicator interface {
	Typing(ctx context.Context) error
}

// Conversation answers a user's message.
type Conversation interface {
	HandleUserMessage(ctx context.Context, userID, text string) (string, error)
}

// Handler filters inbound messages, runs them through the Conversation and
// sends the answer back. Failures are logged and never returned.
type Handler struct {
	chat    Conversation
	logger  zerolog.Logger
	metrics *observability.Metrics
}

type Option func(*Handler)

func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

func NewHandler(chat Conversation, opts ...Option) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("bot: conversation is required")
	}
	h := &Handler{
		chat:   chat,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// IsGroup reports whether from identifies a group chat.
func IsGroup(from string) bool {
	return strings.HasSuffix(from, GroupSuffix)
}

// Handle processes msg to completion.
func (h *Handler) Handle(ctx context.Context, msg Inbound) {
	from := msg.From()
	log := h.logger.With().Str("from", from).Logger()

	if IsGroup(from) {
		log.Debug().Msg("ignoring group message")
		h.metrics.ObserveMessage("ignored_group")
		return
	}

	if msg.HasQuotedMsg() {
		quoted, err := msg.QuotedMessage(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("error fetching quoted message")
		} else {
			log.Info().Str("quoted", quoted).Msg("quoted message")
		}
	}

	body := msg.Body()
	if pattern, ok := DetectPromptInjection(body); ok {
		log.Warn().Str("pattern", pattern).Msg("possible prompt injection")
		h.metrics.ObserveSuspicious()
	}

	if t, ok := msg.(typingIndicator); ok {
		if err := t.Typing(ctx); err != nil {
			log.Debug().Err(err).Msg("error sending typing indicator")
		}
	}

	text, err := h.chat.HandleUserMessage(ctx, from, body)
	if err != nil {
		log.Error().Err(err).Msg("error handling message")
		h.metrics.ObserveMessage("error")
		return
	}

	if err := msg.Reply(ctx, text); err != nil {
		log.Error().Err(err).Msg("error sending reply")
		h.metrics.ObserveMessage("send_error")
		return
	}
	h.metrics.ObserveMessage("replied")
}
