package whatsapp

import (
	"context"
	"errors"
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

var errQuotedMissing = errors.New("quoted message not included in payload")

type messageSender interface {
	SendMessage(ctx context.Context, to types.JID, message *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error)
	SendChatPresence(ctx context.Context, jid types.JID, state types.ChatPresence, media types.ChatPresenceMedia) error
}

// lidResolver maps hidden-user (LID) identifiers to phone-number JIDs.
type lidResolver interface {
	GetPNForLID(ctx context.Context, lid types.JID) (types.JID, error)
}

// inbound adapts a whatsmeow message event to bot.Inbound.
type inbound struct {
	evt    *events.Message
	sender messageSender
	lids   lidResolver
}

// From identifies the chat. Chats addressed by LID are reported by the
// sender's phone-number JID when it is known, so one person maps to one
// user record. Replies still go to Info.Chat.
func (m *inbound) From() string {
	return phoneChat(m.evt.Info, m.lids).String()
}

func phoneChat(info types.MessageInfo, lids lidResolver) types.JID {
	chat := info.Chat
	if chat.Server != types.HiddenUserServer {
		return chat
	}
	if info.SenderAlt.Server == types.DefaultUserServer {
		return info.SenderAlt.ToNonAD()
	}
	if lids != nil {
		pn, err := lids.GetPNForLID(context.Background(), chat.ToNonAD())
		if err == nil && !pn.IsEmpty() {
			return pn.ToNonAD()
		}
	}
	return chat
}

func (m *inbound) Body() string {
	return messageText(m.evt.Message)
}

func (m *inbound) HasQuotedMsg() bool {
	return contextInfo(m.evt.Message).GetStanzaID() != ""
}

func (m *inbound) QuotedMessage(context.Context) (string, error) {
	ci := contextInfo(m.evt.Message)
	if ci.GetQuotedMessage() == nil {
		return "", fmt.Errorf("%w: %s", errQuotedMissing, ci.GetStanzaID())
	}
	return messageText(ci.GetQuotedMessage()), nil
}

// Typing shows the composing indicator in the originating chat.
func (m *inbound) Typing(ctx context.Context) error {
	return m.sender.SendChatPresence(ctx, m.evt.Info.Chat, types.ChatPresenceComposing, types.ChatPresenceMediaText)
}

// Reply sends text to the originating chat, quoting the message it answers.
func (m *inbound) Reply(ctx context.Context, text string) error {
	info := m.evt.Info
	out := &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String(text),
			ContextInfo: &waE2E.ContextInfo{
				StanzaID:      proto.String(info.ID),
				Participant:   proto.String(info.Sender.ToNonAD().String()),
				QuotedMessage: m.evt.Message,
			},
		},
	}
	if _, err := m.sender.SendMessage(ctx, info.Chat, out); err != nil {
		return fmt.Errorf("send message to %s: %w", info.Chat, err)
	}
	return nil
}

// messageText returns the user-visible text of msg: the body of text
// messages or the caption of media. Other kinds yield "".
func messageText(msg *waE2E.Message) string {
	switch {
	case msg.GetConversation() != "":
		return msg.GetConversation()
	case msg.GetExtendedTextMessage() != nil:
		return msg.GetExtendedTextMessage().GetText()
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetCaption()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetCaption()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage().GetCaption()
	}
	return ""
}

func contextInfo(msg *waE2E.Message) *waE2E.ContextInfo {
	switch {
	case msg.GetExtendedTextMessage() != nil:
		return msg.GetExtendedTextMessage().GetContextInfo()
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetContextInfo()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetContextInfo()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage().GetContextInfo()
	}
	return nil
}

// isUserContent reports whether msg is something a person typed or sent,
// as opposed to reactions, edits and other protocol traffic.
func isUserContent(msg *waE2E.Message) bool {
	if msg == nil {
		return false
	}
	return msg.Conversation != nil ||
		msg.ExtendedTextMessage != nil ||
		msg.ImageMessage != nil ||
		msg.VideoMessage != nil ||
		msg.AudioMessage != nil ||
		msg.DocumentMessage != nil ||
		msg.StickerMessage != nil ||
		msg.ContactMessage != nil ||
		msg.LocationMessage != nil
}
