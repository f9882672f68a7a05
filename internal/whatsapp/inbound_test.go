package whatsapp

import (
	"context"
	"errors"
	"testing"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func TestMessageText(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{"nil", nil, ""},
		{"conversation", &waE2E.Message{Conversation: proto.String("hi")}, "hi"},
		{"extended", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("see https://go.dev")}}, "see https://go.dev"},
		{"image caption", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String("my cat")}}, "my cat"},
		{"image no caption", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, ""},
		{"sticker", &waE2E.Message{StickerMessage: &waE2E.StickerMessage{}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := messageText(tt.msg); got != tt.want {
				t.Errorf("messageText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInbound_QuotedMessage(t *testing.T) {
	quotedEvt := func(ci *waE2E.ContextInfo) *inbound {
		return &inbound{evt: &events.Message{
			Info: types.MessageInfo{MessageSource: types.MessageSource{Chat: userJID("1")}},
			Message: &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{
				Text:        proto.String("why?"),
				ContextInfo: ci,
			}},
		}}
	}

	plain := &inbound{evt: textEvent(userJID("1"), "A", "hello")}
	if plain.HasQuotedMsg() {
		t.Error("plain message reports a quote")
	}

	withQuote := quotedEvt(&waE2E.ContextInfo{
		StanzaID:      proto.String("Q1"),
		QuotedMessage: &waE2E.Message{Conversation: proto.String("the sky is blue")},
	})
	if !withQuote.HasQuotedMsg() {
		t.Fatal("HasQuotedMsg() = false, want true")
	}
	got, err := withQuote.QuotedMessage(context.Background())
	if err != nil || got != "the sky is blue" {
		t.Errorf("QuotedMessage() = %q, %v", got, err)
	}

	missing := quotedEvt(&waE2E.ContextInfo{StanzaID: proto.String("Q2")})
	if !missing.HasQuotedMsg() {
		t.Fatal("HasQuotedMsg() = false, want true")
	}
	if _, err := missing.QuotedMessage(context.Background()); !errors.Is(err, errQuotedMissing) {
		t.Errorf("QuotedMessage() error = %v, want errQuotedMissing", err)
	}
}

func TestUserID(t *testing.T) {
	tests := []struct {
		phone string
		want  string
	}{
		{"+254700000000", "254700000000@s.whatsapp.net"},
		{"+254 (700) 000-000", "254700000000@s.whatsapp.net"},
		{"254700000000", "254700000000@s.whatsapp.net"},
		{"", ""},
		{"n/a", ""},
	}
	for _, tt := range tests {
		if got := UserID(tt.phone); got != tt.want {
			t.Errorf("UserID(%q) = %q, want %q", tt.phone, got, tt.want)
		}
	}
}

type fakeLIDs struct {
	pn  map[types.JID]types.JID
	err error
}

func (f fakeLIDs) GetPNForLID(_ context.Context, lid types.JID) (types.JID, error) {
	if f.err != nil {
		return types.JID{}, f.err
	}
	return f.pn[lid], nil
}

func TestInbound_FromNormalizesLIDChats(t *testing.T) {
	lid := types.NewJID("123456789012345", types.HiddenUserServer)
	phone := userJID("254700000000")

	lidEvent := func(alt types.JID) *events.Message {
		evt := textEvent(lid, "L1", "hello")
		evt.Info.SenderAlt = alt
		return evt
	}

	tests := []struct {
		name string
		evt  *events.Message
		lids lidResolver
		want string
	}{
		{"phone chat unchanged", textEvent(phone, "P1", "hi"), nil, "254700000000@s.whatsapp.net"},
		{"lid with sender alt", lidEvent(phone), nil, "254700000000@s.whatsapp.net"},
		{"lid resolved from store", lidEvent(types.JID{}), fakeLIDs{pn: map[types.JID]types.JID{lid: phone}}, "254700000000@s.whatsapp.net"},
		{"lid unknown to store", lidEvent(types.JID{}), fakeLIDs{pn: map[types.JID]types.JID{}}, "123456789012345@lid"},
		{"lid store error", lidEvent(types.JID{}), fakeLIDs{err: errors.New("db locked")}, "123456789012345@lid"},
		{"lid without resolver", lidEvent(types.JID{}), nil, "123456789012345@lid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &inbound{evt: tt.evt, lids: tt.lids}
			if got := m.From(); got != tt.want {
				t.Errorf("From() = %q, want %q", got, tt.want)
			}
		})
	}

	if owner := UserID("+254700000000"); (&inbound{evt: lidEvent(phone)}).From() != owner {
		t.Errorf("LID chat does not match owner identifier %q", owner)
	}
}

func TestInbound_LIDChatRepliesToLID(t *testing.T) {
	lid := types.NewJID("123456789012345", types.HiddenUserServer)
	evt := textEvent(lid, "L2", "hello")
	evt.Info.SenderAlt = userJID("254700000000")

	sender := &fakeSender{}
	m := &inbound{evt: evt, sender: sender}
	if err := m.Typing(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Reply(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 1 || sender.sent[0].to != lid {
		t.Errorf("reply sent to %v, want %s", sender.sent, lid)
	}
	if len(sender.typingTo) != 1 || sender.typingTo[0] != lid {
		t.Errorf("typing sent to %v, want %s", sender.typingTo, lid)
	}
}
