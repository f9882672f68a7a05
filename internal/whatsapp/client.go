// Package whatsapp connects the bot to WhatsApp through a linked-device
// session and feeds inbound messages to a handler one at a time.
package whatsapp

import (
	"context"
	"fmt"
	"io"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mdp/qrterminal/v3"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"maurine-bot/internal/bot"
	"maurine-bot/internal/logging"
)

const DefaultQueueSize = 64

// MessageHandler processes one inbound message to completion.
type MessageHandler interface {
	Handle(ctx context.Context, msg bot.Inbound)
}

// TokenSink receives every pairing code issued while linking the device.
type TokenSink interface {
	SetToken(token string)
}

type Options struct {
	// SessionDB is the sqlite DSN of the linked-device store.
	SessionDB string
	QueueSize int
	// QROutput receives a terminal rendering of each pairing code. Nil
	// disables printing.
	QROutput io.Writer
}

type Client struct {
	wa      *whatsmeow.Client
	sender  messageSender
	handler MessageHandler
	tokens  TokenSink
	lids    lidResolver
	logger  zerolog.Logger
	qrOut   io.Writer

	queue    chan *events.Message
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New opens the device session store and prepares a client. Call Start to
// connect.
func New(ctx context.Context, opts Options, handler MessageHandler, tokens TokenSink, logger zerolog.Logger) (*Client, error) {
	container, err := sqlstore.New(ctx, "sqlite3", opts.SessionDB, logging.Module(logger, "Database"))
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}

	wa := whatsmeow.NewClient(device, logging.Module(logger, "Client"))
	c := newClient(wa, handler, tokens, logger, opts)
	c.wa = wa
	if device.LIDs != nil {
		c.lids = device.LIDs
	}
	wa.AddEventHandler(c.handleEvent)
	return c, nil
}

func newClient(sender messageSender, handler MessageHandler, tokens TokenSink, logger zerolog.Logger, opts Options) *Client {
	size := opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Client{
		sender:  sender,
		handler: handler,
		tokens:  tokens,
		logger:  logger,
		qrOut:   opts.QROutput,
		queue:   make(chan *events.Message, size),
		done:    make(chan struct{}),
	}
}

// Start launches the message worker and connects. An unpaired device gets
// a QR channel first so pairing codes reach the TokenSink.
func (c *Client) Start(ctx context.Context) error {
	c.startWorker(ctx)

	if c.wa.Store.ID == nil {
		qrChan, err := c.wa.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("get qr channel: %w", err)
		}
		if err := c.wa.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		go c.consumeQR(qrChan)
		return nil
	}

	if err := c.wa.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// Stop disconnects and waits for the in-flight message to finish.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		if c.wa != nil {
			c.wa.Disconnect()
		}
		close(c.done)
	})
	c.wg.Wait()
}

func (c *Client) startWorker(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case evt := <-c.queue:
				c.handler.Handle(ctx, &inbound{evt: evt, sender: c.sender, lids: c.lids})
			}
		}
	}()
}

func (c *Client) handleEvent(evt any) {
	switch v := evt.(type) {
	case *events.Message:
		c.enqueue(v)
	case *events.Connected:
		c.logger.Info().Msg("WhatsApp client is ready!")
	case *events.PairSuccess:
		c.logger.Info().Str("jid", v.ID.String()).Msg("device paired")
	case *events.LoggedOut:
		c.logger.Warn().Bool("on_connect", v.OnConnect).Msg("logged out, pair the device again")
	case *events.Disconnected:
		c.logger.Warn().Msg("disconnected from WhatsApp")
	}
}

func (c *Client) enqueue(evt *events.Message) {
	if evt.Info.IsFromMe || evt.Info.Chat.Server == types.BroadcastServer {
		return
	}
	if !isUserContent(evt.Message) {
		return
	}
	select {
	case c.queue <- evt:
	case <-c.done:
	}
}

func (c *Client) consumeQR(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		switch item.Event {
		case "code":
			c.tokens.SetToken(item.Code)
			c.logger.Info().Msg("QR code generated")
			if c.qrOut != nil {
				qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, c.qrOut)
			}
		case "success":
			c.logger.Info().Msg("QR pairing succeeded")
		case "timeout":
			c.logger.Warn().Msg("QR pairing timed out, restart to get a new code")
		default:
			c.logger.Warn().Err(item.Error).Str("event", item.Event).Msg("QR pairing event")
		}
	}
}
