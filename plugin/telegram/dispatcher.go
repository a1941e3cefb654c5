package telegram

import (
	"context"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/eventbot/server/chat"
	"github.com/hrygo/eventbot/store"
)

// queueSize bounds the per-user backlog. A user spamming faster than their
// updates are handled gets the overflow dropped, not the whole bot stalled.
const queueSize = 16

// dispatcher routes decoded updates into per-user queues, each drained by
// its own goroutine. Serializing per user is what lets the engine mutate
// session state without locks.
type dispatcher struct {
	engine *chat.Engine

	mu     sync.Mutex
	queues map[int64]chan *chat.Update
}

func newDispatcher(engine *chat.Engine) *dispatcher {
	return &dispatcher{
		engine: engine,
		queues: make(map[int64]chan *chat.Update),
	}
}

func (d *dispatcher) dispatch(ctx context.Context, g *errgroup.Group, up *chat.Update) {
	d.mu.Lock()
	q, ok := d.queues[up.SenderID]
	if !ok {
		q = make(chan *chat.Update, queueSize)
		d.queues[up.SenderID] = q
		g.Go(func() error {
			d.drain(ctx, q)
			return nil
		})
	}
	d.mu.Unlock()

	select {
	case q <- up:
	default:
		slog.Warn("dropping update, user queue is full", slog.Int64("user_id", up.SenderID))
	}
}

func (d *dispatcher) drain(ctx context.Context, q <-chan *chat.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up := <-q:
			if err := d.engine.HandleUpdate(ctx, up); err != nil {
				slog.Error("failed to handle update",
					slog.Int64("user_id", up.SenderID), slog.String("error", err.Error()))
			}
		}
	}
}

// Run long-polls the Bot API until the context is cancelled, feeding decoded
// updates through the dispatcher.
func (b *Bot) Run(ctx context.Context, engine *chat.Engine) error {
	b.dispatcher = newDispatcher(engine)

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	g, ctx := errgroup.WithContext(ctx)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return g.Wait()
		case raw, ok := <-updates:
			if !ok {
				return g.Wait()
			}
			if cb := raw.CallbackQuery; cb != nil {
				// Acknowledge the button press so the client stops its spinner.
				if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
					slog.Debug("failed to answer callback query", slog.String("error", err.Error()))
				}
			}
			if up := decodeUpdate(raw); up != nil {
				b.dispatcher.dispatch(ctx, g, up)
			}
		}
	}
}

// decodeUpdate converts a raw Bot API update into the transport-neutral
// form. Updates the bot has no use for decode to nil.
func decodeUpdate(raw tgbotapi.Update) *chat.Update {
	if cb := raw.CallbackQuery; cb != nil {
		if cb.Message == nil {
			return nil
		}
		return &chat.Update{
			SenderID: cb.From.ID,
			ChatID:   cb.Message.Chat.ID,
			Callback: cb.Data,
			CallbackRef: chat.MessageRef{
				ChatID:    cb.Message.Chat.ID,
				MessageID: cb.Message.MessageID,
			},
		}
	}

	msg := raw.Message
	if msg == nil || msg.From == nil {
		return nil
	}

	up := &chat.Update{SenderID: msg.From.ID, ChatID: msg.Chat.ID}
	if msg.IsCommand() {
		up.Command = msg.Command()
		return up
	}

	switch {
	case msg.Document != nil:
		up.Attachment = &store.Attachment{
			Handle: msg.Document.FileID,
			Kind:   store.AttachmentDocument,
			Name:   msg.Document.FileName,
		}
	case msg.Audio != nil:
		up.Attachment = &store.Attachment{
			Handle: msg.Audio.FileID,
			Kind:   store.AttachmentAudio,
			Name:   msg.Audio.FileName,
		}
	case msg.Voice != nil:
		up.Attachment = &store.Attachment{
			Handle: msg.Voice.FileID,
			Kind:   store.AttachmentVoice,
		}
	case len(msg.Photo) > 0:
		for _, variant := range msg.Photo {
			up.Photo = append(up.Photo, chat.PhotoVariant{
				Handle: variant.FileID,
				Width:  variant.Width,
				Height: variant.Height,
			})
		}
	default:
		up.Text = msg.Text
	}
	return up
}
