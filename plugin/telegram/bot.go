// Package telegram adapts the Telegram Bot API to the chat.Channel and
// chat.Update boundary. It long-polls for updates and fans them out so that
// one user's updates are handled strictly in order while different users
// proceed concurrently.
package telegram

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"github.com/hrygo/eventbot/server/chat"
	"github.com/hrygo/eventbot/store"
)

// Bot wraps an authorized Telegram Bot API client.
type Bot struct {
	api *tgbotapi.BotAPI

	dispatcher *dispatcher
}

// NewBot authorizes against the Bot API with the given token.
func NewBot(token string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to authorize telegram bot")
	}
	slog.Info("telegram bot authorized", slog.String("username", api.Self.UserName))
	return &Bot{api: api}, nil
}

// SendText implements chat.Channel.
func (b *Bot) SendText(_ context.Context, chatID int64, text string, options [][]chat.Option) (chat.MessageRef, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if kb := keyboard(options); kb != nil {
		msg.ReplyMarkup = *kb
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		return chat.MessageRef{}, errors.Wrap(err, "failed to send message")
	}
	return chat.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// EditText implements chat.Channel.
func (b *Bot) EditText(_ context.Context, ref chat.MessageRef, text string, options [][]chat.Option) error {
	edit := tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text)
	edit.ReplyMarkup = keyboard(options)
	if _, err := b.api.Send(edit); err != nil {
		return errors.Wrap(err, "failed to edit message")
	}
	return nil
}

// SendFile implements chat.Channel. The stored handle is a Telegram file id,
// so the file is re-sent by reference without downloading it.
func (b *Bot) SendFile(_ context.Context, chatID int64, attachment *store.Attachment, caption string) error {
	file := tgbotapi.FileID(attachment.Handle)

	var msg tgbotapi.Chattable
	switch attachment.Kind {
	case store.AttachmentDocument:
		doc := tgbotapi.NewDocument(chatID, file)
		doc.Caption = caption
		msg = doc
	case store.AttachmentPhoto:
		photo := tgbotapi.NewPhoto(chatID, file)
		photo.Caption = caption
		msg = photo
	case store.AttachmentAudio:
		audio := tgbotapi.NewAudio(chatID, file)
		audio.Caption = caption
		msg = audio
	case store.AttachmentVoice:
		voice := tgbotapi.NewVoice(chatID, file)
		voice.Caption = caption
		msg = voice
	default:
		return errors.Errorf("unsupported attachment kind %q", attachment.Kind)
	}

	if _, err := b.api.Send(msg); err != nil {
		return errors.Wrap(err, "failed to send file")
	}
	return nil
}

// keyboard converts option rows into an inline keyboard, or nil when there
// are none.
func keyboard(options [][]chat.Option) *tgbotapi.InlineKeyboardMarkup {
	if len(options) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(options))
	for _, row := range options {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, option := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(option.Label, option.Data))
		}
		rows = append(rows, buttons)
	}
	return &tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
