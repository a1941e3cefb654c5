package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/eventbot/server/chat"
	"github.com/hrygo/eventbot/store"
)

func textMessage(userID, chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
	}
}

func TestDecodeCommand(t *testing.T) {
	msg := textMessage(1, 2, "/add")
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 4}}

	up := decodeUpdate(tgbotapi.Update{Message: msg})
	require.NotNil(t, up)
	assert.Equal(t, int64(1), up.SenderID)
	assert.Equal(t, int64(2), up.ChatID)
	assert.Equal(t, "add", up.Command)
	assert.Empty(t, up.Text)
}

func TestDecodeText(t *testing.T) {
	up := decodeUpdate(tgbotapi.Update{Message: textMessage(1, 2, "150624 1430")})
	require.NotNil(t, up)
	assert.Empty(t, up.Command)
	assert.Equal(t, "150624 1430", up.Text)
}

func TestDecodeDocument(t *testing.T) {
	msg := textMessage(1, 2, "")
	msg.Document = &tgbotapi.Document{FileID: "doc-id", FileName: "plan.pdf"}

	up := decodeUpdate(tgbotapi.Update{Message: msg})
	require.NotNil(t, up)
	require.NotNil(t, up.Attachment)
	assert.Equal(t, "doc-id", up.Attachment.Handle)
	assert.Equal(t, store.AttachmentDocument, up.Attachment.Kind)
	assert.Equal(t, "plan.pdf", up.Attachment.Name)
}

func TestDecodeVoiceHasNoName(t *testing.T) {
	msg := textMessage(1, 2, "")
	msg.Voice = &tgbotapi.Voice{FileID: "voice-id"}

	up := decodeUpdate(tgbotapi.Update{Message: msg})
	require.NotNil(t, up)
	require.NotNil(t, up.Attachment)
	assert.Equal(t, store.AttachmentVoice, up.Attachment.Kind)
	assert.Empty(t, up.Attachment.Name)
}

func TestDecodePhotoKeepsAllVariants(t *testing.T) {
	msg := textMessage(1, 2, "")
	msg.Photo = []tgbotapi.PhotoSize{
		{FileID: "small", Width: 90, Height: 60},
		{FileID: "large", Width: 1280, Height: 960},
	}

	up := decodeUpdate(tgbotapi.Update{Message: msg})
	require.NotNil(t, up)
	require.Len(t, up.Photo, 2)
	assert.Equal(t, "small", up.Photo[0].Handle)
	assert.Equal(t, "large", up.Photo[1].Handle)
	assert.Equal(t, 1280, up.Photo[1].Width)
}

func TestDecodeCallback(t *testing.T) {
	up := decodeUpdate(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		From: &tgbotapi.User{ID: 1},
		Data: "next_page",
		Message: &tgbotapi.Message{
			MessageID: 42,
			Chat:      &tgbotapi.Chat{ID: 2},
		},
	}})
	require.NotNil(t, up)
	assert.Equal(t, int64(1), up.SenderID)
	assert.Equal(t, "next_page", up.Callback)
	assert.Equal(t, chat.MessageRef{ChatID: 2, MessageID: 42}, up.CallbackRef)
}

func TestDecodeIgnoresOtherUpdates(t *testing.T) {
	assert.Nil(t, decodeUpdate(tgbotapi.Update{}))
	assert.Nil(t, decodeUpdate(tgbotapi.Update{EditedMessage: textMessage(1, 2, "edited")}))
}

func TestKeyboard(t *testing.T) {
	assert.Nil(t, keyboard(nil))

	kb := keyboard([][]chat.Option{
		{{Label: "⬅️ Back", Data: "prev_page"}, {Label: "Forward ➡️", Data: "next_page"}},
		{{Label: "✏️ Edit", Data: "edit_event"}},
	})
	require.NotNil(t, kb)
	require.Len(t, kb.InlineKeyboard, 2)
	require.Len(t, kb.InlineKeyboard[0], 2)
	assert.Equal(t, "⬅️ Back", kb.InlineKeyboard[0][0].Text)
	require.NotNil(t, kb.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "next_page", *kb.InlineKeyboard[0][1].CallbackData)
}
