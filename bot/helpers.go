package bot

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"

	"luckydrop/lib/sl"
)

func (t *TgBot) plainResponse(chatId int64, text string) {
	if text == "" {
		t.log.With("id", chatId).Debug("empty message")
		return
	}

	_, err := t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		t.log.With(slog.Int64("id", chatId)).Warn("sending message", sl.Err(err))
		_, err = t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{})
		if err != nil {
			t.log.With(slog.Int64("id", chatId)).Error("sending safe message", sl.Err(err))
		}
	}
}

func Sanitize(input string) string {
	reservedChars := "\\_{}#+-.!|()[]=*"
	sanitized := ""
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			sanitized += "\\" + string(char)
		} else {
			sanitized += string(char)
		}
	}
	return sanitized
}

// money formats an amount with the currency sign, pre-escaped for
// MarkdownV2.
func money(amount float64) string {
	return Sanitize(fmt.Sprintf("₹%.2f", amount))
}

func (t *TgBot) location() *time.Location {
	if t.config.Location != nil {
		return t.config.Location
	}
	return time.Local
}

func (t *TgBot) requireAdmin(chatId int64) bool {
	return t.config.AdminId != 0 && chatId == t.config.AdminId
}

// AlertAdmin forwards a pre-formatted message to the admin chat; used
// by the log handler for WARN+ records.
func (t *TgBot) AlertAdmin(msg string) {
	if t.config.AdminId == 0 {
		return
	}
	t.plainResponse(t.config.AdminId, msg)
}

func (t *TgBot) reportError(chatId int64, command string, err error) {
	t.log.With(
		slog.Int64("id", chatId),
		slog.String("command", command),
	).Error("command failed", sl.Err(err))
	t.plainResponse(chatId, "Something went wrong, please try again later\\.")
}
