package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"pvz-shift-monitor/internal/infra/logger"
	"pvz-shift-monitor/internal/store"
)

const httpClientTimeout = 30 * time.Second

// BotSender implements Sender over the Telegram Bot API's sendMessage
// endpoint, attaching an inline keyboard so the operator can act on a found
// item (check the author against the blacklist, or dismiss it) without
// leaving the chat.
type BotSender struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewBotSender builds a Sender for the given bot token. rps bounds the
// average outbound request rate.
func NewBotSender(token string, rps int) *BotSender {
	if rps <= 0 {
		rps = 1
	}
	return &BotSender{
		baseURL: fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", token),
		client:  &http.Client{Timeout: httpClientTimeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID                int64           `json:"chat_id"`
	Text                  string          `json:"text"`
	DisableWebPagePreview bool            `json:"disable_web_page_preview"`
	ReplyMarkup           *inlineKeyboard `json:"reply_markup,omitempty"`
}

// Send formats the item as a multi-line message and attaches
// check_blacklist/ignore buttons plus, when an author is identifiable, a
// link button to their profile.
func (s *BotSender) Send(ctx context.Context, chatID int64, item store.FoundItem, itemID int64, mode string) bool {
	if err := s.limiter.Wait(ctx); err != nil {
		return false
	}

	req := sendMessageRequest{
		ChatID:                chatID,
		Text:                  formatMessage(item, mode),
		DisableWebPagePreview: true,
		ReplyMarkup:           buildKeyboard(item, itemID),
	}

	body, err := json.Marshal(req)
	if err != nil {
		logger.Errorf("notify: marshal request: %v", err)
		return false
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		logger.Errorf("notify: build request: %v", err)
		return false
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		logger.Warnf("notify: send failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	var apiResp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(&apiResp); decodeErr != nil {
		logger.Warnf("notify: decode response: %v", decodeErr)
		return false
	}
	if !apiResp.OK {
		logger.Warnf("notify: bot api error: %s", apiResp.Description)
		return false
	}
	return true
}

func formatMessage(item store.FoundItem, mode string) string {
	var b strings.Builder

	if mode == "employer" {
		b.WriteString("Новая вакансия\n")
	} else {
		b.WriteString("Новое предложение смены\n")
	}

	if item.WorkDate != nil && *item.WorkDate != "" {
		fmt.Fprintf(&b, "Дата: %s\n", *item.WorkDate)
	}
	if item.Price > 0 {
		fmt.Fprintf(&b, "Цена: %d\n", item.Price)
	}
	if item.City != nil && *item.City != "" {
		fmt.Fprintf(&b, "Город: %s\n", *item.City)
	}
	if item.TopicName != nil && *item.TopicName != "" {
		fmt.Fprintf(&b, "Тема: %s\n", *item.TopicName)
	}
	if item.Shk != nil && *item.Shk != "" {
		fmt.Fprintf(&b, "ШК: %s\n", *item.Shk)
	}

	author := authorLabel(item)
	if author != "" {
		fmt.Fprintf(&b, "Автор: %s\n", author)
	}
	if item.ChatName != nil && *item.ChatName != "" {
		fmt.Fprintf(&b, "Чат: %s\n", *item.ChatName)
	}
	if item.MessageText != nil && *item.MessageText != "" {
		fmt.Fprintf(&b, "\n%s\n", *item.MessageText)
	}
	fmt.Fprintf(&b, "\n%s", item.MessageLink)

	return b.String()
}

func authorLabel(item store.FoundItem) string {
	if item.AuthorUsername != nil && *item.AuthorUsername != "" {
		return "@" + *item.AuthorUsername
	}
	if item.AuthorFullName != nil && *item.AuthorFullName != "" {
		return *item.AuthorFullName
	}
	return ""
}

func buildKeyboard(item store.FoundItem, itemID int64) *inlineKeyboard {
	row := []inlineButton{
		{Text: "Проверить по ЧС", CallbackData: "check_blacklist:" + strconv.FormatInt(itemID, 10)},
		{Text: "Игнорировать", CallbackData: "ignore:" + strconv.FormatInt(itemID, 10)},
	}

	keyboard := [][]inlineButton{row}

	if url := authorProfileURL(item); url != "" {
		keyboard = append(keyboard, []inlineButton{{Text: "Профиль автора", URL: url}})
	}

	return &inlineKeyboard{InlineKeyboard: keyboard}
}

func authorProfileURL(item store.FoundItem) string {
	if item.AuthorUsername != nil && *item.AuthorUsername != "" {
		return "https://t.me/" + *item.AuthorUsername
	}
	if item.AuthorID != nil && *item.AuthorID != 0 {
		return fmt.Sprintf("tg://user?id=%d", *item.AuthorID)
	}
	return ""
}
