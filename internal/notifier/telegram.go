package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const telegramBaseURL = "https://api.telegram.org"

// maxMessageLen is the Bot API limit in characters.
const maxMessageLen = 4096

// TelegramNotifier posts screener reports to one chat and reads its commands.
type TelegramNotifier struct {
	BaseURL  string
	BotToken string
	ChatID   string
	Client   *http.Client

	// PollInterval is the pause after a failed poll.
	PollInterval time.Duration
	// RetryBase is the first backoff of SendWithRetry; it doubles per attempt.
	RetryBase time.Duration
}

func NewTelegramNotifier(botToken, chatID, proxyURL string) *TelegramNotifier {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if u, err := url.Parse(proxyURL); proxyURL != "" && err == nil {
		tr.Proxy = http.ProxyURL(u)
	}
	return &TelegramNotifier{
		BaseURL:      telegramBaseURL,
		BotToken:     botToken,
		ChatID:       chatID,
		Client:       &http.Client{Timeout: 30 * time.Second, Transport: tr},
		PollInterval: 5 * time.Second,
		RetryBase:    time.Second,
	}
}

func (t *TelegramNotifier) endpoint(method string) string {
	return t.BaseURL + "/bot" + t.BotToken + "/" + method
}

type sendMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// truncate cuts text to the message limit, marking the cut with an ellipsis.
func truncate(text string) string {
	r := []rune(text)
	if len(r) <= maxMessageLen {
		return text
	}
	return string(r[:maxMessageLen-1]) + "…"
}

// Send posts an HTML message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessage{ChatID: t.ChatID, Text: truncate(text), ParseMode: "HTML"})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("sendMessage: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("sendMessage: status %d: %s", resp.StatusCode, detail)
}

// SendWithRetry retries Send up to maxRetries times, doubling the wait
// between attempts.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	wait := t.RetryBase
	if wait <= 0 {
		wait = time.Second
	}
	attempts := maxRetries + 1

	var err error
	for attempt := 1; ; attempt++ {
		if err = t.Send(ctx, text); err == nil {
			return nil
		}
		if attempt == attempts {
			return fmt.Errorf("all %d retries exhausted: %w", attempts, err)
		}
		log.Warn().Err(err).Int("attempt", attempt).Int("of", attempts).Dur("wait", wait).
			Msg("telegram send failed")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait *= 2
	}
}
