package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// CommandHandler answers one chat command. An empty reply sends nothing.
type CommandHandler func(command string) string

type update struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type updatesResponse struct {
	OK          bool     `json:"ok"`
	Description string   `json:"description"`
	Result      []update `json:"result"`
}

// longPollSeconds is the server-side wait of getUpdates.
const longPollSeconds = 30

// StartPolling long-polls getUpdates and feeds commands from the configured
// chat to handler. It returns when ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	client := &http.Client{Timeout: (longPollSeconds + 5) * time.Second}
	if t.Client != nil {
		client.Transport = t.Client.Transport
	}
	defer func() { log.Info().Msg("telegram polling stopped") }()

	offset := 0
	for ctx.Err() == nil {
		updates, err := t.poll(ctx, client, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("telegram poll failed")
			t.pause(ctx)
			continue
		}
		for _, u := range updates {
			offset = u.UpdateID + 1
			t.dispatch(ctx, u, handler)
		}
	}
}

func (t *TelegramNotifier) dispatch(ctx context.Context, u update, handler CommandHandler) {
	m := u.Message
	if m == nil || m.Text == "" {
		return
	}
	if from := strconv.FormatInt(m.Chat.ID, 10); t.ChatID != "" && from != t.ChatID {
		log.Warn().Str("chat_id", from).Msg("ignoring command from unknown chat")
		return
	}
	cmd := strings.TrimSpace(m.Text)
	log.Info().Str("command", cmd).Msg("command received")
	if reply := handler(cmd); reply != "" {
		if err := t.Send(ctx, reply); err != nil {
			log.Error().Err(err).Str("command", cmd).Msg("send reply")
		}
	}
}

func (t *TelegramNotifier) poll(ctx context.Context, client *http.Client, offset int) ([]update, error) {
	q := url.Values{
		"offset":  {strconv.Itoa(offset)},
		"timeout": {strconv.Itoa(longPollSeconds)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint("getUpdates")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out updatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("getUpdates: status %d: %w", resp.StatusCode, err)
	}
	if !out.OK {
		return nil, fmt.Errorf("getUpdates: status %d: %s", resp.StatusCode, out.Description)
	}
	return out.Result, nil
}

func (t *TelegramNotifier) pause(ctx context.Context) {
	d := t.PollInterval
	if d <= 0 {
		d = 5 * time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
