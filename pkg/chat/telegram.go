package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Telegram sends direct messages through the Bot API over plain HTTP.
type Telegram struct {
	token  string
	apiURL string
	client *http.Client
}

func NewTelegram(token, apiURL string) *Telegram {
	return &Telegram{
		token:  token,
		apiURL: apiURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *Telegram) SendDirect(ctx context.Context, chatUserID, text string) error {
	payload, _ := json.Marshal(map[string]any{
		"chat_id": chatUserID,
		"text":    text,
	})

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != 200 {
		return fmt.Errorf("telegram send: http %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var ack struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(body, &ack); err != nil || !ack.OK {
		return fmt.Errorf("telegram send: not ok: %s", bytes.TrimSpace(body))
	}
	log.Debug().Str("user", chatUserID).Int("len", len(text)).Msg("💬 sent")
	return nil
}
