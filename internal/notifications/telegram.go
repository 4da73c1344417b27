package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"evalo-backend/internal/config"
)

// SendTelegramNotification posts an ops message to the configured Telegram
// chat. Returns without error when Telegram is not configured so call sites
// can fire-and-forget.
func SendTelegramNotification(message string, cfg *config.Config) error {
	if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == "" {
		return nil
	}

	payload := map[string]string{
		"chat_id": cfg.Telegram.ChatID,
		"text":    message,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", cfg.Telegram.BotToken)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sending telegram notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}
