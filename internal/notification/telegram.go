// Package notification delivers per-cycle trigger notifications to rule
// owners over Telegram. Best-effort: delivery failures are the caller's to
// log and swallow.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/campaign-autopilot/cap/internal/models"
)

const apiBase = "https://api.telegram.org"

// TelegramNotifier sends notifications through the Telegram Bot API
type TelegramNotifier struct {
	botToken   string
	apiBase    string
	httpClient *http.Client
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(botToken string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		apiBase:  apiBase,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewTelegramNotifierWithBase is used by tests to point at a fake API.
func NewTelegramNotifierWithBase(botToken, base string) *TelegramNotifier {
	n := NewTelegramNotifier(botToken)
	n.apiBase = base
	return n
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// Notify sends one trigger notification to the recipient's chat
func (t *TelegramNotifier) Notify(ctx context.Context, recipient string, n models.TriggerNotification) error {
	msg := sendMessageRequest{
		ChatID:    recipient,
		Text:      formatMessage(n),
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram notification failed with status: %d", resp.StatusCode)
	}

	return nil
}

func formatMessage(n models.TriggerNotification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Rule triggered: %s</b>\n", n.RuleName)
	fmt.Fprintf(&b, "Time: %s\n", n.TriggeredAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Campaigns matched: %d\n", n.CampaignCount)
	if len(n.MatchedConditions) > 0 {
		fmt.Fprintf(&b, "Conditions: %s\n", strings.Join(n.MatchedConditions, "; "))
	}
	if len(n.ActionLabels) > 0 {
		fmt.Fprintf(&b, "Actions: %s\n", strings.Join(n.ActionLabels, ", "))
	}
	if n.CustomMessage != "" {
		fmt.Fprintf(&b, "\n%s", n.CustomMessage)
	}
	return b.String()
}
