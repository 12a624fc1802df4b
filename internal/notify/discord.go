package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"pd-shop-api/internal/model"
)

// DiscordNotifier posts completed purchases to a Discord webhook.
// Notification is strictly best effort: the shop never waits on it and a
// failure never affects the purchase outcome.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordNotifier creates a webhook notifier. An empty URL yields a
// disabled notifier whose PurchaseCompleted is a no-op.
func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *DiscordNotifier) Enabled() bool {
	return n.webhookURL != ""
}

// PurchaseCompleted posts a one-line purchase summary to the webhook.
func (n *DiscordNotifier) PurchaseCompleted(ctx context.Context, activity model.ShopActivity) error {
	if !n.Enabled() {
		return nil
	}

	content := fmt.Sprintf("%s just bought %s with %s %s",
		activity.UserID, activity.ItemInfo, activity.Amount, activity.CurrencyType)

	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}
	return nil
}
