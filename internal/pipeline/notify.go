package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// TrainingNotifier hands a finished, validated table off to the
// downstream training trigger. Training itself is out of scope.
type TrainingNotifier interface {
	NotifyTableReady(ctx context.Context, tableRef, targetColumn string) error
}

// WebhookNotifier POSTs the handoff contract to a configured URL.
type WebhookNotifier struct {
	url          string
	targetColumn string
	client       *http.Client
}

func NewWebhookNotifier(url, targetColumn string) *WebhookNotifier {
	return &WebhookNotifier{
		url:          url,
		targetColumn: targetColumn,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (n *WebhookNotifier) NotifyTableReady(ctx context.Context, tableRef, targetColumn string) error {
	if targetColumn == "" {
		targetColumn = n.targetColumn
	}
	body, err := json.Marshal(map[string]string{
		"table_ref":     tableRef,
		"target_column": targetColumn,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("training webhook returned %s", resp.Status)
	}

	log.Info().Str("table", tableRef).Msg("training trigger notified")
	return nil
}
