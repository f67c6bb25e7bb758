// Package notify предоставляет клиент для внешнего сервиса уведомлений.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/mmeshcher/gastosmart-system/internal/model"
)

// Client инкапсулирует HTTP-взаимодействие с сервисом уведомлений.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// GoalCompletedNotification описывает тело уведомления о достигнутой цели.
type GoalCompletedNotification struct {
	UserID       int64  `json:"user_id"`
	GoalID       int64  `json:"goal_id"`
	GoalName     string `json:"goal_name"`
	TargetAmount int64  `json:"target_amount"`
}

// NewClient создаёт HTTP-клиент для отправки уведомлений по указанному адресу.
func NewClient(baseURL string) *Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.HTTPClient.Timeout = 5 * time.Second
	c.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: c,
	}
}

// NotifyGoalCompleted отправляет уведомление о том, что цель достигнута.
func (c *Client) NotifyGoalCompleted(ctx context.Context, goal *model.Goal) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("notify client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(GoalCompletedNotification{
		UserID:       goal.UserID,
		GoalID:       goal.ID,
		GoalName:     goal.Name,
		TargetAmount: goal.TargetAmount.Int64(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	url := base + "/api/notifications/goal-completed"

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}
