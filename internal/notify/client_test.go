package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmeshcher/gastosmart-system/internal/model"
	"github.com/mmeshcher/gastosmart-system/internal/money"
)

func testGoal() *model.Goal {
	return &model.Goal{
		ID:           7,
		UserID:       1,
		Name:         "Viajes",
		TargetAmount: money.FromInt(2000000),
	}
}

func TestNotifyGoalCompleted_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/notifications/goal-completed" {
			t.Fatalf("path = %s, want /api/notifications/goal-completed", r.URL.Path)
		}

		var n GoalCompletedNotification
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if n.UserID != 1 || n.GoalID != 7 || n.GoalName != "Viajes" || n.TargetAmount != 2000000 {
			t.Fatalf("unexpected notification: %+v", n)
		}

		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.NotifyGoalCompleted(ctx, testGoal()); err != nil {
		t.Fatalf("NotifyGoalCompleted error: %v", err)
	}
}

func TestNotifyGoalCompleted_UnexpectedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.NotifyGoalCompleted(ctx, testGoal()); err == nil {
		t.Fatalf("expected error for 404 response")
	}
}

func TestNotifyGoalCompleted_NotConfigured(t *testing.T) {
	var client *Client

	if err := client.NotifyGoalCompleted(context.Background(), testGoal()); err == nil {
		t.Fatalf("expected error for unconfigured client")
	}
}
