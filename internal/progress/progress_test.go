package progress

import (
	"testing"
	"time"

	"github.com/mmeshcher/gastosmart-system/internal/model"
	"github.com/mmeshcher/gastosmart-system/internal/money"
)

func TestDeriveStatus(t *testing.T) {
	today := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	future := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	past := time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		current    model.GoalStatus
		pct        float64
		targetDate time.Time
		want       model.GoalStatus
	}{
		{
			name:       "active stays active",
			current:    model.GoalStatusActive,
			pct:        50,
			targetDate: future,
			want:       model.GoalStatusActive,
		},
		{
			name:       "full progress completes",
			current:    model.GoalStatusActive,
			pct:        100,
			targetDate: future,
			want:       model.GoalStatusCompleted,
		},
		{
			name:       "full progress completes even past deadline",
			current:    model.GoalStatusActive,
			pct:        100,
			targetDate: past,
			want:       model.GoalStatusCompleted,
		},
		{
			name:       "active past deadline fails",
			current:    model.GoalStatusActive,
			pct:        50,
			targetDate: past,
			want:       model.GoalStatusFailed,
		},
		{
			name:       "deadline today is not expired",
			current:    model.GoalStatusActive,
			pct:        50,
			targetDate: time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
			want:       model.GoalStatusActive,
		},
		{
			name:       "completed is terminal",
			current:    model.GoalStatusCompleted,
			pct:        50,
			targetDate: past,
			want:       model.GoalStatusCompleted,
		},
		{
			name:       "failed stays failed below full progress",
			current:    model.GoalStatusFailed,
			pct:        50,
			targetDate: past,
			want:       model.GoalStatusFailed,
		},
		{
			name:       "failed completes at full progress",
			current:    model.GoalStatusFailed,
			pct:        100,
			targetDate: past,
			want:       model.GoalStatusCompleted,
		},
		{
			name:       "archived never changes past deadline",
			current:    model.GoalStatusArchived,
			pct:        50,
			targetDate: past,
			want:       model.GoalStatusArchived,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatus(tt.current, tt.pct, tt.targetDate, today)
			if got != tt.want {
				t.Fatalf("DeriveStatus(%s, %v) = %s, want %s", tt.current, tt.pct, got, tt.want)
			}
		})
	}
}

func TestPercentage(t *testing.T) {
	if got := Percentage(money.FromInt(250000), money.FromInt(1000000)); got != 25 {
		t.Fatalf("Percentage = %v, want 25", got)
	}
	if got := Percentage(money.FromInt(0), money.FromInt(0)); got != 0 {
		t.Fatalf("Percentage with zero target = %v, want 0", got)
	}
}
