package validation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mmeshcher/gastosmart-system/internal/model"
	"github.com/mmeshcher/gastosmart-system/internal/money"
)

func TestContribution(t *testing.T) {
	today := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	maxAmount := money.FromInt(1000000000)

	tests := []struct {
		name string
		c    model.Contribution
		want error
	}{
		{
			name: "valid minimal",
			c:    model.Contribution{Amount: money.FromInt(1)},
			want: nil,
		},
		{
			name: "valid at ceiling",
			c:    model.Contribution{Amount: maxAmount},
			want: nil,
		},
		{
			name: "zero amount",
			c:    model.Contribution{Amount: money.FromInt(0)},
			want: ErrInvalidAmount,
		},
		{
			name: "negative amount",
			c:    model.Contribution{Amount: money.FromInt(-100)},
			want: ErrInvalidAmount,
		},
		{
			name: "above ceiling",
			c:    model.Contribution{Amount: maxAmount + 1},
			want: ErrAmountTooLarge,
		},
		{
			name: "description too long",
			c: model.Contribution{
				Amount:      money.FromInt(100),
				Description: strings.Repeat("x", 201),
			},
			want: ErrDescriptionTooLong,
		},
		{
			name: "contribution date today",
			c: model.Contribution{
				Amount:           money.FromInt(100),
				ContributionDate: time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
			},
			want: nil,
		},
		{
			name: "contribution date in past",
			c: model.Contribution{
				Amount:           money.FromInt(100),
				ContributionDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			},
			want: nil,
		},
		{
			name: "contribution date in future",
			c: model.Contribution{
				Amount:           money.FromInt(100),
				ContributionDate: time.Date(2026, 8, 16, 0, 0, 0, 0, time.UTC),
			},
			want: ErrFutureContributionDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Contribution(tt.c, maxAmount, today)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Contribution() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGoalCreate(t *testing.T) {
	today := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	valid := model.Goal{
		Name:          "Fondo de Emergencia",
		Category:      model.CategoryEmergencyFund,
		TargetAmount:  money.FromInt(1000000),
		CurrentAmount: money.FromInt(0),
		TargetDate:    time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name   string
		modify func(g *model.Goal)
		want   error
	}{
		{
			name:   "valid goal",
			modify: func(g *model.Goal) {},
			want:   nil,
		},
		{
			name:   "empty name",
			modify: func(g *model.Goal) { g.Name = "" },
			want:   ErrInvalidName,
		},
		{
			name:   "name too long",
			modify: func(g *model.Goal) { g.Name = strings.Repeat("x", 101) },
			want:   ErrInvalidName,
		},
		{
			name:   "description too long",
			modify: func(g *model.Goal) { g.Description = strings.Repeat("x", 501) },
			want:   ErrDescriptionTooLong,
		},
		{
			name:   "unknown category",
			modify: func(g *model.Goal) { g.Category = "Криптовалюта" },
			want:   ErrInvalidCategory,
		},
		{
			name:   "zero target amount",
			modify: func(g *model.Goal) { g.TargetAmount = 0 },
			want:   ErrInvalidTargetAmount,
		},
		{
			name:   "negative current amount",
			modify: func(g *model.Goal) { g.CurrentAmount = money.FromInt(-1) },
			want:   ErrInvalidCurrentAmount,
		},
		{
			name:   "current above target",
			modify: func(g *model.Goal) { g.CurrentAmount = g.TargetAmount + 1 },
			want:   ErrInvalidCurrentAmount,
		},
		{
			name:   "current equals target",
			modify: func(g *model.Goal) { g.CurrentAmount = g.TargetAmount },
			want:   nil,
		},
		{
			name:   "target date today",
			modify: func(g *model.Goal) { g.TargetDate = time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC) },
			want:   ErrTargetDateNotFuture,
		},
		{
			name:   "target date in past",
			modify: func(g *model.Goal) { g.TargetDate = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
			want:   ErrTargetDateNotFuture,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := valid
			tt.modify(&g)
			err := GoalCreate(g, today)
			if !errors.Is(err, tt.want) {
				t.Fatalf("GoalCreate() = %v, want %v", err, tt.want)
			}
		})
	}
}
