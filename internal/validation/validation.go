// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/mmeshcher/gastosmart-system/internal/model"
	"github.com/mmeshcher/gastosmart-system/internal/money"
)

var (
	// ErrInvalidAmount возвращается для неположительной суммы.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrAmountTooLarge возвращается при превышении потолка суммы взноса.
	ErrAmountTooLarge = errors.New("amount exceeds allowed maximum")
	// ErrFutureContributionDate возвращается для даты взноса в будущем.
	ErrFutureContributionDate = errors.New("contribution date cannot be in the future")
	// ErrDescriptionTooLong возвращается для слишком длинного описания.
	ErrDescriptionTooLong = errors.New("description too long")
	// ErrInvalidName возвращается для пустого или слишком длинного имени цели.
	ErrInvalidName = errors.New("goal name must be between 1 and 100 characters")
	// ErrInvalidCategory возвращается для категории вне закрытого набора.
	ErrInvalidCategory = errors.New("unknown goal category")
	// ErrInvalidTargetAmount возвращается для неположительного целевого значения.
	ErrInvalidTargetAmount = errors.New("target amount must be positive")
	// ErrInvalidCurrentAmount возвращается, если текущая сумма вне [0, target].
	ErrInvalidCurrentAmount = errors.New("current amount must be between 0 and target amount")
	// ErrTargetDateNotFuture возвращается для целевой даты не в будущем.
	ErrTargetDateNotFuture = errors.New("target date must be in the future")
)

const (
	maxContributionDescriptionLen = 200
	maxGoalNameLen                = 100
	maxGoalDescriptionLen         = 500
)

// Contribution проверяет запрос взноса до любых обращений к хранилищу.
// maxAmount — настроенный потолок суммы одного взноса.
func Contribution(c model.Contribution, maxAmount money.Money, today time.Time) error {
	if !c.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if c.Amount.Cmp(maxAmount) > 0 {
		return ErrAmountTooLarge
	}
	if utf8.RuneCountInString(c.Description) > maxContributionDescriptionLen {
		return ErrDescriptionTooLong
	}
	if !c.ContributionDate.IsZero() {
		endOfToday := time.Date(today.Year(), today.Month(), today.Day(), 23, 59, 59, 0, today.Location())
		if c.ContributionDate.After(endOfToday) {
			return ErrFutureContributionDate
		}
	}
	return nil
}

// GoalCreate проверяет данные новой цели.
func GoalCreate(g model.Goal, today time.Time) error {
	nameLen := utf8.RuneCountInString(g.Name)
	if nameLen < 1 || nameLen > maxGoalNameLen {
		return ErrInvalidName
	}
	if utf8.RuneCountInString(g.Description) > maxGoalDescriptionLen {
		return ErrDescriptionTooLong
	}
	if !model.ValidGoalCategory(g.Category) {
		return ErrInvalidCategory
	}
	if !g.TargetAmount.IsPositive() {
		return ErrInvalidTargetAmount
	}
	if g.CurrentAmount < 0 || g.CurrentAmount.Cmp(g.TargetAmount) > 0 {
		return ErrInvalidCurrentAmount
	}
	startOfToday := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	if !g.TargetDate.After(startOfToday) {
		return ErrTargetDateNotFuture
	}
	return nil
}
