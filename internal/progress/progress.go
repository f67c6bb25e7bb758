// Package progress содержит чистые функции пересчёта прогресса и статуса цели.
//
// Функции детерминированы и не делают I/O. После каждого изменения
// current_amount прогресс и статус пересчитываются заново целиком,
// а не корректируются инкрементально: так исключается расхождение
// производных полей с фактической суммой.
package progress

import (
	"time"

	"github.com/mmeshcher/gastosmart-system/internal/model"
	"github.com/mmeshcher/gastosmart-system/internal/money"
)

// Percentage возвращает процент прогресса в диапазоне [0, 100].
// Для target <= 0 возвращает 0.
func Percentage(current, target money.Money) float64 {
	return current.PercentOf(target)
}

// DeriveStatus вычисляет новый статус цели по текущему статусу, прогрессу
// и датам. Статус completed терминален. Статус archived выставляется только
// явным действием пользователя и здесь никогда не порождается и не снимается.
func DeriveStatus(current model.GoalStatus, progressPct float64, targetDate, today time.Time) model.GoalStatus {
	if progressPct >= 100 {
		return model.GoalStatusCompleted
	}
	if current == model.GoalStatusActive && targetDate.Before(truncateToDay(today)) {
		return model.GoalStatusFailed
	}
	return current
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
