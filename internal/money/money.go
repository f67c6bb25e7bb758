// Package money содержит тип денежной суммы с фиксированной точностью.
//
// Валюта развёртывания — колумбийское песо (COP), у которого в обиходе нет
// дробной части, поэтому минимальная единица равна одному песо. Вся
// арифметика над суммами целей и взносов проходит через этот тип, чтобы
// исключить накопление ошибок плавающей точки.
package money

import "math"

// Money представляет денежную сумму в целых песо.
type Money int64

// FromFloat преобразует число из JSON-запроса в сумму, округляя
// половину вверх до целого песо.
func FromFloat(v float64) Money {
	return Money(math.Floor(v + 0.5))
}

// FromInt создаёт сумму из целого количества песо.
func FromInt(v int64) Money {
	return Money(v)
}

// Int64 возвращает сумму как целое количество песо.
func (m Money) Int64() int64 {
	return int64(m)
}

// Float64 возвращает сумму как число для JSON-ответов.
func (m Money) Float64() float64 {
	return float64(m)
}

// Add возвращает сумму двух значений.
func (m Money) Add(other Money) Money {
	return m + other
}

// Sub возвращает разность двух значений.
func (m Money) Sub(other Money) Money {
	return m - other
}

// Cmp сравнивает суммы: -1 если m < other, 0 если равны, 1 если m > other.
// Сравнение точное, без допусков.
func (m Money) Cmp(other Money) int {
	switch {
	case m < other:
		return -1
	case m > other:
		return 1
	default:
		return 0
	}
}

// IsPositive сообщает, что сумма строго больше нуля.
func (m Money) IsPositive() bool {
	return m > 0
}

// ClampTo ограничивает сумму сверху значением max.
func (m Money) ClampTo(max Money) Money {
	if m > max {
		return max
	}
	return m
}

// PercentOf возвращает долю суммы m от target в процентах,
// ограниченную диапазоном [0, 100]. Для target <= 0 возвращает 0.
func (m Money) PercentOf(target Money) float64 {
	if target <= 0 {
		return 0
	}
	p := float64(m) / float64(target) * 100
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}
