// Package model содержит доменные сущности сервиса GastoSmart.
package model

import (
	"time"

	"github.com/mmeshcher/gastosmart-system/internal/money"
)

// Currency — единственная валюта развёртывания.
const Currency = "COP"

// User представляет зарегистрированного пользователя сервиса.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// GoalStatus описывает статус цели накопления.
type GoalStatus string

const (
	GoalStatusActive    GoalStatus = "active"
	GoalStatusCompleted GoalStatus = "completed"
	GoalStatusFailed    GoalStatus = "failed"
	GoalStatusArchived  GoalStatus = "archived"
)

// ValidGoalStatus проверяет, что статус входит в закрытый набор значений.
func ValidGoalStatus(s GoalStatus) bool {
	switch s {
	case GoalStatusActive, GoalStatusCompleted, GoalStatusFailed, GoalStatusArchived:
		return true
	}
	return false
}

// GoalCategory описывает категорию цели накопления. Значения показываются
// пользователям как есть, поэтому они на испанском.
type GoalCategory string

const (
	CategoryEmergencyFund GoalCategory = "Fondo de Emergencia"
	CategoryVacation      GoalCategory = "Viajes"
	CategoryEducation     GoalCategory = "Educación"
	CategoryHome          GoalCategory = "Vivienda"
	CategoryVehicle       GoalCategory = "Vehículo"
	CategoryTechnology    GoalCategory = "Tecnología"
	CategoryHealth        GoalCategory = "Salud"
	CategoryWedding       GoalCategory = "Boda"
	CategoryRetirement    GoalCategory = "Jubilación"
	CategorySavings       GoalCategory = "Ahorros"
	CategoryInvestments   GoalCategory = "Inversiones"
	CategoryOther         GoalCategory = "Otros"
)

// GoalCategories возвращает полный список категорий целей.
func GoalCategories() []GoalCategory {
	return []GoalCategory{
		CategoryEmergencyFund,
		CategoryVacation,
		CategoryEducation,
		CategoryHome,
		CategoryVehicle,
		CategoryTechnology,
		CategoryHealth,
		CategoryWedding,
		CategoryRetirement,
		CategorySavings,
		CategoryInvestments,
		CategoryOther,
	}
}

// ValidGoalCategory проверяет, что категория входит в закрытый набор значений.
func ValidGoalCategory(c GoalCategory) bool {
	for _, known := range GoalCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// Goal описывает цель накопления пользователя.
type Goal struct {
	ID                 int64
	UserID             int64
	Name               string
	Description        string
	Category           GoalCategory
	TargetAmount       money.Money
	CurrentAmount      money.Money
	TargetDate         time.Time
	Status             GoalStatus
	ProgressPercentage float64
	Currency           string
	IsPublic           bool
	IsMain             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RemainingAmount возвращает остаток до достижения цели.
func (g *Goal) RemainingAmount() money.Money {
	return g.TargetAmount.Sub(g.CurrentAmount)
}

// TransactionType описывает тип записи в леджере транзакций.
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
	// TransactionTypeGoalContribution — производная запись о взносе к цели.
	TransactionTypeGoalContribution TransactionType = "goal_contribution"
)

// Transaction описывает запись финансовой операции пользователя.
// Для type = goal_contribution запись порождается процессором взносов
// и хранит денормализованный снимок имени цели на момент взноса.
type Transaction struct {
	ID          int64
	UserID      int64
	Type        TransactionType
	Amount      money.Money
	Category    string
	Description string
	Date        time.Time
	CreatedAt   time.Time
	Currency    string
	GoalID      *int64
	GoalName    string
}

// Contribution описывает запрос взноса к цели. Сам запрос не сохраняется:
// его следы — обновлённая цель и запись в леджере.
type Contribution struct {
	Amount      money.Money
	Description string
	// ContributionDate — дата взноса; нулевое значение означает "сегодня".
	ContributionDate time.Time
}

// GoalStats содержит агрегированную статистику целей пользователя.
type GoalStats struct {
	TotalSaved          money.Money `json:"total_saved"`
	ActiveGoalsCount    int         `json:"active_goals_count"`
	CompletedGoalsCount int         `json:"completed_goals_count"`
	FailedGoalsCount    int         `json:"failed_goals_count"`
	TotalGoalsCount     int         `json:"total_goals_count"`
	AverageProgress     float64     `json:"average_progress"`
	TotalTargetAmount   money.Money `json:"total_target_amount"`
}

// GoalTrend содержит тенденции по публичным целям всех пользователей.
type GoalTrend struct {
	MostCommonCategory       string      `json:"most_common_category"`
	AverageSavings           money.Money `json:"average_savings"`
	AverageSavingsTimeMonths int         `json:"average_savings_time_months"`
	PopularTrends            []string    `json:"popular_trends"`
}

// MonthlyContribution описывает сумму взносов за один календарный месяц.
type MonthlyContribution struct {
	Month    string      `json:"month"`
	Year     int         `json:"year"`
	Amount   money.Money `json:"amount"`
	GoalID   string      `json:"goal_id"`
	GoalName string      `json:"goal_name"`
}

// MonthlySavings описывает сумму взносов к целям категории "Ahorros" за месяц.
type MonthlySavings struct {
	Month    string      `json:"month"`
	Year     int         `json:"year"`
	Amount   money.Money `json:"amount"`
	GoalID   string      `json:"goal_id"`
	GoalName string      `json:"goal_name"`
}

// DailyContribution описывает сумму взносов к одной цели за один день месяца.
type DailyContribution struct {
	Day      int         `json:"day"`
	Date     string      `json:"date"`
	Amount   money.Money `json:"amount"`
	GoalID   string      `json:"goal_id"`
	GoalName string      `json:"goal_name"`
}
