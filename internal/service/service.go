// Package service реализует бизнес-логику сервиса GastoSmart.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/mmeshcher/gastosmart-system/internal/model"
	"github.com/mmeshcher/gastosmart-system/internal/money"
	"github.com/mmeshcher/gastosmart-system/internal/notify"
	"github.com/mmeshcher/gastosmart-system/internal/progress"
	"github.com/mmeshcher/gastosmart-system/internal/repository"
	"github.com/mmeshcher/gastosmart-system/internal/validation"
)

const (
	// contributeMaxRetries — число повторов условной записи при проигрыше гонки.
	contributeMaxRetries = 3
	contributeRetryDelay = 50 * time.Millisecond

	deadlineSweepInterval = 1 * time.Hour

	defaultRollupMonths = 6
)

// fallbackCategory подставляется в запись леджера, если у цели нет категории.
const fallbackCategory = "Meta"

// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	CreateGoal(ctx context.Context, g *model.Goal) (*model.Goal, error)
	GetGoalByID(ctx context.Context, goalID, userID int64) (*model.Goal, error)
	GetMainGoal(ctx context.Context, userID int64) (*model.Goal, error)
	GetUserGoals(ctx context.Context, userID int64, filter repository.GoalFilter) ([]model.Goal, error)
	UpdateGoal(ctx context.Context, g *model.Goal) error
	ApplyContribution(ctx context.Context, goalID, userID int64, prevCurrent, newCurrent money.Money, progressPct float64, status model.GoalStatus) error
	SetMainGoal(ctx context.Context, userID, goalID int64) error
	DeleteGoal(ctx context.Context, goalID, userID int64) error
	MarkExpiredGoalsFailed(ctx context.Context, today time.Time) (int64, error)
	InsertTransaction(ctx context.Context, t *model.Transaction) (int64, error)
	GetTransactionsByUser(ctx context.Context, userID int64, limit int) ([]model.Transaction, error)
	GetGoalStats(ctx context.Context, userID int64) (*model.GoalStats, error)
	GetPublicCategoryTrends(ctx context.Context) ([]repository.CategoryTrend, error)
	GetMonthlyContributions(ctx context.Context, userID int64, since time.Time, category model.GoalCategory) ([]repository.MonthlyBucket, error)
	GetDailyContributions(ctx context.Context, userID, goalID int64, from, to time.Time) ([]repository.DailyBucket, error)
	HasGoalsInCategory(ctx context.Context, userID int64, category model.GoalCategory) (bool, error)
}

// GoalSelector указывает цель взноса: либо главная цель пользователя,
// либо цель с конкретным идентификатором.
type GoalSelector struct {
	Main   bool
	GoalID int64
}

// ByMainFlag выбирает главную цель пользователя.
func ByMainFlag() GoalSelector {
	return GoalSelector{Main: true}
}

// ByID выбирает цель по идентификатору.
func ByID(goalID int64) GoalSelector {
	return GoalSelector{GoalID: goalID}
}

// ExceedsRemainingError возвращается, когда сумма взноса превышает остаток
// до цели. Несёт обе суммы, чтобы вызывающая сторона могла показать
// пользователю допустимый максимум без повторного запроса.
type ExceedsRemainingError struct {
	Attempted money.Money
	Remaining money.Money
}

func (e *ExceedsRemainingError) Error() string {
	return fmt.Sprintf("contribution amount (%d) exceeds remaining amount (%d)",
		e.Attempted.Int64(), e.Remaining.Int64())
}

// Service содержит бизнес-логику сервиса GastoSmart.
type Service struct {
	repo            Repository
	notifier        *notify.Client
	logger          *zap.Logger
	maxContribution money.Money
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом уведомлений.
func NewService(repo Repository, notifier *notify.Client, logger *zap.Logger, maxContribution int64) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:            repo,
		notifier:        notifier,
		logger:          logger,
		maxContribution: money.FromInt(maxContribution),
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateUser(ctx, login, hashed)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return 0, err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return 0, ErrInvalidCredentials
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// CreateGoal проверяет и сохраняет новую цель пользователя.
func (s *Service) CreateGoal(ctx context.Context, userID int64, g model.Goal) (*model.Goal, error) {
	g.UserID = userID
	if g.Currency == "" {
		g.Currency = model.Currency
	}
	g.Status = model.GoalStatusActive
	g.ProgressPercentage = progress.Percentage(g.CurrentAmount, g.TargetAmount)

	if err := validation.GoalCreate(g, time.Now()); err != nil {
		return nil, err
	}

	return s.repo.CreateGoal(ctx, &g)
}

// GetGoal возвращает цель пользователя по идентификатору.
func (s *Service) GetGoal(ctx context.Context, userID, goalID int64) (*model.Goal, error) {
	return s.repo.GetGoalByID(ctx, goalID, userID)
}

// GetUserGoals возвращает цели пользователя с фильтрами.
func (s *Service) GetUserGoals(ctx context.Context, userID int64, filter repository.GoalFilter) ([]model.Goal, error) {
	return s.repo.GetUserGoals(ctx, userID, filter)
}

// UpdateGoal применяет пользовательские правки к цели. Прогресс и статус
// после правки пересчитываются заново, а не корректируются по месту.
func (s *Service) UpdateGoal(ctx context.Context, userID int64, g model.Goal) (*model.Goal, error) {
	current, err := s.repo.GetGoalByID(ctx, g.ID, userID)
	if err != nil {
		return nil, err
	}

	current.Name = g.Name
	current.Description = g.Description
	current.Category = g.Category
	current.TargetAmount = g.TargetAmount
	current.CurrentAmount = g.CurrentAmount
	current.TargetDate = g.TargetDate
	current.IsPublic = g.IsPublic
	current.IsMain = g.IsMain
	if g.Status != "" {
		if !model.ValidGoalStatus(g.Status) {
			return nil, fmt.Errorf("invalid goal status: %s", g.Status)
		}
		current.Status = g.Status
	}

	current.ProgressPercentage = progress.Percentage(current.CurrentAmount, current.TargetAmount)
	current.Status = progress.DeriveStatus(current.Status, current.ProgressPercentage, current.TargetDate, time.Now())

	if err := s.repo.UpdateGoal(ctx, current); err != nil {
		return nil, err
	}

	return s.repo.GetGoalByID(ctx, g.ID, userID)
}

// DeleteGoal удаляет цель пользователя.
func (s *Service) DeleteGoal(ctx context.Context, userID, goalID int64) error {
	return s.repo.DeleteGoal(ctx, goalID, userID)
}

// SetMainGoal назначает цель главной и возвращает её актуальное состояние.
func (s *Service) SetMainGoal(ctx context.Context, userID, goalID int64) (*model.Goal, error) {
	if err := s.repo.SetMainGoal(ctx, userID, goalID); err != nil {
		return nil, err
	}
	return s.repo.GetGoalByID(ctx, goalID, userID)
}

// Contribute применяет взнос к цели, выбранной селектором, и возвращает
// обновлённую цель.
//
// Последовательность: валидация запроса, чтение цели, проверка остатка,
// пересчёт прогресса и статуса, условная запись с предикатом по ранее
// прочитанному current_amount. Проигравший гонку повтор перечитывает цель
// и повторяет всю последовательность ограниченное число раз. Запись в
// леджер выполняется после успешного обновления цели и не влияет на
// результат операции.
func (s *Service) Contribute(ctx context.Context, userID int64, selector GoalSelector, c model.Contribution) (*model.Goal, error) {
	if err := validation.Contribution(c, s.maxContribution, time.Now()); err != nil {
		return nil, err
	}

	var snapshot *model.Goal

	backoff := retry.WithMaxRetries(contributeMaxRetries, retry.NewConstant(contributeRetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		goal, err := s.lookupGoal(ctx, userID, selector)
		if err != nil {
			return err
		}

		remaining := goal.RemainingAmount()
		if c.Amount.Cmp(remaining) > 0 {
			return &ExceedsRemainingError{Attempted: c.Amount, Remaining: remaining}
		}

		// Повторная фиксация сверху на случай сжатия остатка между проверкой
		// и записью: условный предикат всё равно отловит гонку.
		newAmount := goal.CurrentAmount.Add(c.Amount).ClampTo(goal.TargetAmount)
		pct := progress.Percentage(newAmount, goal.TargetAmount)
		status := progress.DeriveStatus(goal.Status, pct, goal.TargetDate, time.Now())

		err = s.repo.ApplyContribution(ctx, goal.ID, goal.UserID, goal.CurrentAmount, newAmount, pct, status)
		if err != nil {
			if errors.Is(err, repository.ErrConcurrentModification) {
				return retry.RetryableError(err)
			}
			return err
		}

		snapshot = goal
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordContribution(ctx, userID, snapshot, c)

	updated, err := s.repo.GetGoalByID(ctx, snapshot.ID, userID)
	if err != nil {
		return nil, err
	}

	if updated.Status == model.GoalStatusCompleted && snapshot.Status != model.GoalStatusCompleted {
		s.notifyCompleted(ctx, updated)
	}

	return updated, nil
}

func (s *Service) lookupGoal(ctx context.Context, userID int64, selector GoalSelector) (*model.Goal, error) {
	if selector.Main {
		return s.repo.GetMainGoal(ctx, userID)
	}
	return s.repo.GetGoalByID(ctx, selector.GoalID, userID)
}

// recordContribution добавляет производную запись в леджер. Сбой записи
// логируется и проглатывается: обновление цели уже состоялось и остаётся
// авторитетным, леджер — производная проекция по принципу best-effort.
func (s *Service) recordContribution(ctx context.Context, userID int64, goal *model.Goal, c model.Contribution) {
	now := time.Now()

	date := now
	if !c.ContributionDate.IsZero() {
		d := c.ContributionDate
		date = time.Date(d.Year(), d.Month(), d.Day(), now.Hour(), now.Minute(), now.Second(), 0, now.Location())
	}

	category := string(goal.Category)
	if category == "" {
		category = fallbackCategory
	}

	description := c.Description
	if description == "" {
		description = "Abono a meta: " + goal.Name
	}

	goalID := goal.ID
	_, err := s.repo.InsertTransaction(ctx, &model.Transaction{
		UserID:      userID,
		Type:        model.TransactionTypeGoalContribution,
		Amount:      c.Amount,
		Category:    category,
		Description: description,
		Date:        date,
		Currency:    model.Currency,
		GoalID:      &goalID,
		GoalName:    goal.Name,
	})
	if err != nil {
		s.logger.Error("ledger write failed",
			zap.Error(err),
			zap.Int64("userID", userID),
			zap.Int64("goalID", goal.ID),
			zap.Int64("amount", c.Amount.Int64()),
		)
	}
}

func (s *Service) notifyCompleted(ctx context.Context, goal *model.Goal) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyGoalCompleted(ctx, goal); err != nil {
		s.logger.Warn("goal completion notification failed",
			zap.Error(err),
			zap.Int64("goalID", goal.ID),
		)
	}
}

// GetTransactionsByUser возвращает историю транзакций пользователя.
func (s *Service) GetTransactionsByUser(ctx context.Context, userID int64, limit int) ([]model.Transaction, error) {
	return s.repo.GetTransactionsByUser(ctx, userID, limit)
}

// GetGoalStats возвращает статистику целей пользователя. Сбой агрегации
// не поднимается наверх: читающий путь предпочитает доступность, поэтому
// возвращается нулевая статистика.
func (s *Service) GetGoalStats(ctx context.Context, userID int64) *model.GoalStats {
	stats, err := s.repo.GetGoalStats(ctx, userID)
	if err != nil {
		s.logger.Error("goal stats aggregation failed", zap.Error(err), zap.Int64("userID", userID))
		return &model.GoalStats{}
	}
	return stats
}

// fallbackTrend возвращается, когда публичных целей нет или агрегация не удалась.
func fallbackTrend() *model.GoalTrend {
	return &model.GoalTrend{
		MostCommonCategory:       string(model.CategoryVacation),
		AverageSavings:           money.FromInt(2000000),
		AverageSavingsTimeMonths: 8,
		PopularTrends: []string{
			string(model.CategoryVacation),
			string(model.CategoryEmergencyFund),
			string(model.CategoryEducation),
		},
	}
}

// GetGoalTrends возвращает тенденции по публичным целям всех пользователей.
func (s *Service) GetGoalTrends(ctx context.Context) *model.GoalTrend {
	rows, err := s.repo.GetPublicCategoryTrends(ctx)
	if err != nil {
		s.logger.Error("goal trends aggregation failed", zap.Error(err))
		return fallbackTrend()
	}
	if len(rows) == 0 {
		return fallbackTrend()
	}

	var sumAmount, sumDays float64
	for _, row := range rows {
		sumAmount += row.AvgTargetAmount
		sumDays += row.AvgDurationDays
	}

	popular := make([]string, 0, 3)
	for _, row := range rows {
		if len(popular) == 3 {
			break
		}
		popular = append(popular, string(row.Category))
	}

	return &model.GoalTrend{
		MostCommonCategory:       string(rows[0].Category),
		AverageSavings:           money.FromFloat(sumAmount / float64(len(rows))),
		AverageSavingsTimeMonths: int(sumDays / float64(len(rows)) / 30),
		PopularTrends:            popular,
	}
}

// rollupSince вычисляет начало окна выборки: months условных месяцев
// по 30 дней назад от текущего момента.
func rollupSince(months int) time.Time {
	if months <= 0 {
		months = defaultRollupMonths
	}
	return time.Now().AddDate(0, 0, -months*30)
}

// GetMonthlyContributions возвращает помесячные суммы взносов за окно months.
// Непустая категория ограничивает выборку целями этой категории; если таких
// целей у пользователя нет, возвращается пустой результат. Сбой агрегации
// также даёт пустой результат.
func (s *Service) GetMonthlyContributions(ctx context.Context, userID int64, months int, category model.GoalCategory) []model.MonthlyContribution {
	if category != "" {
		has, err := s.repo.HasGoalsInCategory(ctx, userID, category)
		if err != nil {
			s.logger.Error("monthly contributions aggregation failed", zap.Error(err), zap.Int64("userID", userID))
			return []model.MonthlyContribution{}
		}
		if !has {
			return []model.MonthlyContribution{}
		}
	}

	buckets, err := s.repo.GetMonthlyContributions(ctx, userID, rollupSince(months), category)
	if err != nil {
		s.logger.Error("monthly contributions aggregation failed", zap.Error(err), zap.Int64("userID", userID))
		return []model.MonthlyContribution{}
	}

	goalID := "all"
	goalName := "Todas las metas"
	if category != "" {
		goalID = "category_" + string(category)
		goalName = string(category)
	}

	res := make([]model.MonthlyContribution, 0, len(buckets))
	for _, b := range buckets {
		res = append(res, model.MonthlyContribution{
			Month:    fmt.Sprintf("%d", b.Month),
			Year:     b.Year,
			Amount:   b.Amount,
			GoalID:   goalID,
			GoalName: goalName,
		})
	}
	return res
}

// GetMonthlySavings возвращает помесячные суммы взносов к целям категории
// "Ahorros". Без таких целей результат пуст.
func (s *Service) GetMonthlySavings(ctx context.Context, userID int64, months int) []model.MonthlySavings {
	has, err := s.repo.HasGoalsInCategory(ctx, userID, model.CategorySavings)
	if err != nil {
		s.logger.Error("monthly savings aggregation failed", zap.Error(err), zap.Int64("userID", userID))
		return []model.MonthlySavings{}
	}
	if !has {
		return []model.MonthlySavings{}
	}

	buckets, err := s.repo.GetMonthlyContributions(ctx, userID, rollupSince(months), model.CategorySavings)
	if err != nil {
		s.logger.Error("monthly savings aggregation failed", zap.Error(err), zap.Int64("userID", userID))
		return []model.MonthlySavings{}
	}

	res := make([]model.MonthlySavings, 0, len(buckets))
	for _, b := range buckets {
		res = append(res, model.MonthlySavings{
			Month:    fmt.Sprintf("%d", b.Month),
			Year:     b.Year,
			Amount:   b.Amount,
			GoalID:   "all_savings",
			GoalName: string(model.CategorySavings),
		})
	}
	return res
}

// GetDailyContributions возвращает посуточные суммы взносов к цели за один
// календарный месяц. Нулевые year и month означают текущий месяц. Чужая или
// отсутствующая цель даёт пустой результат.
func (s *Service) GetDailyContributions(ctx context.Context, userID, goalID int64, year, month int) []model.DailyContribution {
	now := time.Now()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}

	goal, err := s.repo.GetGoalByID(ctx, goalID, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrGoalNotFound) {
			s.logger.Error("daily contributions aggregation failed", zap.Error(err), zap.Int64("goalID", goalID))
		}
		return []model.DailyContribution{}
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 1, 0)

	buckets, err := s.repo.GetDailyContributions(ctx, userID, goalID, from, to)
	if err != nil {
		s.logger.Error("daily contributions aggregation failed", zap.Error(err), zap.Int64("goalID", goalID))
		return []model.DailyContribution{}
	}

	res := make([]model.DailyContribution, 0, len(buckets))
	for _, b := range buckets {
		res = append(res, model.DailyContribution{
			Day:      b.Day,
			Date:     b.Date.Format("2006-01-02"),
			Amount:   b.Amount,
			GoalID:   fmt.Sprintf("%d", goalID),
			GoalName: goal.Name,
		})
	}
	return res
}

// StartDeadlineSweeps запускает фоновый процесс, переводящий просроченные
// активные цели в статус failed.
func (s *Service) StartDeadlineSweeps(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(deadlineSweepInterval)
		defer ticker.Stop()

		s.sweepDeadlines(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepDeadlines(ctx)
			}
		}
	}()
}

func (s *Service) sweepDeadlines(ctx context.Context) {
	n, err := s.repo.MarkExpiredGoalsFailed(ctx, time.Now())
	if err != nil {
		s.logger.Error("deadline sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("expired goals marked failed", zap.Int64("count", n))
	}
}
