// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/gastosmart-system/internal/model"
	"github.com/mmeshcher/gastosmart-system/internal/money"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrGoalNotFound возвращается, если цель не найдена или принадлежит другому пользователю.
	ErrGoalNotFound = errors.New("goal not found")
	// ErrConcurrentModification возвращается, когда условное обновление цели
	// не нашло строку с ожидаемым current_amount: параллельный взнос успел раньше.
	ErrConcurrentModification = errors.New("goal modified concurrently")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраи полезны для Serialization Failure или Deadlocks.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		// Если это не pg-ошибка, но сетевая
		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login, password_hash) VALUES ($1, $2) RETURNING id`,
		login, passwordHash,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, login)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, created_at FROM users WHERE login = $1`,
		login,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

const goalColumns = `id, user_id, name, description, category, target_amount, current_amount,
	 target_date, status, progress_percentage, currency, is_public, is_main, created_at, updated_at`

func scanGoal(row pgx.Row) (*model.Goal, error) {
	var (
		g             model.Goal
		targetAmount  int64
		currentAmount int64
		category      string
		status        string
	)
	err := row.Scan(
		&g.ID, &g.UserID, &g.Name, &g.Description, &category, &targetAmount, &currentAmount,
		&g.TargetDate, &status, &g.ProgressPercentage, &g.Currency, &g.IsPublic, &g.IsMain,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	g.Category = model.GoalCategory(category)
	g.TargetAmount = money.FromInt(targetAmount)
	g.CurrentAmount = money.FromInt(currentAmount)
	g.Status = model.GoalStatus(status)
	return &g, nil
}

// CreateGoal сохраняет новую цель и возвращает её с заполненными хранилищем полями.
func (r *PostgresRepository) CreateGoal(ctx context.Context, g *model.Goal) (*model.Goal, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO goals (user_id, name, description, category, target_amount, current_amount,
		                    target_date, status, progress_percentage, currency, is_public, is_main)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING `+goalColumns,
		g.UserID, g.Name, g.Description, string(g.Category), g.TargetAmount.Int64(), g.CurrentAmount.Int64(),
		g.TargetDate, string(g.Status), g.ProgressPercentage, g.Currency, g.IsPublic, g.IsMain,
	)

	created, err := scanGoal(row)
	if err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}
	return created, nil
}

// GetGoalByID возвращает цель по идентификатору с проверкой владельца.
func (r *PostgresRepository) GetGoalByID(ctx context.Context, goalID, userID int64) (*model.Goal, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = $1 AND user_id = $2`,
		goalID, userID,
	)

	g, err := scanGoal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGoalNotFound
		}
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

// GetMainGoal возвращает главную цель пользователя. Если данные содержат
// несколько главных целей, детерминированно выбирается первая по id.
func (r *PostgresRepository) GetMainGoal(ctx context.Context, userID int64) (*model.Goal, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE user_id = $1 AND is_main ORDER BY id LIMIT 1`,
		userID,
	)

	g, err := scanGoal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGoalNotFound
		}
		return nil, fmt.Errorf("get main goal: %w", err)
	}
	return g, nil
}

// GoalFilter задаёт необязательные фильтры выборки целей.
type GoalFilter struct {
	Status   model.GoalStatus
	Category model.GoalCategory
	Skip     int
	Limit    int
}

// GetUserGoals возвращает цели пользователя с фильтрами, от новых к старым.
func (r *PostgresRepository) GetUserGoals(ctx context.Context, userID int64, filter GoalFilter) ([]model.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE user_id = $1`
	args := []any{userID}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Skip)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select goals: %w", err)
	}
	defer rows.Close()

	var goals []model.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, *g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return goals, nil
}

// UpdateGoal сохраняет изменяемые пользователем поля цели.
func (r *PostgresRepository) UpdateGoal(ctx context.Context, g *model.Goal) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE goals
		 SET name = $3, description = $4, category = $5, target_amount = $6, current_amount = $7,
		     target_date = $8, status = $9, progress_percentage = $10, is_public = $11, is_main = $12,
		     updated_at = now()
		 WHERE id = $1 AND user_id = $2`,
		g.ID, g.UserID, g.Name, g.Description, string(g.Category), g.TargetAmount.Int64(), g.CurrentAmount.Int64(),
		g.TargetDate, string(g.Status), g.ProgressPercentage, g.IsPublic, g.IsMain,
	)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrGoalNotFound
	}
	return nil
}

// ApplyContribution выполняет условное обновление цели после взноса.
// Предикат включает ранее прочитанный current_amount: если параллельный взнос
// успел изменить сумму, обновление не находит строку и возвращается
// ErrConcurrentModification — вызывающая сторона перечитывает цель и повторяет.
func (r *PostgresRepository) ApplyContribution(
	ctx context.Context,
	goalID, userID int64,
	prevCurrent, newCurrent money.Money,
	progressPct float64,
	status model.GoalStatus,
) error {
	var cmdTag pgconn.CommandTag
	err := r.withRetry(ctx, func() error {
		var execErr error
		cmdTag, execErr = r.pool.Exec(ctx,
			`UPDATE goals
			 SET current_amount = $4, progress_percentage = $5, status = $6, updated_at = now()
			 WHERE id = $1 AND user_id = $2 AND current_amount = $3`,
			goalID, userID, prevCurrent.Int64(), newCurrent.Int64(), progressPct, string(status),
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("apply contribution: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// SetMainGoal назначает цель главной. Последовательность из двух шагов
// (снять флаг со всех, затем установить на одну) намеренно не атомарна:
// читатель в окне между шагами может увидеть ноль главных целей.
func (r *PostgresRepository) SetMainGoal(ctx context.Context, userID, goalID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE goals SET is_main = FALSE, updated_at = now() WHERE user_id = $1 AND is_main`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("clear main goals: %w", err)
	}

	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE goals SET is_main = TRUE, updated_at = now() WHERE id = $1 AND user_id = $2`,
		goalID, userID,
	)
	if err != nil {
		return fmt.Errorf("set main goal: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrGoalNotFound
	}
	return nil
}

// DeleteGoal удаляет цель пользователя.
func (r *PostgresRepository) DeleteGoal(ctx context.Context, goalID, userID int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM goals WHERE id = $1 AND user_id = $2`,
		goalID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrGoalNotFound
	}
	return nil
}

// MarkExpiredGoalsFailed переводит активные цели с прошедшей целевой датой
// в статус failed. Возвращает число обновлённых целей.
func (r *PostgresRepository) MarkExpiredGoalsFailed(ctx context.Context, today time.Time) (int64, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE goals SET status = $2, updated_at = now()
		 WHERE status = $3 AND target_date < $1::date`,
		today, string(model.GoalStatusFailed), string(model.GoalStatusActive),
	)
	if err != nil {
		return 0, fmt.Errorf("mark expired goals: %w", err)
	}
	return cmdTag.RowsAffected(), nil
}

// InsertTransaction добавляет запись в леджер транзакций.
func (r *PostgresRepository) InsertTransaction(ctx context.Context, t *model.Transaction) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO transactions (user_id, type, amount, category, description, date, currency, goal_id, goal_name)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		t.UserID, string(t.Type), t.Amount.Int64(), t.Category, t.Description, t.Date, t.Currency, t.GoalID, t.GoalName,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return id, nil
}

// GetTransactionsByUser возвращает историю транзакций пользователя, от новых к старым.
func (r *PostgresRepository) GetTransactionsByUser(ctx context.Context, userID int64, limit int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, type, amount, category, description, date, created_at, currency, goal_id, goal_name
		 FROM transactions
		 WHERE user_id = $1
		 ORDER BY date DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var res []model.Transaction
	for rows.Next() {
		var (
			t      model.Transaction
			ttype  string
			amount int64
		)
		if err := rows.Scan(&t.ID, &t.UserID, &ttype, &amount, &t.Category, &t.Description,
			&t.Date, &t.CreatedAt, &t.Currency, &t.GoalID, &t.GoalName); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = model.TransactionType(ttype)
		t.Amount = money.FromInt(amount)
		res = append(res, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetGoalStats возвращает агрегированную статистику целей пользователя.
// Средний прогресс считается как сумма по статусным группам произведений
// (средний прогресс группы * размер группы), делённая на число целей в
// статусах active/completed/failed. Архивные цели входят в числитель,
// но не в знаменатель; клиенты зависят от этого расчёта.
func (r *PostgresRepository) GetGoalStats(ctx context.Context, userID int64) (*model.GoalStats, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*),
		        COALESCE(SUM(current_amount), 0),
		        COALESCE(SUM(target_amount), 0),
		        COALESCE(AVG(progress_percentage), 0)
		 FROM goals
		 WHERE user_id = $1
		 GROUP BY status`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select goal stats: %w", err)
	}
	defer rows.Close()

	stats := &model.GoalStats{}
	var progressNumerator float64

	for rows.Next() {
		var (
			status       string
			count        int
			totalCurrent int64
			totalTarget  int64
			avgProgress  float64
		)
		if err := rows.Scan(&status, &count, &totalCurrent, &totalTarget, &avgProgress); err != nil {
			return nil, fmt.Errorf("scan goal stats: %w", err)
		}

		switch model.GoalStatus(status) {
		case model.GoalStatusActive:
			stats.ActiveGoalsCount = count
		case model.GoalStatusCompleted:
			stats.CompletedGoalsCount = count
		case model.GoalStatusFailed:
			stats.FailedGoalsCount = count
		}

		stats.TotalSaved = stats.TotalSaved.Add(money.FromInt(totalCurrent))
		stats.TotalTargetAmount = stats.TotalTargetAmount.Add(money.FromInt(totalTarget))
		progressNumerator += avgProgress * float64(count)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	stats.TotalGoalsCount = stats.ActiveGoalsCount + stats.CompletedGoalsCount + stats.FailedGoalsCount
	if stats.TotalGoalsCount > 0 {
		stats.AverageProgress = progressNumerator / float64(stats.TotalGoalsCount)
	}

	return stats, nil
}

// CategoryTrend содержит агрегат по одной категории публичных целей.
type CategoryTrend struct {
	Category        model.GoalCategory
	Count           int
	AvgTargetAmount float64
	AvgDurationDays float64
}

// GetPublicCategoryTrends возвращает агрегаты по категориям публичных целей,
// отсортированные по убыванию числа целей.
func (r *PostgresRepository) GetPublicCategoryTrends(ctx context.Context) ([]CategoryTrend, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT category, COUNT(*),
		        COALESCE(AVG(target_amount), 0),
		        COALESCE(AVG(EXTRACT(EPOCH FROM (target_date::timestamptz - created_at)) / 86400), 0)
		 FROM goals
		 WHERE is_public
		 GROUP BY category
		 ORDER BY COUNT(*) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select category trends: %w", err)
	}
	defer rows.Close()

	var res []CategoryTrend
	for rows.Next() {
		var (
			ct       CategoryTrend
			category string
		)
		if err := rows.Scan(&category, &ct.Count, &ct.AvgTargetAmount, &ct.AvgDurationDays); err != nil {
			return nil, fmt.Errorf("scan category trend: %w", err)
		}
		ct.Category = model.GoalCategory(category)
		res = append(res, ct)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MonthlyBucket содержит сумму взносов за один календарный месяц.
type MonthlyBucket struct {
	Year   int
	Month  int
	Amount money.Money
}

// GetMonthlyContributions возвращает помесячные суммы взносов пользователя
// начиная с since. Пустая категория означает все цели; иначе учитываются
// только взносы к целям указанной категории.
func (r *PostgresRepository) GetMonthlyContributions(
	ctx context.Context,
	userID int64,
	since time.Time,
	category model.GoalCategory,
) ([]MonthlyBucket, error) {
	query := `SELECT EXTRACT(YEAR FROM date)::int, EXTRACT(MONTH FROM date)::int, COALESCE(SUM(amount), 0)
	 FROM transactions
	 WHERE user_id = $1 AND type = $2 AND date >= $3`
	args := []any{userID, string(model.TransactionTypeGoalContribution), since}

	if category != "" {
		args = append(args, string(category))
		query += fmt.Sprintf(
			" AND goal_id IN (SELECT id FROM goals WHERE user_id = $1 AND category = $%d)",
			len(args),
		)
	}

	query += `
	 GROUP BY 1, 2
	 ORDER BY 1, 2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select monthly contributions: %w", err)
	}
	defer rows.Close()

	var res []MonthlyBucket
	for rows.Next() {
		var (
			b      MonthlyBucket
			amount int64
		)
		if err := rows.Scan(&b.Year, &b.Month, &amount); err != nil {
			return nil, fmt.Errorf("scan monthly bucket: %w", err)
		}
		b.Amount = money.FromInt(amount)
		res = append(res, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// DailyBucket содержит сумму взносов за один день.
type DailyBucket struct {
	Day    int
	Date   time.Time
	Amount money.Money
}

// GetDailyContributions возвращает посуточные суммы взносов к цели
// в полуинтервале [from, to).
func (r *PostgresRepository) GetDailyContributions(
	ctx context.Context,
	userID, goalID int64,
	from, to time.Time,
) ([]DailyBucket, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT EXTRACT(DAY FROM date)::int, MIN(date), COALESCE(SUM(amount), 0)
		 FROM transactions
		 WHERE user_id = $1 AND type = $2 AND goal_id = $3 AND date >= $4 AND date < $5
		 GROUP BY 1
		 ORDER BY 1`,
		userID, string(model.TransactionTypeGoalContribution), goalID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("select daily contributions: %w", err)
	}
	defer rows.Close()

	var res []DailyBucket
	for rows.Next() {
		var (
			b      DailyBucket
			amount int64
		)
		if err := rows.Scan(&b.Day, &b.Date, &amount); err != nil {
			return nil, fmt.Errorf("scan daily bucket: %w", err)
		}
		b.Amount = money.FromInt(amount)
		res = append(res, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// HasGoalsInCategory сообщает, есть ли у пользователя цели указанной категории.
func (r *PostgresRepository) HasGoalsInCategory(ctx context.Context, userID int64, category model.GoalCategory) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM goals WHERE user_id = $1 AND category = $2)`,
		userID, string(category),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check category goals: %w", err)
	}
	return exists, nil
}
