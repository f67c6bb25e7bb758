// Package handler содержит HTTP-обработчики API сервиса GastoSmart.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/gastosmart-system/internal/middleware"
	"github.com/mmeshcher/gastosmart-system/internal/model"
	"github.com/mmeshcher/gastosmart-system/internal/money"
	"github.com/mmeshcher/gastosmart-system/internal/repository"
	"github.com/mmeshcher/gastosmart-system/internal/service"
	"github.com/mmeshcher/gastosmart-system/internal/validation"
)

const dateLayout = "2006-01-02"

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)
	CreateGoal(ctx context.Context, userID int64, g model.Goal) (*model.Goal, error)
	GetGoal(ctx context.Context, userID, goalID int64) (*model.Goal, error)
	GetUserGoals(ctx context.Context, userID int64, filter repository.GoalFilter) ([]model.Goal, error)
	UpdateGoal(ctx context.Context, userID int64, g model.Goal) (*model.Goal, error)
	DeleteGoal(ctx context.Context, userID, goalID int64) error
	SetMainGoal(ctx context.Context, userID, goalID int64) (*model.Goal, error)
	Contribute(ctx context.Context, userID int64, selector service.GoalSelector, c model.Contribution) (*model.Goal, error)
	GetTransactionsByUser(ctx context.Context, userID int64, limit int) ([]model.Transaction, error)
	GetGoalStats(ctx context.Context, userID int64) *model.GoalStats
	GetGoalTrends(ctx context.Context) *model.GoalTrend
	GetMonthlyContributions(ctx context.Context, userID int64, months int, category model.GoalCategory) []model.MonthlyContribution
	GetMonthlySavings(ctx context.Context, userID int64, months int) []model.MonthlySavings
	GetDailyContributions(ctx context.Context, userID, goalID int64, year, month int) []model.DailyContribution
}

// Handler реализует HTTP-обработчики API сервиса GastoSmart.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

type goalRequest struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	TargetAmount  float64 `json:"target_amount"`
	CurrentAmount float64 `json:"current_amount"`
	TargetDate    string  `json:"target_date"`
	Status        string  `json:"status"`
	IsPublic      bool    `json:"is_public"`
	IsMain        bool    `json:"is_main"`
}

func (req goalRequest) toModel() (model.Goal, error) {
	targetDate, err := time.Parse(dateLayout, req.TargetDate)
	if err != nil {
		return model.Goal{}, err
	}

	return model.Goal{
		Name:          req.Name,
		Description:   req.Description,
		Category:      model.GoalCategory(req.Category),
		TargetAmount:  money.FromFloat(req.TargetAmount),
		CurrentAmount: money.FromFloat(req.CurrentAmount),
		TargetDate:    targetDate,
		Status:        model.GoalStatus(req.Status),
		IsPublic:      req.IsPublic,
		IsMain:        req.IsMain,
	}, nil
}

type goalResponse struct {
	ID                 int64   `json:"id"`
	UserID             int64   `json:"user_id"`
	Name               string  `json:"name"`
	Description        string  `json:"description,omitempty"`
	Category           string  `json:"category"`
	TargetAmount       float64 `json:"target_amount"`
	CurrentAmount      float64 `json:"current_amount"`
	TargetDate         string  `json:"target_date"`
	Status             string  `json:"status"`
	ProgressPercentage float64 `json:"progress_percentage"`
	Currency           string  `json:"currency"`
	IsPublic           bool    `json:"is_public"`
	IsMain             bool    `json:"is_main"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

func toGoalResponse(g *model.Goal) goalResponse {
	return goalResponse{
		ID:                 g.ID,
		UserID:             g.UserID,
		Name:               g.Name,
		Description:        g.Description,
		Category:           string(g.Category),
		TargetAmount:       g.TargetAmount.Float64(),
		CurrentAmount:      g.CurrentAmount.Float64(),
		TargetDate:         g.TargetDate.Format(dateLayout),
		Status:             string(g.Status),
		ProgressPercentage: g.ProgressPercentage,
		Currency:           g.Currency,
		IsPublic:           g.IsPublic,
		IsMain:             g.IsMain,
		CreatedAt:          g.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          g.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, validation.ErrInvalidAmount) ||
		errors.Is(err, validation.ErrAmountTooLarge) ||
		errors.Is(err, validation.ErrFutureContributionDate) ||
		errors.Is(err, validation.ErrDescriptionTooLong) ||
		errors.Is(err, validation.ErrInvalidName) ||
		errors.Is(err, validation.ErrInvalidCategory) ||
		errors.Is(err, validation.ErrInvalidTargetAmount) ||
		errors.Is(err, validation.ErrInvalidCurrentAmount) ||
		errors.Is(err, validation.ErrTargetDateNotFuture)
}

// CreateGoal создаёт новую цель текущего пользователя.
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	g, err := req.toModel()
	if err != nil {
		http.Error(w, "invalid target_date", http.StatusBadRequest)
		return
	}

	created, err := h.service.CreateGoal(r.Context(), userID, g)
	if err != nil {
		if isValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("create goal error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, toGoalResponse(created))
}

// GetGoals возвращает цели текущего пользователя с необязательными фильтрами.
func (h *Handler) GetGoals(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	filter := repository.GoalFilter{
		Status:   model.GoalStatus(r.URL.Query().Get("status")),
		Category: model.GoalCategory(r.URL.Query().Get("category")),
	}
	if filter.Status != "" && !model.ValidGoalStatus(filter.Status) {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}
	if filter.Category != "" && !model.ValidGoalCategory(filter.Category) {
		http.Error(w, "invalid category", http.StatusBadRequest)
		return
	}
	filter.Skip, _ = strconv.Atoi(r.URL.Query().Get("skip"))
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))

	goals, err := h.service.GetUserGoals(r.Context(), userID, filter)
	if err != nil {
		h.logger.Error("get goals error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]goalResponse, 0, len(goals))
	for i := range goals {
		resp = append(resp, toGoalResponse(&goals[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func goalIDFromURL(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "goalID"), 10, 64)
}

// GetGoal возвращает одну цель текущего пользователя.
func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	goalID, err := goalIDFromURL(r)
	if err != nil {
		http.Error(w, "invalid goal id", http.StatusBadRequest)
		return
	}

	goal, err := h.service.GetGoal(r.Context(), userID, goalID)
	if err != nil {
		if errors.Is(err, repository.ErrGoalNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get goal error", zap.Error(err), zap.Int64("goalID", goalID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, toGoalResponse(goal))
}

// UpdateGoal применяет пользовательские правки к цели.
func (h *Handler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	goalID, err := goalIDFromURL(r)
	if err != nil {
		http.Error(w, "invalid goal id", http.StatusBadRequest)
		return
	}

	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	g, err := req.toModel()
	if err != nil {
		http.Error(w, "invalid target_date", http.StatusBadRequest)
		return
	}
	g.ID = goalID

	updated, err := h.service.UpdateGoal(r.Context(), userID, g)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrGoalNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case isValidationError(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("update goal error", zap.Error(err), zap.Int64("goalID", goalID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, toGoalResponse(updated))
}

// DeleteGoal удаляет цель текущего пользователя.
func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	goalID, err := goalIDFromURL(r)
	if err != nil {
		http.Error(w, "invalid goal id", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteGoal(r.Context(), userID, goalID); err != nil {
		if errors.Is(err, repository.ErrGoalNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("delete goal error", zap.Error(err), zap.Int64("goalID", goalID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetMainGoal назначает цель главной для текущего пользователя.
func (h *Handler) SetMainGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	goalID, err := goalIDFromURL(r)
	if err != nil {
		http.Error(w, "invalid goal id", http.StatusBadRequest)
		return
	}

	goal, err := h.service.SetMainGoal(r.Context(), userID, goalID)
	if err != nil {
		if errors.Is(err, repository.ErrGoalNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("set main goal error", zap.Error(err), zap.Int64("goalID", goalID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, toGoalResponse(goal))
}

type contributionRequest struct {
	Amount           float64 `json:"amount"`
	Description      string  `json:"description"`
	ContributionDate string  `json:"contribution_date"`
}

// exceedsRemainingResponse сообщает вызывающей стороне и попытанную,
// и допустимую сумму, чтобы исправить ввод без второго запроса.
type exceedsRemainingResponse struct {
	Error           string  `json:"error"`
	AttemptedAmount float64 `json:"attempted_amount"`
	RemainingAmount float64 `json:"remaining_amount"`
}

func (h *Handler) contribute(w http.ResponseWriter, r *http.Request, selector service.GoalSelector) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req contributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	c := model.Contribution{
		Amount:      money.FromFloat(req.Amount),
		Description: req.Description,
	}
	if req.ContributionDate != "" {
		d, err := time.Parse(dateLayout, req.ContributionDate)
		if err != nil {
			http.Error(w, "invalid contribution_date", http.StatusBadRequest)
			return
		}
		c.ContributionDate = d
	}

	goal, err := h.service.Contribute(r.Context(), userID, selector, c)
	if err != nil {
		var exceeds *service.ExceedsRemainingError
		switch {
		case errors.As(err, &exceeds):
			h.writeJSON(w, http.StatusConflict, exceedsRemainingResponse{
				Error:           exceeds.Error(),
				AttemptedAmount: exceeds.Attempted.Float64(),
				RemainingAmount: exceeds.Remaining.Float64(),
			})
		case errors.Is(err, repository.ErrGoalNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrConcurrentModification):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case isValidationError(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("contribute error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, toGoalResponse(goal))
}

// ContributeToMainGoal применяет взнос к главной цели текущего пользователя.
func (h *Handler) ContributeToMainGoal(w http.ResponseWriter, r *http.Request) {
	h.contribute(w, r, service.ByMainFlag())
}

// ContributeToGoal применяет взнос к цели с указанным идентификатором.
func (h *Handler) ContributeToGoal(w http.ResponseWriter, r *http.Request) {
	goalID, err := goalIDFromURL(r)
	if err != nil {
		http.Error(w, "invalid goal id", http.StatusBadRequest)
		return
	}
	h.contribute(w, r, service.ByID(goalID))
}

// GetGoalStats возвращает статистику целей текущего пользователя.
func (h *Handler) GetGoalStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	h.writeJSON(w, http.StatusOK, h.service.GetGoalStats(r.Context(), userID))
}

// GetGoalTrends возвращает тенденции по публичным целям.
func (h *Handler) GetGoalTrends(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.GetGoalTrends(r.Context()))
}

// GetMonthlyContributions возвращает помесячные суммы взносов.
func (h *Handler) GetMonthlyContributions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	months, _ := strconv.Atoi(r.URL.Query().Get("months"))

	category := model.GoalCategory(r.URL.Query().Get("category"))
	if category != "" && !model.ValidGoalCategory(category) {
		http.Error(w, "invalid category", http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, h.service.GetMonthlyContributions(r.Context(), userID, months, category))
}

// GetMonthlySavings возвращает помесячные суммы взносов к целям категории "Ahorros".
func (h *Handler) GetMonthlySavings(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	months, _ := strconv.Atoi(r.URL.Query().Get("months"))

	h.writeJSON(w, http.StatusOK, h.service.GetMonthlySavings(r.Context(), userID, months))
}

// GetDailyContributions возвращает посуточные суммы взносов к одной цели за месяц.
func (h *Handler) GetDailyContributions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	goalID, err := goalIDFromURL(r)
	if err != nil {
		http.Error(w, "invalid goal id", http.StatusBadRequest)
		return
	}

	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	month, _ := strconv.Atoi(r.URL.Query().Get("month"))
	if month < 0 || month > 12 {
		http.Error(w, "invalid month", http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, h.service.GetDailyContributions(r.Context(), userID, goalID, year, month))
}

// GetGoalCategories возвращает закрытый список категорий целей.
func (h *Handler) GetGoalCategories(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string][]model.GoalCategory{
		"categories": model.GoalCategories(),
	})
}

type transactionResponse struct {
	ID          int64   `json:"id"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	Date        string  `json:"date"`
	Currency    string  `json:"currency"`
	GoalID      *int64  `json:"goal_id,omitempty"`
	GoalName    string  `json:"goal_name,omitempty"`
}

// GetTransactions возвращает историю транзакций текущего пользователя.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	transactions, err := h.service.GetTransactionsByUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("get transactions error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(transactions) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]transactionResponse, 0, len(transactions))
	for _, t := range transactions {
		resp = append(resp, transactionResponse{
			ID:          t.ID,
			Type:        string(t.Type),
			Amount:      t.Amount.Float64(),
			Category:    t.Category,
			Description: t.Description,
			Date:        t.Date.Format(time.RFC3339),
			Currency:    t.Currency,
			GoalID:      t.GoalID,
			GoalName:    t.GoalName,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}
