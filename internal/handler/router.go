package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/gastosmart-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса GastoSmart.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})

	r.Route("/api/goals", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Post("/", h.CreateGoal)
		r.Get("/", h.GetGoals)

		r.Get("/stats", h.GetGoalStats)
		r.Get("/trends", h.GetGoalTrends)
		r.Get("/categories", h.GetGoalCategories)

		r.Get("/analytics/monthly-contributions", h.GetMonthlyContributions)
		r.Get("/analytics/monthly-savings", h.GetMonthlySavings)
		r.Get("/analytics/daily-contributions/{goalID}", h.GetDailyContributions)

		r.Post("/main/contribute", h.ContributeToMainGoal)

		r.Get("/{goalID}", h.GetGoal)
		r.Put("/{goalID}", h.UpdateGoal)
		r.Delete("/{goalID}", h.DeleteGoal)
		r.Post("/{goalID}/contribute", h.ContributeToGoal)
		r.Post("/{goalID}/main", h.SetMainGoal)
	})

	r.Route("/api/transactions", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Get("/", h.GetTransactions)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
