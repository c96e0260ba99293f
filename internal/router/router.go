package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"studylog-backend/internal/handlers"
	"studylog-backend/internal/middleware"
	"studylog-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	studyHandler *handlers.StudyHandler,
	subjectHandler *handlers.SubjectHandler,
	reviewHandler *handlers.ReviewHandler,
	userHandler *handlers.UserHandler,
	jobHandler *handlers.JobHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Backfill rate limiter (5 req/min per IP); a rebuild walks the user's
	// entire session history.
	backfillLimiter := middleware.NewRateLimiter(5, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Study Recording ────
		r.Route("/study-times", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", studyHandler.Record)
			r.Get("/", studyHandler.Log)
		})

		// ──── Subjects ────
		r.Route("/subjects", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", subjectHandler.List)
			r.Post("/", subjectHandler.Create)
			r.Put("/{id}", subjectHandler.Rename)
		})

		// ──── Review Charts ────
		r.Route("/review", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/series", reviewHandler.Series)
			r.Get("/streak", reviewHandler.Streak)
			r.Get("/subjects", reviewHandler.Subjects)
		})

		// ──── User Profile ────
		r.Route("/user", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/me", userHandler.GetMe)
			r.Put("/me", userHandler.UpdateMe)
		})

		// ──── Summary Backfill ────
		r.Route("/admin", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(backfillLimiter.Middleware)
			r.Post("/backfill", jobHandler.EnqueueBackfill)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/{id}", jobHandler.GetJob)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
