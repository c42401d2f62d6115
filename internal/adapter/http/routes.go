package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quizmasterhq/quizmaster/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router.
// idem may be nil when the idempotency store is unavailable; enqueue
// endpoints then run without replay protection.
func MountRoutes(r chi.Router, h *Handlers, idem func(http.Handler) http.Handler) {
	if idem == nil {
		idem = middleware.Passthrough
	}

	r.Get("/healthz", h.Healthz)

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Subjects
		r.Get("/subjects", h.ListSubjects)
		r.Post("/subjects", h.CreateSubject)
		r.Get("/subjects/{id}", h.GetSubject)
		r.Put("/subjects/{id}", h.UpdateSubject)
		r.Delete("/subjects/{id}", h.DeleteSubject)

		// Chapters (nested under subjects)
		r.Get("/subjects/{id}/chapters", h.ListChapters)
		r.Post("/subjects/{id}/chapters", h.CreateChapter)

		// Chapters (direct access)
		r.Get("/chapters/{id}", h.GetChapter)
		r.Put("/chapters/{id}", h.UpdateChapter)
		r.Delete("/chapters/{id}", h.DeleteChapter)

		// Quizzes (nested under chapters)
		r.Get("/chapters/{id}/quizzes", h.ListQuizzes)
		r.Post("/chapters/{id}/quizzes", h.CreateQuiz)

		// Quizzes (direct access)
		r.Get("/quizzes/{id}", h.GetQuiz)
		r.Put("/quizzes/{id}", h.UpdateQuiz)
		r.Delete("/quizzes/{id}", h.DeleteQuiz)

		// Questions (nested under quizzes)
		r.Get("/quizzes/{id}/questions", h.ListQuestions)
		r.Post("/quizzes/{id}/questions", h.CreateQuestion)
		r.Put("/quizzes/{id}/questions/{questionID}", h.UpdateQuestion)
		r.Delete("/quizzes/{id}/questions/{questionID}", h.DeleteQuestion)

		// Scores
		r.Post("/scores", h.RecordScore)
		r.Get("/users/{id}/scores", h.ListUserScores)
		r.Get("/leaderboard", h.Leaderboard)

		// Async jobs
		r.With(idem).Post("/exports", h.StartExport)
		r.With(idem).Post("/jobs", h.EnqueueJob)
		r.Get("/jobs/{id}", h.GetJob)
	})
}
