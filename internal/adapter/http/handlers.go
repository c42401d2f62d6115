package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quizmasterhq/quizmaster/internal/domain/quiz"
	"github.com/quizmasterhq/quizmaster/internal/jobs"
	"github.com/quizmasterhq/quizmaster/internal/service"
)

const maxBodySize = 1 << 20 // 1 MB

// Handlers holds the HTTP handlers and their service dependencies.
type Handlers struct {
	quiz *service.QuizService
	jobs *service.JobService
	log  *slog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(quizSvc *service.QuizService, jobSvc *service.JobService, log *slog.Logger) *Handlers {
	return &Handlers{quiz: quizSvc, jobs: jobSvc, log: log}
}

// --- Subjects ---

func (h *Handlers) ListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.quiz.ListSubjects(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subjects)
}

func (h *Handlers) GetSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	subject, err := h.quiz.GetSubject(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "subject not found")
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

func (h *Handlers) CreateSubject(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[quiz.CreateSubjectRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	subject, err := h.quiz.CreateSubject(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "subject not found")
		return
	}
	writeJSON(w, http.StatusCreated, subject)
}

func (h *Handlers) UpdateSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	subject, ok := readJSON[quiz.Subject](w, r, maxBodySize)
	if !ok {
		return
	}
	subject.ID = id
	if err := h.quiz.UpdateSubject(r.Context(), &subject); err != nil {
		writeDomainError(w, err, "subject not found")
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

func (h *Handlers) DeleteSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.quiz.DeleteSubject(r.Context(), id); err != nil {
		writeDomainError(w, err, "subject not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Chapters ---

func (h *Handlers) ListChapters(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	chapters, err := h.quiz.ListChapters(r.Context(), subjectID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chapters)
}

func (h *Handlers) GetChapter(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	chapter, err := h.quiz.GetChapter(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "chapter not found")
		return
	}
	writeJSON(w, http.StatusOK, chapter)
}

func (h *Handlers) CreateChapter(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	req, ok := readJSON[quiz.CreateChapterRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	req.SubjectID = subjectID
	chapter, err := h.quiz.CreateChapter(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "subject not found")
		return
	}
	writeJSON(w, http.StatusCreated, chapter)
}

func (h *Handlers) UpdateChapter(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	chapter, ok := readJSON[quiz.Chapter](w, r, maxBodySize)
	if !ok {
		return
	}
	chapter.ID = id
	if err := h.quiz.UpdateChapter(r.Context(), &chapter); err != nil {
		writeDomainError(w, err, "chapter not found")
		return
	}
	writeJSON(w, http.StatusOK, chapter)
}

func (h *Handlers) DeleteChapter(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.quiz.DeleteChapter(r.Context(), id); err != nil {
		writeDomainError(w, err, "chapter not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Quizzes ---

func (h *Handlers) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	chapterID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	quizzes, err := h.quiz.ListQuizzes(r.Context(), chapterID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *Handlers) GetQuiz(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	q, err := h.quiz.GetQuiz(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "quiz not found")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handlers) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	chapterID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	req, ok := readJSON[quiz.CreateQuizRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	req.ChapterID = chapterID
	q, err := h.quiz.CreateQuiz(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "chapter not found")
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handlers) UpdateQuiz(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	q, ok := readJSON[quiz.Quiz](w, r, maxBodySize)
	if !ok {
		return
	}
	q.ID = id
	if err := h.quiz.UpdateQuiz(r.Context(), &q); err != nil {
		writeDomainError(w, err, "quiz not found")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handlers) DeleteQuiz(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.quiz.DeleteQuiz(r.Context(), id); err != nil {
		writeDomainError(w, err, "quiz not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Questions ---

func (h *Handlers) ListQuestions(w http.ResponseWriter, r *http.Request) {
	quizID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	questions, err := h.quiz.ListQuestions(r.Context(), quizID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handlers) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	quizID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	req, ok := readJSON[quiz.CreateQuestionRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	req.QuizID = quizID
	question, err := h.quiz.CreateQuestion(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "quiz not found")
		return
	}
	writeJSON(w, http.StatusCreated, question)
}

func (h *Handlers) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	quizID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	questionID, ok := idParam(w, r, "questionID")
	if !ok {
		return
	}
	question, ok := readJSON[quiz.Question](w, r, maxBodySize)
	if !ok {
		return
	}
	question.ID = questionID
	question.QuizID = quizID
	if err := h.quiz.UpdateQuestion(r.Context(), &question); err != nil {
		writeDomainError(w, err, "question not found")
		return
	}
	writeJSON(w, http.StatusOK, question)
}

func (h *Handlers) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	quizID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	questionID, ok := idParam(w, r, "questionID")
	if !ok {
		return
	}
	if err := h.quiz.DeleteQuestion(r.Context(), quizID, questionID); err != nil {
		writeDomainError(w, err, "question not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Scores ---

func (h *Handlers) RecordScore(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[quiz.RecordScoreRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	score, err := h.quiz.RecordScore(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "quiz or user not found")
		return
	}
	writeJSON(w, http.StatusCreated, score)
}

func (h *Handlers) ListUserScores(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	scores, err := h.quiz.ListScoresByUser(r.Context(), userID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

func (h *Handlers) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	entries, err := h.quiz.Leaderboard(r.Context(), limit)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Jobs ---

type exportRequest struct {
	UserID int64 `json:"user_id"`
}

// StartExport enqueues a CSV export for one user and returns 202 with
// the job record for polling.
func (h *Handlers) StartExport(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[exportRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	st, err := h.jobs.Enqueue(r.Context(), jobs.TaskExportUserCSV, map[string]string{
		"user_id": strconv.FormatInt(req.UserID, 10),
	})
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

type enqueueRequest struct {
	Task string            `json:"task"`
	Args map[string]string `json:"args"`
}

// EnqueueJob submits any registered task by name. Used by operators to
// trigger scheduled tasks out of band.
func (h *Handlers) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[enqueueRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	if req.Task == "" {
		writeError(w, http.StatusBadRequest, "task is required")
		return
	}

	st, err := h.jobs.Enqueue(r.Context(), req.Task, req.Args)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

// GetJob answers a status poll. Unknown and expired ids return a 200
// with state UNKNOWN: the poll succeeded, the answer is "gone".
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	st, err := h.jobs.Status(r.Context(), id)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Healthz reports liveness.
func (h *Handlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
