package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quizmasterhq/quizmaster/internal/cachekey"
	"github.com/quizmasterhq/quizmaster/internal/domain"
	"github.com/quizmasterhq/quizmaster/internal/domain/job"
	"github.com/quizmasterhq/quizmaster/internal/domain/quiz"
	"github.com/quizmasterhq/quizmaster/internal/jobs"
	"github.com/quizmasterhq/quizmaster/internal/port/jobqueue"
	"github.com/quizmasterhq/quizmaster/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- fakes ---

type fakeStore struct {
	mu        sync.Mutex
	subjects  map[int64]quiz.Subject
	questions map[int64]quiz.Question
	nextID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subjects:  make(map[int64]quiz.Subject),
		questions: make(map[int64]quiz.Question),
		nextID:    1,
	}
}

func (s *fakeStore) ListSubjects(context.Context) ([]quiz.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]quiz.Subject, 0, len(s.subjects))
	for _, sub := range s.subjects {
		out = append(out, sub)
	}
	return out, nil
}

func (s *fakeStore) GetSubject(_ context.Context, id int64) (*quiz.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subjects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &sub, nil
}

func (s *fakeStore) CreateSubject(_ context.Context, req quiz.CreateSubjectRequest) (*quiz.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := quiz.Subject{ID: s.nextID, Name: req.Name, Description: req.Description, Version: 1, CreatedAt: time.Now()}
	s.subjects[sub.ID] = sub
	s.nextID++
	return &sub, nil
}

func (s *fakeStore) UpdateSubject(_ context.Context, sub *quiz.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[sub.ID]; !ok {
		return domain.ErrNotFound
	}
	s.subjects[sub.ID] = *sub
	return nil
}

func (s *fakeStore) DeleteSubject(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.subjects, id)
	return nil
}

func (s *fakeStore) ListChapters(context.Context, int64) ([]quiz.Chapter, error) { return nil, nil }
func (s *fakeStore) GetChapter(context.Context, int64) (*quiz.Chapter, error) {
	return nil, domain.ErrNotFound
}
func (s *fakeStore) CreateChapter(context.Context, quiz.CreateChapterRequest) (*quiz.Chapter, error) {
	return nil, domain.ErrNotFound
}
func (s *fakeStore) UpdateChapter(context.Context, *quiz.Chapter) error { return domain.ErrNotFound }
func (s *fakeStore) DeleteChapter(context.Context, int64) error         { return domain.ErrNotFound }

func (s *fakeStore) ListQuizzes(context.Context, int64) ([]quiz.Quiz, error) { return nil, nil }
func (s *fakeStore) GetQuiz(context.Context, int64) (*quiz.Quiz, error) {
	return nil, domain.ErrNotFound
}
func (s *fakeStore) CreateQuiz(context.Context, quiz.CreateQuizRequest) (*quiz.Quiz, error) {
	return nil, domain.ErrNotFound
}
func (s *fakeStore) UpdateQuiz(context.Context, *quiz.Quiz) error { return domain.ErrNotFound }
func (s *fakeStore) DeleteQuiz(context.Context, int64) error      { return domain.ErrNotFound }

func (s *fakeStore) ListQuestions(context.Context, int64) ([]quiz.Question, error) { return nil, nil }
func (s *fakeStore) CreateQuestion(context.Context, quiz.CreateQuestionRequest) (*quiz.Question, error) {
	return nil, domain.ErrNotFound
}
func (s *fakeStore) UpdateQuestion(_ context.Context, q *quiz.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[q.ID]; !ok {
		return domain.ErrNotFound
	}
	q.Version++
	s.questions[q.ID] = *q
	return nil
}
func (s *fakeStore) DeleteQuestion(context.Context, int64) error { return domain.ErrNotFound }

func (s *fakeStore) RecordScore(context.Context, quiz.RecordScoreRequest) (*quiz.Score, error) {
	return nil, domain.ErrNotFound
}
func (s *fakeStore) ListScoresByUser(context.Context, int64) ([]quiz.Score, error) { return nil, nil }
func (s *fakeStore) Leaderboard(context.Context, int) ([]quiz.LeaderboardEntry, error) {
	return nil, nil
}

func (s *fakeStore) GetUser(context.Context, int64) (*quiz.User, error) {
	return nil, domain.ErrNotFound
}
func (s *fakeStore) ListActiveUsers(context.Context) ([]quiz.User, error) { return nil, nil }
func (s *fakeStore) ListInactiveUsers(context.Context, time.Time) ([]quiz.User, error) {
	return nil, nil
}
func (s *fakeStore) ListQuizzesCreatedSince(context.Context, time.Time) ([]quiz.Quiz, error) {
	return nil, nil
}
func (s *fakeStore) ListScoresSince(context.Context, int64, time.Time) ([]quiz.Score, error) {
	return nil, nil
}
func (s *fakeStore) ListAllScoresSince(context.Context, time.Time) ([]quiz.Score, error) {
	return nil, nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache { return &memCache{entries: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *memCache) DeletePrefix(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	return n, nil
}

type memQueue struct {
	mu        sync.Mutex
	published []job.Envelope
}

func (q *memQueue) Publish(_ context.Context, env job.Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, env)
	return nil
}

func (q *memQueue) Consume(context.Context, string, jobqueue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *memQueue) Close() error { return nil }

type memResults struct {
	mu      sync.Mutex
	records map[string]job.Status
}

func newMemResults() *memResults { return &memResults{records: make(map[string]job.Status)} }

func (r *memResults) Put(_ context.Context, st job.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.records[st.ID]; ok && !cur.State.CanTransition(st.State) {
		return nil
	}
	r.records[st.ID] = st
	return nil
}

func (r *memResults) Get(_ context.Context, id string) (job.Status, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.records[id]
	return st, ok, nil
}

// --- router setup ---

func newTestRouter(t *testing.T) (*chi.Mux, *fakeStore, *memQueue) {
	t.Helper()
	log := discardLogger()

	store := newFakeStore()
	quizSvc := service.NewQuizService(store, newMemCache(), cachekey.DefaultRules(log), time.Minute, nil, log)

	registry := jobs.NewRegistry()
	registry.Register(jobs.TaskExportUserCSV, func(context.Context, map[string]string) (string, error) {
		return "", nil
	}, jobs.Options{Lane: jobs.LaneExports, SoftLimit: time.Second, HardLimit: 2 * time.Second})

	queue := &memQueue{}
	jobSvc := service.NewJobService(queue, newMemResults(), registry, nil, log)

	h := NewHandlers(quizSvc, jobSvc, log)
	r := chi.NewRouter()
	MountRoutes(r, h, nil)
	return r, store, queue
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// --- tests ---

func TestSubjectCRUD(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/subjects", quiz.CreateSubjectRequest{Name: "Math"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d, want 201: %s", rec.Code, rec.Body)
	}
	var created quiz.Subject
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created subject: %v", err)
	}
	if created.Name != "Math" || created.ID == 0 {
		t.Fatalf("unexpected created subject: %+v", created)
	}

	rec = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/subjects/%d", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: got %d, want 200", rec.Code)
	}

	rec = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/subjects/%d", created.ID), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d, want 204", rec.Code)
	}
}

func TestGetSubject_Errors(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/api/v1/subjects/999", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing subject: got %d, want 404", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/v1/subjects/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: got %d, want 400", rec.Code)
	}
}

func TestCreateSubject_ValidationError(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/subjects", quiz.CreateSubjectRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if !strings.Contains(resp.Error, "name is required") {
		t.Fatalf("error message = %q, want validation detail", resp.Error)
	}
}

func TestUpdateQuestion(t *testing.T) {
	r, store, _ := newTestRouter(t)
	store.questions[5] = quiz.Question{
		ID: 5, QuizID: 3, Statement: "old", Options: []string{"a", "b"}, CorrectOption: 0, Version: 1,
	}

	body := quiz.Question{Statement: "What is 2+2?", Options: []string{"3", "4"}, CorrectOption: 1, Version: 1}
	rec := doJSON(t, r, http.MethodPut, "/api/v1/quizzes/3/questions/5", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rec.Code, rec.Body)
	}
	var updated quiz.Question
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated question: %v", err)
	}
	if updated.ID != 5 || updated.QuizID != 3 {
		t.Fatalf("ids not taken from the URL: %+v", updated)
	}
	if updated.Statement != "What is 2+2?" {
		t.Fatalf("statement = %q, want updated text", updated.Statement)
	}
}

func TestUpdateQuestion_Errors(t *testing.T) {
	r, store, _ := newTestRouter(t)
	store.questions[5] = quiz.Question{
		ID: 5, QuizID: 3, Statement: "old", Options: []string{"a", "b"}, CorrectOption: 0, Version: 1,
	}

	rec := doJSON(t, r, http.MethodPut, "/api/v1/quizzes/3/questions/5",
		quiz.Question{Statement: "", Options: []string{"a", "b"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty statement: got %d, want 400: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, r, http.MethodPut, "/api/v1/quizzes/3/questions/99",
		quiz.Question{Statement: "s", Options: []string{"a", "b"}, CorrectOption: 0})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing question: got %d, want 404: %s", rec.Code, rec.Body)
	}
}

func TestStartExport(t *testing.T) {
	r, _, queue := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/exports", map[string]any{"user_id": 42})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("got %d, want 202: %s", rec.Code, rec.Body)
	}
	var st job.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.ID == "" || st.State != job.StatePending {
		t.Fatalf("unexpected status: %+v", st)
	}

	queue.mu.Lock()
	published := len(queue.published)
	queue.mu.Unlock()
	if published != 1 {
		t.Fatalf("published %d envelopes, want 1", published)
	}

	// The id the API just returned must be pollable immediately.
	rec = doJSON(t, r, http.MethodGet, "/api/v1/jobs/"+st.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("poll: got %d, want 200", rec.Code)
	}
	var polled job.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &polled); err != nil {
		t.Fatalf("decode polled status: %v", err)
	}
	if polled.State != job.StatePending {
		t.Fatalf("polled state = %s, want PENDING", polled.State)
	}
}

func TestStartExport_MissingUserID(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/exports", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rec.Code)
	}
}

func TestEnqueueJob_UnknownTask(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/jobs", map[string]any{"task": "nonexistent"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400: %s", rec.Code, rec.Body)
	}
}

func TestGetJob_UnknownID(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/api/v1/jobs/no-such-id", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	var st job.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.State != job.StateUnknown {
		t.Fatalf("state = %s, want UNKNOWN", st.State)
	}
	if st.Detail != job.UnknownDetail {
		t.Fatalf("detail = %q, want the expired-record hint", st.Detail)
	}
}

func TestHealthz(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
}
