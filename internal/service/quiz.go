package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/quizmasterhq/quizmaster/internal/cachekey"
	"github.com/quizmasterhq/quizmaster/internal/domain"
	"github.com/quizmasterhq/quizmaster/internal/domain/quiz"
	"github.com/quizmasterhq/quizmaster/internal/port/cache"
	"github.com/quizmasterhq/quizmaster/internal/port/database"
)

// CacheObserver receives cache lookup outcomes for metrics.
type CacheObserver interface {
	CacheHit(ctx context.Context, op string)
	CacheMiss(ctx context.Context, op string)
}

type noopCacheObserver struct{}

func (noopCacheObserver) CacheHit(context.Context, string)  {}
func (noopCacheObserver) CacheMiss(context.Context, string) {}

// QuizService is the read-through cached facade over the primary store.
// Reads consult the cache first and backfill it on a miss; writes go to
// the store and then purge every cache entry the write could have
// staled. The cache layer degrades to pass-through on failure, so every
// answer here is ultimately backed by the store.
type QuizService struct {
	store database.Store
	cache cache.Cache
	rules *cachekey.Rules
	ttl   time.Duration
	obs   CacheObserver
	log   *slog.Logger
}

// NewQuizService creates a QuizService. ttl bounds the staleness of any
// cached read.
func NewQuizService(store database.Store, c cache.Cache, rules *cachekey.Rules, ttl time.Duration, obs CacheObserver, log *slog.Logger) *QuizService {
	if obs == nil {
		obs = noopCacheObserver{}
	}
	return &QuizService{store: store, cache: c, rules: rules, ttl: ttl, obs: obs, log: log}
}

// readThrough serves op from the cache, falling back to load and
// backfilling on a miss. Cache failures surface as misses, never as
// errors.
func readThrough[T any](ctx context.Context, s *QuizService, op string, args []cachekey.Arg, load func(context.Context) (T, error)) (T, error) {
	key := string(cachekey.Derive(op, args...))

	if data, ok, _ := s.cache.Get(ctx, key); ok {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			s.obs.CacheHit(ctx, op)
			return v, nil
		}
		// Undecodable entries are treated as misses and overwritten by the
		// backfill below.
		s.log.Warn("discarding undecodable cache entry", "key", key)
	}
	s.obs.CacheMiss(ctx, op)

	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if data, err := json.Marshal(v); err == nil {
		_ = s.cache.Set(ctx, key, data, s.ttl)
	}
	return v, nil
}

// invalidate purges every cache entry the committed write could have
// staled. It runs after the store write succeeded.
func (s *QuizService) invalidate(ctx context.Context, writeOp string, ids cachekey.EntityIDs) {
	patterns := s.rules.InvalidateFor(writeOp, ids)
	cachekey.Purge(ctx, s.cache, patterns)
}

// Subjects

func (s *QuizService) ListSubjects(ctx context.Context) ([]quiz.Subject, error) {
	return readThrough(ctx, s, cachekey.OpGetSubjects, nil, s.store.ListSubjects)
}

func (s *QuizService) GetSubject(ctx context.Context, id int64) (*quiz.Subject, error) {
	return readThrough(ctx, s, cachekey.OpGetSubject, []cachekey.Arg{cachekey.Int("id", id)},
		func(ctx context.Context) (*quiz.Subject, error) {
			return s.store.GetSubject(ctx, id)
		})
}

func (s *QuizService) CreateSubject(ctx context.Context, req quiz.CreateSubjectRequest) (*quiz.Subject, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: subject name is required", domain.ErrValidation)
	}
	subject, err := s.store.CreateSubject(ctx, req)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, cachekey.OpCreateSubject, cachekey.EntityIDs{"subject_id": subject.ID})
	return subject, nil
}

func (s *QuizService) UpdateSubject(ctx context.Context, subject *quiz.Subject) error {
	if subject.Name == "" {
		return fmt.Errorf("%w: subject name is required", domain.ErrValidation)
	}
	if err := s.store.UpdateSubject(ctx, subject); err != nil {
		return err
	}
	s.invalidate(ctx, cachekey.OpUpdateSubject, cachekey.EntityIDs{"subject_id": subject.ID})
	return nil
}

func (s *QuizService) DeleteSubject(ctx context.Context, id int64) error {
	if err := s.store.DeleteSubject(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, cachekey.OpDeleteSubject, cachekey.EntityIDs{"subject_id": id})
	return nil
}

// Chapters

func (s *QuizService) ListChapters(ctx context.Context, subjectID int64) ([]quiz.Chapter, error) {
	return readThrough(ctx, s, cachekey.OpGetChapters, []cachekey.Arg{cachekey.Int("subject_id", subjectID)},
		func(ctx context.Context) ([]quiz.Chapter, error) {
			return s.store.ListChapters(ctx, subjectID)
		})
}

func (s *QuizService) GetChapter(ctx context.Context, id int64) (*quiz.Chapter, error) {
	return readThrough(ctx, s, cachekey.OpGetChapter, []cachekey.Arg{cachekey.Int("id", id)},
		func(ctx context.Context) (*quiz.Chapter, error) {
			return s.store.GetChapter(ctx, id)
		})
}

func (s *QuizService) CreateChapter(ctx context.Context, req quiz.CreateChapterRequest) (*quiz.Chapter, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: chapter name is required", domain.ErrValidation)
	}
	chapter, err := s.store.CreateChapter(ctx, req)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, cachekey.OpCreateChapter, cachekey.EntityIDs{
		"chapter_id": chapter.ID,
		"subject_id": chapter.SubjectID,
	})
	return chapter, nil
}

func (s *QuizService) UpdateChapter(ctx context.Context, chapter *quiz.Chapter) error {
	if chapter.Name == "" {
		return fmt.Errorf("%w: chapter name is required", domain.ErrValidation)
	}
	if err := s.store.UpdateChapter(ctx, chapter); err != nil {
		return err
	}
	s.invalidate(ctx, cachekey.OpUpdateChapter, cachekey.EntityIDs{
		"chapter_id": chapter.ID,
		"subject_id": chapter.SubjectID,
	})
	return nil
}

func (s *QuizService) DeleteChapter(ctx context.Context, id int64) error {
	// The rule needs the parent subject, which the delete itself no longer
	// knows. Load before deleting.
	chapter, err := s.store.GetChapter(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteChapter(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, cachekey.OpDeleteChapter, cachekey.EntityIDs{
		"chapter_id": id,
		"subject_id": chapter.SubjectID,
	})
	return nil
}

// Quizzes

func (s *QuizService) ListQuizzes(ctx context.Context, chapterID int64) ([]quiz.Quiz, error) {
	return readThrough(ctx, s, cachekey.OpGetQuizzes, []cachekey.Arg{cachekey.Int("chapter_id", chapterID)},
		func(ctx context.Context) ([]quiz.Quiz, error) {
			return s.store.ListQuizzes(ctx, chapterID)
		})
}

func (s *QuizService) GetQuiz(ctx context.Context, id int64) (*quiz.Quiz, error) {
	return readThrough(ctx, s, cachekey.OpGetQuiz, []cachekey.Arg{cachekey.Int("id", id)},
		func(ctx context.Context) (*quiz.Quiz, error) {
			return s.store.GetQuiz(ctx, id)
		})
}

func (s *QuizService) CreateQuiz(ctx context.Context, req quiz.CreateQuizRequest) (*quiz.Quiz, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("%w: quiz title is required", domain.ErrValidation)
	}
	if req.DurationSec <= 0 {
		return nil, fmt.Errorf("%w: quiz duration must be positive", domain.ErrValidation)
	}
	q, err := s.store.CreateQuiz(ctx, req)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, cachekey.OpCreateQuiz, cachekey.EntityIDs{
		"quiz_id":    q.ID,
		"chapter_id": q.ChapterID,
	})
	return q, nil
}

func (s *QuizService) UpdateQuiz(ctx context.Context, q *quiz.Quiz) error {
	if q.Title == "" {
		return fmt.Errorf("%w: quiz title is required", domain.ErrValidation)
	}
	if err := s.store.UpdateQuiz(ctx, q); err != nil {
		return err
	}
	s.invalidate(ctx, cachekey.OpUpdateQuiz, cachekey.EntityIDs{
		"quiz_id":    q.ID,
		"chapter_id": q.ChapterID,
	})
	return nil
}

func (s *QuizService) DeleteQuiz(ctx context.Context, id int64) error {
	q, err := s.store.GetQuiz(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteQuiz(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, cachekey.OpDeleteQuiz, cachekey.EntityIDs{
		"quiz_id":    id,
		"chapter_id": q.ChapterID,
	})
	return nil
}

// Questions

func (s *QuizService) ListQuestions(ctx context.Context, quizID int64) ([]quiz.Question, error) {
	return readThrough(ctx, s, cachekey.OpGetQuestions, []cachekey.Arg{cachekey.Int("quiz_id", quizID)},
		func(ctx context.Context) ([]quiz.Question, error) {
			return s.store.ListQuestions(ctx, quizID)
		})
}

func (s *QuizService) CreateQuestion(ctx context.Context, req quiz.CreateQuestionRequest) (*quiz.Question, error) {
	if req.Statement == "" {
		return nil, fmt.Errorf("%w: question statement is required", domain.ErrValidation)
	}
	if len(req.Options) < 2 {
		return nil, fmt.Errorf("%w: question needs at least two options", domain.ErrValidation)
	}
	if req.CorrectOption < 0 || req.CorrectOption >= len(req.Options) {
		return nil, fmt.Errorf("%w: correct option out of range", domain.ErrValidation)
	}
	question, err := s.store.CreateQuestion(ctx, req)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, cachekey.OpCreateQuestion, cachekey.EntityIDs{"quiz_id": question.QuizID})
	return question, nil
}

func (s *QuizService) UpdateQuestion(ctx context.Context, question *quiz.Question) error {
	if question.Statement == "" {
		return fmt.Errorf("%w: question statement is required", domain.ErrValidation)
	}
	if len(question.Options) < 2 {
		return fmt.Errorf("%w: question needs at least two options", domain.ErrValidation)
	}
	if question.CorrectOption < 0 || question.CorrectOption >= len(question.Options) {
		return fmt.Errorf("%w: correct option out of range", domain.ErrValidation)
	}
	if err := s.store.UpdateQuestion(ctx, question); err != nil {
		return err
	}
	s.invalidate(ctx, cachekey.OpUpdateQuestion, cachekey.EntityIDs{"quiz_id": question.QuizID})
	return nil
}

func (s *QuizService) DeleteQuestion(ctx context.Context, quizID, id int64) error {
	if err := s.store.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, cachekey.OpDeleteQuestion, cachekey.EntityIDs{"quiz_id": quizID})
	return nil
}

// Scores

func (s *QuizService) RecordScore(ctx context.Context, req quiz.RecordScoreRequest) (*quiz.Score, error) {
	if req.Score < 0 || req.Score > 100 {
		return nil, fmt.Errorf("%w: score must be between 0 and 100", domain.ErrValidation)
	}
	score, err := s.store.RecordScore(ctx, req)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, cachekey.OpRecordScore, cachekey.EntityIDs{
		"user_id": req.UserID,
		"quiz_id": req.QuizID,
	})
	return score, nil
}

func (s *QuizService) ListScoresByUser(ctx context.Context, userID int64) ([]quiz.Score, error) {
	return readThrough(ctx, s, cachekey.OpGetScores, []cachekey.Arg{cachekey.Int("user_id", userID)},
		func(ctx context.Context) ([]quiz.Score, error) {
			return s.store.ListScoresByUser(ctx, userID)
		})
}

func (s *QuizService) Leaderboard(ctx context.Context, limit int) ([]quiz.LeaderboardEntry, error) {
	return readThrough(ctx, s, cachekey.OpGetLeaderboard, []cachekey.Arg{cachekey.Int("limit", int64(limit))},
		func(ctx context.Context) ([]quiz.LeaderboardEntry, error) {
			return s.store.Leaderboard(ctx, limit)
		})
}
