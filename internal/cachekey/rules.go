package cachekey

import (
	"context"
	"log/slog"
	"sync"

	"github.com/quizmasterhq/quizmaster/internal/port/cache"
)

// EntityIDs carries the identifiers of the entities touched by a write
// operation, keyed by role (e.g. "subject_id", "chapter_id").
type EntityIDs map[string]int64

// RuleFunc maps the ids affected by one write operation to the cache
// patterns that must be purged.
type RuleFunc func(ids EntityIDs) []Pattern

// Rules is the static invalidation table: one entry per write operation.
// It is populated at startup and read-only afterwards.
type Rules struct {
	mu    sync.RWMutex
	rules map[string]RuleFunc
	log   *slog.Logger
}

// NewRules creates an empty invalidation table.
func NewRules(log *slog.Logger) *Rules {
	return &Rules{rules: make(map[string]RuleFunc), log: log}
}

// Register declares the invalidation rule for a write operation.
// Registering the same operation twice panics: rules are static
// configuration and a duplicate is a programming error.
func (r *Rules) Register(writeOp string, fn RuleFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rules[writeOp]; exists {
		panic("cachekey: duplicate invalidation rule for " + writeOp)
	}
	r.rules[writeOp] = fn
}

// InvalidateFor returns every pattern to purge after writeOp committed.
// A write operation without a registered rule is a configuration gap:
// it is logged and yields no patterns, never an error.
func (r *Rules) InvalidateFor(writeOp string, ids EntityIDs) []Pattern {
	r.mu.RLock()
	fn, ok := r.rules[writeOp]
	r.mu.RUnlock()

	if !ok {
		r.log.Warn("no invalidation rule registered for write operation", "op", writeOp)
		return nil
	}
	return fn(ids)
}

// Purge applies patterns against the cache store. Exact patterns map to
// Delete; prefix patterns delete the base key and every parameterized
// variant under it. Purging an already absent key is a no-op, so
// concurrent writers racing on the same entity are harmless.
func Purge(ctx context.Context, c cache.Cache, patterns []Pattern) {
	for _, p := range patterns {
		_ = c.Delete(ctx, string(p.Key))
		if p.IsPrefix {
			_, _ = c.DeletePrefix(ctx, string(p.Key)+".")
		}
	}
}

// DefaultRules returns the invalidation table for the quiz CRUD surface.
// Every cached read operation depending on an entity appears in the rule
// of every write operation mutating that entity.
func DefaultRules(log *slog.Logger) *Rules {
	r := NewRules(log)

	subjectPatterns := func(ids EntityIDs) []Pattern {
		return []Pattern{
			Exact(OpGetSubject, Int("id", ids["subject_id"])),
			Prefix(OpGetSubjects),
		}
	}
	r.Register(OpCreateSubject, subjectPatterns)
	r.Register(OpUpdateSubject, subjectPatterns)
	r.Register(OpDeleteSubject, subjectPatterns)

	chapterPatterns := func(ids EntityIDs) []Pattern {
		return []Pattern{
			Exact(OpGetChapter, Int("id", ids["chapter_id"])),
			Prefix(OpGetChapters, Int("subject_id", ids["subject_id"])),
			Exact(OpGetSubject, Int("id", ids["subject_id"])),
		}
	}
	r.Register(OpCreateChapter, chapterPatterns)
	r.Register(OpUpdateChapter, chapterPatterns)
	r.Register(OpDeleteChapter, chapterPatterns)

	quizPatterns := func(ids EntityIDs) []Pattern {
		return []Pattern{
			Exact(OpGetQuiz, Int("id", ids["quiz_id"])),
			Prefix(OpGetQuizzes, Int("chapter_id", ids["chapter_id"])),
			Exact(OpGetChapter, Int("id", ids["chapter_id"])),
		}
	}
	r.Register(OpCreateQuiz, quizPatterns)
	r.Register(OpUpdateQuiz, quizPatterns)
	r.Register(OpDeleteQuiz, quizPatterns)

	questionPatterns := func(ids EntityIDs) []Pattern {
		return []Pattern{
			Exact(OpGetQuiz, Int("id", ids["quiz_id"])),
			Prefix(OpGetQuestions, Int("quiz_id", ids["quiz_id"])),
		}
	}
	r.Register(OpCreateQuestion, questionPatterns)
	r.Register(OpUpdateQuestion, questionPatterns)
	r.Register(OpDeleteQuestion, questionPatterns)

	r.Register(OpRecordScore, func(ids EntityIDs) []Pattern {
		return []Pattern{
			Prefix(OpGetScores, Int("user_id", ids["user_id"])),
			Prefix(OpGetLeaderboard),
		}
	})

	return r
}

// Operation names shared by key derivation and the invalidation table.
// Read operations key cache entries; write operations key rules.
const (
	OpGetSubjects    = "get_subjects"
	OpGetSubject     = "get_subject"
	OpGetChapters    = "get_chapters"
	OpGetChapter     = "get_chapter"
	OpGetQuizzes     = "get_quizzes"
	OpGetQuiz        = "get_quiz"
	OpGetQuestions   = "get_questions"
	OpGetScores      = "get_scores"
	OpGetLeaderboard = "get_leaderboard"

	OpCreateSubject  = "create_subject"
	OpUpdateSubject  = "update_subject"
	OpDeleteSubject  = "delete_subject"
	OpCreateChapter  = "create_chapter"
	OpUpdateChapter  = "update_chapter"
	OpDeleteChapter  = "delete_chapter"
	OpCreateQuiz     = "create_quiz"
	OpUpdateQuiz     = "update_quiz"
	OpDeleteQuiz     = "delete_quiz"
	OpCreateQuestion = "create_question"
	OpUpdateQuestion = "update_question"
	OpDeleteQuestion = "delete_question"
	OpRecordScore    = "record_score"
)
