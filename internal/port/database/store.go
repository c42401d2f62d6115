// Package database defines the primary-store port. The primary data
// store is the single source of truth; the cache and job-result store in
// front of it are disposable.
package database

import (
	"context"
	"time"

	"github.com/quizmasterhq/quizmaster/internal/domain/quiz"
)

// Store is the port interface for the relational store.
type Store interface {
	// Subjects
	ListSubjects(ctx context.Context) ([]quiz.Subject, error)
	GetSubject(ctx context.Context, id int64) (*quiz.Subject, error)
	CreateSubject(ctx context.Context, req quiz.CreateSubjectRequest) (*quiz.Subject, error)
	UpdateSubject(ctx context.Context, s *quiz.Subject) error
	DeleteSubject(ctx context.Context, id int64) error

	// Chapters
	ListChapters(ctx context.Context, subjectID int64) ([]quiz.Chapter, error)
	GetChapter(ctx context.Context, id int64) (*quiz.Chapter, error)
	CreateChapter(ctx context.Context, req quiz.CreateChapterRequest) (*quiz.Chapter, error)
	UpdateChapter(ctx context.Context, c *quiz.Chapter) error
	DeleteChapter(ctx context.Context, id int64) error

	// Quizzes
	ListQuizzes(ctx context.Context, chapterID int64) ([]quiz.Quiz, error)
	GetQuiz(ctx context.Context, id int64) (*quiz.Quiz, error)
	CreateQuiz(ctx context.Context, req quiz.CreateQuizRequest) (*quiz.Quiz, error)
	UpdateQuiz(ctx context.Context, q *quiz.Quiz) error
	DeleteQuiz(ctx context.Context, id int64) error

	// Questions
	ListQuestions(ctx context.Context, quizID int64) ([]quiz.Question, error)
	CreateQuestion(ctx context.Context, req quiz.CreateQuestionRequest) (*quiz.Question, error)
	UpdateQuestion(ctx context.Context, q *quiz.Question) error
	DeleteQuestion(ctx context.Context, id int64) error

	// Scores
	RecordScore(ctx context.Context, req quiz.RecordScoreRequest) (*quiz.Score, error)
	ListScoresByUser(ctx context.Context, userID int64) ([]quiz.Score, error)
	Leaderboard(ctx context.Context, limit int) ([]quiz.LeaderboardEntry, error)

	// Users and reporting windows, consumed by the job handlers.
	GetUser(ctx context.Context, id int64) (*quiz.User, error)
	ListActiveUsers(ctx context.Context) ([]quiz.User, error)
	ListInactiveUsers(ctx context.Context, inactiveSince time.Time) ([]quiz.User, error)
	ListQuizzesCreatedSince(ctx context.Context, since time.Time) ([]quiz.Quiz, error)
	ListScoresSince(ctx context.Context, userID int64, since time.Time) ([]quiz.Score, error)
	ListAllScoresSince(ctx context.Context, since time.Time) ([]quiz.Score, error)
}
