package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizmasterhq/quizmaster/internal/domain"
	"github.com/quizmasterhq/quizmaster/internal/domain/quiz"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// scoreColumns joins the attempt row with the names pollers and
// exporters display, so every Score comes back denormalized.
const scoreColumns = `s.id, s.user_id, s.quiz_id, q.title, c.name, sub.name,
	 s.score, s.time_taken_sec, s.passed, s.completed_at
	 FROM scores s
	 JOIN quizzes q ON q.id = s.quiz_id
	 JOIN chapters c ON c.id = q.chapter_id
	 JOIN subjects sub ON sub.id = c.subject_id`

// --- Subjects ---

func (s *Store) ListSubjects(ctx context.Context) ([]quiz.Subject, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, version, created_at, updated_at
		 FROM subjects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []quiz.Subject
	for rows.Next() {
		sub, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

func (s *Store) GetSubject(ctx context.Context, id int64) (*quiz.Subject, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, description, version, created_at, updated_at
		 FROM subjects WHERE id = $1`, id)

	sub, err := scanSubject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get subject %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get subject %d: %w", id, err)
	}
	return &sub, nil
}

func (s *Store) CreateSubject(ctx context.Context, req quiz.CreateSubjectRequest) (*quiz.Subject, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO subjects (name, description) VALUES ($1, $2)
		 RETURNING id, name, description, version, created_at, updated_at`,
		req.Name, req.Description)

	sub, err := scanSubject(row)
	if err != nil {
		return nil, fmt.Errorf("create subject: %w", err)
	}
	return &sub, nil
}

func (s *Store) UpdateSubject(ctx context.Context, sub *quiz.Subject) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE subjects SET name = $2, description = $3, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $4`,
		sub.ID, sub.Name, sub.Description, sub.Version)
	if err != nil {
		return fmt.Errorf("update subject %d: %w", sub.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update subject %d: %w", sub.ID, domain.ErrConflict)
	}
	sub.Version++
	return nil
}

func (s *Store) DeleteSubject(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subject %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete subject %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// --- Chapters ---

func (s *Store) ListChapters(ctx context.Context, subjectID int64) ([]quiz.Chapter, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, subject_id, name, description, version, created_at, updated_at
		 FROM chapters WHERE subject_id = $1 ORDER BY name`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	var chapters []quiz.Chapter
	for rows.Next() {
		ch, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, ch)
	}
	return chapters, rows.Err()
}

func (s *Store) GetChapter(ctx context.Context, id int64) (*quiz.Chapter, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, subject_id, name, description, version, created_at, updated_at
		 FROM chapters WHERE id = $1`, id)

	ch, err := scanChapter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get chapter %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get chapter %d: %w", id, err)
	}
	return &ch, nil
}

func (s *Store) CreateChapter(ctx context.Context, req quiz.CreateChapterRequest) (*quiz.Chapter, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO chapters (subject_id, name, description) VALUES ($1, $2, $3)
		 RETURNING id, subject_id, name, description, version, created_at, updated_at`,
		req.SubjectID, req.Name, req.Description)

	ch, err := scanChapter(row)
	if err != nil {
		return nil, fmt.Errorf("create chapter: %w", err)
	}
	return &ch, nil
}

func (s *Store) UpdateChapter(ctx context.Context, ch *quiz.Chapter) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE chapters SET name = $2, description = $3, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $4`,
		ch.ID, ch.Name, ch.Description, ch.Version)
	if err != nil {
		return fmt.Errorf("update chapter %d: %w", ch.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update chapter %d: %w", ch.ID, domain.ErrConflict)
	}
	ch.Version++
	return nil
}

func (s *Store) DeleteChapter(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chapters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete chapter %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete chapter %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// --- Quizzes ---

func (s *Store) ListQuizzes(ctx context.Context, chapterID int64) ([]quiz.Quiz, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, chapter_id, title, duration_sec, pass_score, is_active, version, created_at, updated_at
		 FROM quizzes WHERE chapter_id = $1 ORDER BY title`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []quiz.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

func (s *Store) GetQuiz(ctx context.Context, id int64) (*quiz.Quiz, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, chapter_id, title, duration_sec, pass_score, is_active, version, created_at, updated_at
		 FROM quizzes WHERE id = $1`, id)

	q, err := scanQuiz(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get quiz %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get quiz %d: %w", id, err)
	}
	return &q, nil
}

func (s *Store) CreateQuiz(ctx context.Context, req quiz.CreateQuizRequest) (*quiz.Quiz, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO quizzes (chapter_id, title, duration_sec, pass_score) VALUES ($1, $2, $3, $4)
		 RETURNING id, chapter_id, title, duration_sec, pass_score, is_active, version, created_at, updated_at`,
		req.ChapterID, req.Title, req.DurationSec, req.PassScore)

	q, err := scanQuiz(row)
	if err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}
	return &q, nil
}

func (s *Store) UpdateQuiz(ctx context.Context, q *quiz.Quiz) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE quizzes SET title = $2, duration_sec = $3, pass_score = $4, is_active = $5, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $6`,
		q.ID, q.Title, q.DurationSec, q.PassScore, q.IsActive, q.Version)
	if err != nil {
		return fmt.Errorf("update quiz %d: %w", q.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update quiz %d: %w", q.ID, domain.ErrConflict)
	}
	q.Version++
	return nil
}

func (s *Store) DeleteQuiz(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete quiz %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete quiz %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// --- Questions ---

func (s *Store) ListQuestions(ctx context.Context, quizID int64) ([]quiz.Question, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, quiz_id, statement, options, correct_option, version, created_at, updated_at
		 FROM questions WHERE quiz_id = $1 ORDER BY id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []quiz.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *Store) CreateQuestion(ctx context.Context, req quiz.CreateQuestionRequest) (*quiz.Question, error) {
	optionsJSON, err := json.Marshal(req.Options)
	if err != nil {
		return nil, fmt.Errorf("marshal options: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO questions (quiz_id, statement, options, correct_option) VALUES ($1, $2, $3, $4)
		 RETURNING id, quiz_id, statement, options, correct_option, version, created_at, updated_at`,
		req.QuizID, req.Statement, optionsJSON, req.CorrectOption)

	q, err := scanQuestion(row)
	if err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return &q, nil
}

func (s *Store) UpdateQuestion(ctx context.Context, q *quiz.Question) error {
	optionsJSON, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE questions SET statement = $2, options = $3, correct_option = $4, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $5`,
		q.ID, q.Statement, optionsJSON, q.CorrectOption, q.Version)
	if err != nil {
		return fmt.Errorf("update question %d: %w", q.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update question %d: %w", q.ID, domain.ErrConflict)
	}
	q.Version++
	return nil
}

func (s *Store) DeleteQuestion(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete question %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete question %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// --- Scores ---

func (s *Store) RecordScore(ctx context.Context, req quiz.RecordScoreRequest) (*quiz.Score, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO scores (user_id, quiz_id, score, time_taken_sec, passed) VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, user_id, quiz_id, score, time_taken_sec, passed, completed_at`,
		req.UserID, req.QuizID, req.Score, req.TimeTakenSec, req.Passed)

	var sc quiz.Score
	err := row.Scan(&sc.ID, &sc.UserID, &sc.QuizID, &sc.Score, &sc.TimeTakenSec, &sc.Passed, &sc.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("record score: %w", err)
	}
	return &sc, nil
}

func (s *Store) ListScoresByUser(ctx context.Context, userID int64) ([]quiz.Score, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+scoreColumns+`
		 WHERE s.user_id = $1 ORDER BY s.completed_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list scores for user %d: %w", userID, err)
	}
	return collectScores(rows)
}

func (s *Store) ListScoresSince(ctx context.Context, userID int64, since time.Time) ([]quiz.Score, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+scoreColumns+`
		 WHERE s.user_id = $1 AND s.completed_at >= $2 ORDER BY s.completed_at DESC`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("list scores for user %d since %s: %w", userID, since, err)
	}
	return collectScores(rows)
}

func (s *Store) ListAllScoresSince(ctx context.Context, since time.Time) ([]quiz.Score, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+scoreColumns+`
		 WHERE s.completed_at >= $1 ORDER BY s.completed_at DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("list scores since %s: %w", since, err)
	}
	return collectScores(rows)
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]quiz.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT s.user_id, u.username, AVG(s.score), COUNT(*)
		 FROM scores s JOIN users u ON u.id = s.user_id
		 GROUP BY s.user_id, u.username
		 ORDER BY AVG(s.score) DESC, s.user_id
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []quiz.LeaderboardEntry
	for rows.Next() {
		var e quiz.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.AvgScore, &e.Attempts); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Users ---

func (s *Store) GetUser(ctx context.Context, id int64) (*quiz.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, email, username, first_name, is_active, last_login, created_at
		 FROM users WHERE id = $1`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get user %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

func (s *Store) ListActiveUsers(ctx context.Context) ([]quiz.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, email, username, first_name, is_active, last_login, created_at
		 FROM users WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	return collectUsers(rows)
}

func (s *Store) ListInactiveUsers(ctx context.Context, inactiveSince time.Time) ([]quiz.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, email, username, first_name, is_active, last_login, created_at
		 FROM users WHERE is_active AND last_login < $1 ORDER BY id`, inactiveSince)
	if err != nil {
		return nil, fmt.Errorf("list inactive users: %w", err)
	}
	return collectUsers(rows)
}

func (s *Store) ListQuizzesCreatedSince(ctx context.Context, since time.Time) ([]quiz.Quiz, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, chapter_id, title, duration_sec, pass_score, is_active, version, created_at, updated_at
		 FROM quizzes WHERE is_active AND created_at >= $1 ORDER BY created_at DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("list quizzes since %s: %w", since, err)
	}
	defer rows.Close()

	var quizzes []quiz.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

// --- Scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanSubject(row scannable) (quiz.Subject, error) {
	var s quiz.Subject
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func scanChapter(row scannable) (quiz.Chapter, error) {
	var c quiz.Chapter
	err := row.Scan(&c.ID, &c.SubjectID, &c.Name, &c.Description, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanQuiz(row scannable) (quiz.Quiz, error) {
	var q quiz.Quiz
	err := row.Scan(&q.ID, &q.ChapterID, &q.Title, &q.DurationSec, &q.PassScore, &q.IsActive, &q.Version, &q.CreatedAt, &q.UpdatedAt)
	return q, err
}

func scanQuestion(row scannable) (quiz.Question, error) {
	var q quiz.Question
	var optionsJSON []byte
	err := row.Scan(&q.ID, &q.QuizID, &q.Statement, &optionsJSON, &q.CorrectOption, &q.Version, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return q, err
	}
	if err := json.Unmarshal(optionsJSON, &q.Options); err != nil {
		return q, fmt.Errorf("unmarshal question options: %w", err)
	}
	return q, nil
}

func scanUser(row scannable) (quiz.User, error) {
	var u quiz.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FirstName, &u.IsActive, &u.LastLogin, &u.CreatedAt)
	return u, err
}

func collectUsers(rows pgx.Rows) ([]quiz.User, error) {
	defer rows.Close()
	var users []quiz.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func collectScores(rows pgx.Rows) ([]quiz.Score, error) {
	defer rows.Close()
	var scores []quiz.Score
	for rows.Next() {
		var sc quiz.Score
		err := rows.Scan(&sc.ID, &sc.UserID, &sc.QuizID, &sc.QuizTitle, &sc.ChapterName, &sc.SubjectName,
			&sc.Score, &sc.TimeTakenSec, &sc.Passed, &sc.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		scores = append(scores, sc)
	}
	return scores, rows.Err()
}
