// Package quiz defines the quiz platform domain entities.
package quiz

import "time"

// Subject is a top-level study area containing chapters.
type Subject struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Chapter groups quizzes within a subject.
type Chapter struct {
	ID          int64     `json:"id"`
	SubjectID   int64     `json:"subject_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Quiz is a timed set of questions within a chapter.
type Quiz struct {
	ID          int64     `json:"id"`
	ChapterID   int64     `json:"chapter_id"`
	Title       string    `json:"title"`
	DurationSec int       `json:"duration_sec"`
	PassScore   float64   `json:"pass_score"`
	IsActive    bool      `json:"is_active"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Question is a single multiple-choice question.
type Question struct {
	ID            int64     `json:"id"`
	QuizID        int64     `json:"quiz_id"`
	Statement     string    `json:"statement"`
	Options       []string  `json:"options"`
	CorrectOption int       `json:"correct_option"`
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Score records one completed quiz attempt.
type Score struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	QuizID       int64     `json:"quiz_id"`
	QuizTitle    string    `json:"quiz_title,omitempty"`
	ChapterName  string    `json:"chapter_name,omitempty"`
	SubjectName  string    `json:"subject_name,omitempty"`
	Score        float64   `json:"score"`
	TimeTakenSec int       `json:"time_taken_sec"`
	Passed       bool      `json:"passed"`
	CompletedAt  time.Time `json:"completed_at"`
}

// User is a quiz taker. Authentication is handled elsewhere; the job and
// cache subsystems only need identity and contact fields.
type User struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	Username  string     `json:"username"`
	FirstName string     `json:"first_name,omitempty"`
	IsActive  bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// DisplayName returns the user's preferred salutation.
func (u User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Username
}

// CreateSubjectRequest holds the fields needed to create a subject.
type CreateSubjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateChapterRequest holds the fields needed to create a chapter.
type CreateChapterRequest struct {
	SubjectID   int64  `json:"subject_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateQuizRequest holds the fields needed to create a quiz.
type CreateQuizRequest struct {
	ChapterID   int64   `json:"chapter_id"`
	Title       string  `json:"title"`
	DurationSec int     `json:"duration_sec"`
	PassScore   float64 `json:"pass_score"`
}

// CreateQuestionRequest holds the fields needed to create a question.
type CreateQuestionRequest struct {
	QuizID        int64    `json:"quiz_id"`
	Statement     string   `json:"statement"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
}

// RecordScoreRequest holds the fields needed to record a quiz attempt.
type RecordScoreRequest struct {
	UserID       int64   `json:"user_id"`
	QuizID       int64   `json:"quiz_id"`
	Score        float64 `json:"score"`
	TimeTakenSec int     `json:"time_taken_sec"`
	Passed       bool    `json:"passed"`
}

// LeaderboardEntry is one row of the global leaderboard.
type LeaderboardEntry struct {
	UserID   int64   `json:"user_id"`
	Username string  `json:"username"`
	AvgScore float64 `json:"avg_score"`
	Attempts int     `json:"attempts"`
}
