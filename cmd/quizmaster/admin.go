package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/quizmasterhq/quizmaster/internal/adapter/postgres"
	"github.com/quizmasterhq/quizmaster/internal/config"
	"github.com/quizmasterhq/quizmaster/internal/domain/quiz"
)

// runAdmin dispatches admin subcommands (migrate, rollback, version, seed).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "migrate":
		return runAdminMigrate(args[1:])
	case "rollback":
		return runAdminRollback(args[1:])
	case "version":
		return runAdminVersion(args[1:])
	case "seed":
		return runAdminSeed(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: quizmaster admin <command> [options]

Commands:
  migrate    Apply all pending database migrations
  rollback   Roll back migrations (--steps N, default 1)
  version    Print the current migration version
  seed       Insert demo data for local development
  help       Show this help message

Examples:
  quizmaster admin migrate
  quizmaster admin rollback --steps 2
  quizmaster admin seed
`)
}

func runAdminMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Migrations applied")
	return nil
}

func runAdminRollback(args []string) error {
	fs := flag.NewFlagSet("rollback", flag.ContinueOnError)
	steps := fs.Int("steps", 1, "number of migrations to roll back")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *steps < 1 {
		return fmt.Errorf("--steps must be at least 1")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, *steps); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Rolled back %d migration(s)\n", *steps)
	return nil
}

func runAdminVersion(args []string) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	version, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	fmt.Printf("migration version: %d\n", version)
	return nil
}

// runAdminSeed inserts a demo user, one subject with a chapter, and a
// quiz with questions. Safe to run against an empty database only.
func runAdminSeed(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO users (email, username, first_name) VALUES ($1, $2, $3) ON CONFLICT (email) DO NOTHING`,
		"student@example.com", "student", "Sam")
	if err != nil {
		return fmt.Errorf("seed user: %w", err)
	}

	store := postgres.NewStore(pool)

	subject, err := store.CreateSubject(ctx, quiz.CreateSubjectRequest{
		Name:        "Mathematics",
		Description: "Numbers, algebra and geometry",
	})
	if err != nil {
		return fmt.Errorf("seed subject: %w", err)
	}

	chapter, err := store.CreateChapter(ctx, quiz.CreateChapterRequest{
		SubjectID:   subject.ID,
		Name:        "Algebra",
		Description: "Linear equations and polynomials",
	})
	if err != nil {
		return fmt.Errorf("seed chapter: %w", err)
	}

	q, err := store.CreateQuiz(ctx, quiz.CreateQuizRequest{
		ChapterID:   chapter.ID,
		Title:       "Algebra Basics",
		DurationSec: 900,
		PassScore:   60,
	})
	if err != nil {
		return fmt.Errorf("seed quiz: %w", err)
	}

	questions := []quiz.CreateQuestionRequest{
		{
			QuizID:        q.ID,
			Statement:     "What is the value of x in 2x + 4 = 10?",
			Options:       []string{"2", "3", "4", "5"},
			CorrectOption: 1,
		},
		{
			QuizID:        q.ID,
			Statement:     "Which of these is a polynomial?",
			Options:       []string{"1/x", "x^2 + 1", "sqrt(x)", "|x|"},
			CorrectOption: 1,
		},
	}
	for _, req := range questions {
		if _, err := store.CreateQuestion(ctx, req); err != nil {
			return fmt.Errorf("seed question: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "Seeded subject %q, chapter %q, quiz %q with %d questions\n",
		subject.Name, chapter.Name, q.Title, len(questions))
	return nil
}
