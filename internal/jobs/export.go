package jobs

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/quizmasterhq/quizmaster/internal/domain/quiz"
	"github.com/quizmasterhq/quizmaster/internal/port/database"
	"github.com/quizmasterhq/quizmaster/internal/port/notifier"
)

// Notifications is the slice of the notification dispatcher the task
// handlers need. Delivery is best-effort: the boolean reports whether
// the message went out, and a false never fails the job.
type Notifications interface {
	SendEmail(ctx context.Context, email notifier.Email) bool
	Announce(ctx context.Context, text, source string) bool
}

var csvHeader = []string{
	"Quiz Title", "Subject", "Chapter", "Score", "Time Taken (minutes)",
	"Passed", "Completed At",
}

// ExportHandler builds the export_user_csv task: it renders a user's
// full attempt history as CSV and emails it as an attachment.
func ExportHandler(store database.Store, notify Notifications) HandlerFunc {
	return func(ctx context.Context, args map[string]string) (string, error) {
		userID, err := strconv.ParseInt(args["user_id"], 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid user_id %q: %w", args["user_id"], err)
		}

		user, err := store.GetUser(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("load user %d: %w", userID, err)
		}
		scores, err := store.ListScoresByUser(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("load scores for user %d: %w", userID, err)
		}

		data, err := renderScoresCSV(scores)
		if err != nil {
			return "", fmt.Errorf("render csv: %w", err)
		}

		body := fmt.Sprintf(`<h2>Quiz Results Export</h2>
<p>Hello %s,</p>
<p>Please find your quiz results attached to this email.</p>`, user.DisplayName())

		notify.SendEmail(ctx, notifier.Email{
			To:       user.Email,
			Subject:  "Your Quiz Results Export",
			HTMLBody: body,
			Attachment: &notifier.Attachment{
				Filename:    "quiz_results.csv",
				ContentType: "text/csv",
				Data:        data,
			},
		})
		notify.Announce(ctx, fmt.Sprintf("Quiz results export sent to %s", user.Email), "export.completed")

		return fmt.Sprintf("exported %d quiz attempts for user %s", len(scores), user.Email), nil
	}
}

// renderScoresCSV writes attempts in reverse-chronological order, as
// returned by the store.
func renderScoresCSV(scores []quiz.Score) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, s := range scores {
		row := []string{
			s.QuizTitle,
			s.SubjectName,
			s.ChapterName,
			fmt.Sprintf("%.1f%%", s.Score),
			fmt.Sprintf("%.1f", float64(s.TimeTakenSec)/60),
			yesNo(s.Passed),
			s.CompletedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
