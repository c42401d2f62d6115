package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quizmasterhq/quizmaster/internal/port/database"
	"github.com/quizmasterhq/quizmaster/internal/port/notifier"
)

// inactivityWindow is how long without a login marks a user inactive,
// and also how far back "new" quizzes reach.
const inactivityWindow = 7 * 24 * time.Hour

// RemindersHandler builds the send_daily_reminders task: it emails
// users who have not logged in recently about quizzes published since
// they left.
func RemindersHandler(store database.Store, notify Notifications) HandlerFunc {
	return func(ctx context.Context, args map[string]string) (string, error) {
		threshold := time.Now().UTC().Add(-inactivityWindow)

		newQuizzes, err := store.ListQuizzesCreatedSince(ctx, threshold)
		if err != nil {
			return "", fmt.Errorf("load new quizzes: %w", err)
		}
		if len(newQuizzes) == 0 {
			return "no new quizzes to notify about", nil
		}

		users, err := store.ListInactiveUsers(ctx, threshold)
		if err != nil {
			return "", fmt.Errorf("load inactive users: %w", err)
		}

		var list strings.Builder
		for _, q := range newQuizzes {
			fmt.Fprintf(&list, "<li>%s</li>\n", q.Title)
		}

		for _, user := range users {
			if err := ctx.Err(); err != nil {
				return "", err
			}

			body := fmt.Sprintf(`<h2>Welcome back to Quiz Master!</h2>
<p>We noticed you haven't been active lately. Here are some new quizzes you might be interested in:</p>
<ul>
%s</ul>
<p>Log in to your account to start taking these quizzes!</p>`, list.String())

			notify.SendEmail(ctx, notifier.Email{
				To:       user.Email,
				Subject:  "New Quizzes Available!",
				HTMLBody: body,
			})
			notify.Announce(ctx,
				fmt.Sprintf("Daily reminder sent to %s about %d new quizzes", user.Email, len(newQuizzes)),
				"reminder.sent")
		}

		return fmt.Sprintf("sent reminders to %d inactive users", len(users)), nil
	}
}
