package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/quizmasterhq/quizmaster/internal/domain/quiz"
	"github.com/quizmasterhq/quizmaster/internal/port/database"
	"github.com/quizmasterhq/quizmaster/internal/port/notifier"
)

// reportWindow is the activity window covered by one report.
const reportWindow = 30 * 24 * time.Hour

// reportMaxRows caps the per-user results table.
const reportMaxRows = 5

// ReportsHandler builds the generate_monthly_reports task: a per-user
// activity summary with aggregate stats and a ranking across all users
// active in the window. Users without attempts are skipped.
func ReportsHandler(store database.Store, notify Notifications) HandlerFunc {
	return func(ctx context.Context, args map[string]string) (string, error) {
		since := time.Now().UTC().Add(-reportWindow)

		users, err := store.ListActiveUsers(ctx)
		if err != nil {
			return "", fmt.Errorf("load active users: %w", err)
		}
		allScores, err := store.ListAllScoresSince(ctx, since)
		if err != nil {
			return "", fmt.Errorf("load window scores: %w", err)
		}
		ranks := rankByAverage(allScores)

		sent := 0
		for _, user := range users {
			if err := ctx.Err(); err != nil {
				return "", err
			}

			scores, err := store.ListScoresSince(ctx, user.ID, since)
			if err != nil {
				return "", fmt.Errorf("load scores for user %d: %w", user.ID, err)
			}
			if len(scores) == 0 {
				continue
			}

			notify.SendEmail(ctx, notifier.Email{
				To:       user.Email,
				Subject:  "Your Monthly Quiz Master Report",
				HTMLBody: renderReport(user, scores, ranks[user.ID]),
			})
			notify.Announce(ctx, fmt.Sprintf("Monthly report sent to %s", user.Email), "report.sent")
			sent++
		}

		return fmt.Sprintf("generated and sent reports to %d users", sent), nil
	}
}

// rankByAverage orders users by their mean score in the window. Rank 1
// is the highest average.
func rankByAverage(scores []quiz.Score) map[int64]int {
	type agg struct {
		sum float64
		n   int
	}
	byUser := make(map[int64]*agg)
	for _, s := range scores {
		a, ok := byUser[s.UserID]
		if !ok {
			a = &agg{}
			byUser[s.UserID] = a
		}
		a.sum += s.Score
		a.n++
	}

	type entry struct {
		userID int64
		avg    float64
	}
	entries := make([]entry, 0, len(byUser))
	for id, a := range byUser {
		entries = append(entries, entry{userID: id, avg: a.sum / float64(a.n)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].avg != entries[j].avg {
			return entries[i].avg > entries[j].avg
		}
		return entries[i].userID < entries[j].userID
	})

	ranks := make(map[int64]int, len(entries))
	for i, e := range entries {
		ranks[e.userID] = i + 1
	}
	return ranks
}

func renderReport(user quiz.User, scores []quiz.Score, rank int) string {
	total := len(scores)
	passed := 0
	var scoreSum float64
	var timeSum int
	for _, s := range scores {
		if s.Passed {
			passed++
		}
		scoreSum += s.Score
		timeSum += s.TimeTakenSec
	}
	avgScore := scoreSum / float64(total)
	avgMinutes := float64(timeSum) / float64(total) / 60

	var rows strings.Builder
	for i, s := range scores {
		if i == reportMaxRows {
			break
		}
		fmt.Fprintf(&rows, `<tr>
<td>%s</td>
<td>%.1f%%</td>
<td>%.1f minutes</td>
<td>%s</td>
</tr>
`, s.QuizTitle, s.Score, float64(s.TimeTakenSec)/60, passFail(s.Passed))
	}

	return fmt.Sprintf(`<h2>Monthly Activity Report</h2>
<p>Hello %s,</p>
<p>Here's your monthly activity report:</p>
<ul>
<li>Quizzes Completed: %d</li>
<li>Quizzes Passed: %d</li>
<li>Average Score: %.1f%%</li>
<li>Average Time per Quiz: %.1f minutes</li>
<li>Your Ranking: #%d</li>
</ul>
<h3>Recent Quiz Results:</h3>
<table border="1">
<tr>
<th>Quiz</th>
<th>Score</th>
<th>Time Taken</th>
<th>Status</th>
</tr>
%s</table>`, user.DisplayName(), total, passed, avgScore, avgMinutes, rank, rows.String())
}

func passFail(b bool) string {
	if b {
		return "Passed"
	}
	return "Failed"
}
