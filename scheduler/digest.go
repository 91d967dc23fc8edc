package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/bulletin/bboard/models"
)

// digestPostLimit caps how many posts one digest lists.
const digestPostLimit = 7

// runWeeklyDigest mails every registered user a summary of this ISO week's
// posts. The first user record (the seed admin account) is excluded from
// the recipients.
func (s *Scheduler) runWeeklyDigest() error {
	weekStart := startOfISOWeek(time.Now())

	var posts []models.Post
	if err := s.db.Where("created_at >= ?", weekStart).
		Order("created_at ASC").
		Limit(digestPostLimit).
		Find(&posts).Error; err != nil {
		return err
	}
	if len(posts) == 0 {
		s.log.Info("weekly digest: no posts this week, nothing to send")
		return nil
	}

	var emails []string
	if err := s.db.Model(&models.User{}).
		Order("id ASC").
		Offset(1). // skip the seed admin account
		Pluck("email", &emails).Error; err != nil {
		return err
	}

	body := digestBody(posts, s.opts.BaseURL)
	for _, email := range emails {
		if email == "" {
			continue
		}
		if err := s.mailer.Send(email, "Weekly posts", body); err != nil {
			return err
		}
	}
	s.log.Infof("weekly digest sent: %d posts, %d recipients", len(posts), len(emails))
	return nil
}

// digestBody renders one line per post: truncated header plus detail link.
func digestBody(posts []models.Post, baseURL string) string {
	lines := make([]string, 0, len(posts))
	for _, p := range posts {
		lines = append(lines, fmt.Sprintf("%s... Link=%s", truncateRunes(p.Header, 10), p.URL(baseURL)))
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// startOfISOWeek returns midnight of the Monday of t's ISO week.
func startOfISOWeek(t time.Time) time.Time {
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7
	}
	day := t.AddDate(0, 0, -(wd - 1))
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, t.Location())
}
