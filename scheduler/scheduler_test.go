package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bulletin/bboard/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.Category{},
		&models.Post{},
		&models.Feedback{},
		&models.Subscription{},
		&models.JobExecution{},
	))
	return db
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	mu   sync.Mutex
	Sent []sentMail
	Err  error
}

func (f *fakeMailer) Send(to, subject, body string) error {
	if f.Err != nil {
		return f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func newTestScheduler(db *gorm.DB, mailer *fakeMailer, opts Options) *Scheduler {
	return New(db, mailer, zap.NewNop().Sugar(), opts)
}

func seedUser(t *testing.T, db *gorm.DB, username, email string) models.User {
	t.Helper()
	user := models.User{Username: username, Email: email}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedPost(t *testing.T, db *gorm.DB, user models.User, category models.Category, header string, createdAt time.Time) models.Post {
	t.Helper()
	post := models.Post{
		UserID:     user.ID,
		CategoryID: category.ID,
		Header:     header,
		Text:       "text",
		CreatedAt:  createdAt,
	}
	require.NoError(t, db.Create(&post).Error)
	return post
}

func TestWeeklyDigest(t *testing.T) {
	db := setupTestDB(t)
	mailer := &fakeMailer{}
	s := newTestScheduler(db, mailer, Options{BaseURL: "http://test"})

	seedUser(t, db, "root", "root@example.com")
	seedUser(t, db, "alice", "alice@example.com")
	seedUser(t, db, "bob", "bob@example.com")

	category := models.Category{Name: "news"}
	require.NoError(t, db.Create(&category).Error)
	author := models.User{Username: "author", Email: "author@example.com"}
	require.NoError(t, db.Create(&author).Error)

	weekStart := startOfISOWeek(time.Now())
	post := seedPost(t, db, author, category, "A very long header indeed", weekStart.Add(time.Hour))
	seedPost(t, db, author, category, "short", weekStart.Add(2*time.Hour))
	// Last week's post stays out of the digest
	seedPost(t, db, author, category, "stale post", weekStart.Add(-time.Hour))

	require.NoError(t, s.runWeeklyDigest())

	recipients := map[string]sentMail{}
	for _, m := range mailer.Sent {
		recipients[m.To] = m
	}
	// The first user record never receives the digest
	assert.NotContains(t, recipients, "root@example.com")
	assert.Contains(t, recipients, "alice@example.com")
	assert.Contains(t, recipients, "bob@example.com")
	assert.Contains(t, recipients, "author@example.com")

	m := recipients["alice@example.com"]
	assert.Equal(t, "Weekly posts", m.Subject)
	// Headers truncated to ten runes, each line carrying the detail link
	assert.Contains(t, m.Body, "A very lon... Link=http://test/")
	assert.Contains(t, m.Body, "short... Link=")
	assert.NotContains(t, m.Body, "stale post")
	assert.Contains(t, m.Body, post.URL("http://test"))
}

func TestWeeklyDigestNoPosts(t *testing.T) {
	db := setupTestDB(t)
	mailer := &fakeMailer{}
	s := newTestScheduler(db, mailer, Options{BaseURL: "http://test"})

	seedUser(t, db, "root", "root@example.com")
	seedUser(t, db, "alice", "alice@example.com")

	require.NoError(t, s.runWeeklyDigest())
	assert.Empty(t, mailer.Sent)
}

func TestWeeklyDigestPostLimit(t *testing.T) {
	db := setupTestDB(t)
	mailer := &fakeMailer{}
	s := newTestScheduler(db, mailer, Options{BaseURL: "http://test"})

	seedUser(t, db, "root", "root@example.com")
	seedUser(t, db, "alice", "alice@example.com")

	category := models.Category{Name: "news"}
	require.NoError(t, db.Create(&category).Error)
	author := models.User{Username: "author", Email: ""}
	require.NoError(t, db.Create(&author).Error)

	weekStart := startOfISOWeek(time.Now())
	for i := 0; i < digestPostLimit+3; i++ {
		seedPost(t, db, author, category, "header", weekStart.Add(time.Duration(i)*time.Minute))
	}

	require.NoError(t, s.runWeeklyDigest())

	var mails []sentMail
	for _, m := range mailer.Sent {
		if m.To == "alice@example.com" {
			mails = append(mails, m)
		}
	}
	require.Len(t, mails, 1)
	lines := 1
	for _, c := range mails[0].Body {
		if c == '\n' {
			lines++
		}
	}
	assert.Equal(t, digestPostLimit, lines)
}

func TestWeeklyDigestMailFailure(t *testing.T) {
	db := setupTestDB(t)
	mailer := &fakeMailer{Err: errors.New("smtp down")}
	s := newTestScheduler(db, mailer, Options{BaseURL: "http://test"})

	seedUser(t, db, "root", "root@example.com")
	seedUser(t, db, "alice", "alice@example.com")

	category := models.Category{Name: "news"}
	require.NoError(t, db.Create(&category).Error)
	author := models.User{Username: "author", Email: ""}
	require.NoError(t, db.Create(&author).Error)
	seedPost(t, db, author, category, "header", startOfISOWeek(time.Now()).Add(time.Hour))

	assert.Error(t, s.runWeeklyDigest())
}

func TestRunRecorded(t *testing.T) {
	db := setupTestDB(t)
	s := newTestScheduler(db, &fakeMailer{}, Options{})

	s.runRecorded("ok_job", func() error { return nil })
	s.runRecorded("bad_job", func() error { return errors.New("boom") })

	var ok models.JobExecution
	require.NoError(t, db.Where("job_name = ?", "ok_job").First(&ok).Error)
	assert.Equal(t, "ok", ok.Status)
	assert.Empty(t, ok.Error)

	var bad models.JobExecution
	require.NoError(t, db.Where("job_name = ?", "bad_job").First(&bad).Error)
	assert.Equal(t, "error", bad.Status)
	assert.Equal(t, "boom", bad.Error)
}

func TestCleanupJobHistory(t *testing.T) {
	db := setupTestDB(t)
	s := newTestScheduler(db, &fakeMailer{}, Options{Retention: 7 * 24 * time.Hour})

	old := models.JobExecution{JobName: "weekly_digest", StartedAt: time.Now().Add(-8 * 24 * time.Hour), Status: "ok"}
	fresh := models.JobExecution{JobName: "weekly_digest", StartedAt: time.Now().Add(-time.Hour), Status: "ok"}
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, db.Create(&fresh).Error)

	require.NoError(t, s.cleanupJobHistory())

	var remaining []models.JobExecution
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, fresh.ID, remaining[0].ID)
}

func TestStartRejectsBadCron(t *testing.T) {
	db := setupTestDB(t)
	s := newTestScheduler(db, &fakeMailer{}, Options{DigestCron: "not a cron", CleanupCron: "0 0 * * 1"})
	assert.Error(t, s.Start())
}
