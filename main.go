package main

import (
	"time"

	"github.com/bulletin/bboard/config"
	"github.com/bulletin/bboard/models"
	"github.com/bulletin/bboard/notify"
	"github.com/bulletin/bboard/routes"
	"github.com/bulletin/bboard/scheduler"
	"github.com/bulletin/bboard/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{},
		&models.Group{},
		&models.UserPermission{},
		&models.Category{},
		&models.Post{},
		&models.Feedback{},
		&models.Subscription{},
		&models.JobExecution{},
	)

	if err := models.EnsureDefaultGroups(db); err != nil {
		utils.Sugar.Fatalf("failed to seed default groups: %v", err)
	}

	mailer := utils.SMTPMailer{}
	notifier := notify.New(mailer, cfg.SiteBaseURL, cfg.AdminEmails)

	r := routes.SetupRouter(db, notifier)

	sched := scheduler.New(db, mailer, utils.Sugar, scheduler.Options{
		DigestCron:  cfg.DigestCron,
		CleanupCron: cfg.JobCleanupCron,
		Retention:   time.Duration(cfg.JobRetentionDays) * 24 * time.Hour,
		BaseURL:     cfg.SiteBaseURL,
	})
	if err := sched.Start(); err != nil {
		utils.Sugar.Fatalf("failed to start scheduler: %v", err)
	}

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	err := utils.GraceServer(":"+cfg.AppPort, r)
	sched.Stop()
	if err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
