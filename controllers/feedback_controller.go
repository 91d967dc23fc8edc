package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bulletin/bboard/models"
	"github.com/bulletin/bboard/notify"
	"github.com/bulletin/bboard/utils"
)

// FeedbackController handles commenting on posts and the feedback inbox with
// its subscribe/unsubscribe actions.
type FeedbackController struct {
	db       *gorm.DB
	notifier *notify.Notifier
}

// NewFeedbackController creates a new FeedbackController instance.
func NewFeedbackController(db *gorm.DB, notifier *notify.Notifier) *FeedbackController {
	return &FeedbackController{db: db, notifier: notifier}
}

// CreateFeedback attaches a comment to a post and notifies the post author.
// A mail transport failure fails the request after the comment is stored.
func (f *FeedbackController) CreateFeedback(ctx *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "text cannot be empty")
		return
	}
	text := utils.Sanitize(strings.TrimSpace(req.Text))
	if text == "" {
		utils.Error(ctx, http.StatusBadRequest, 40041, "text cannot be empty")
		return
	}

	postID := ctx.Param("id")
	var post models.Post
	if err := f.db.Preload("User").First(&post, postID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40404, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to load post")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40115, "unauthorized")
		return
	}

	feedback := models.Feedback{
		PostID: post.ID,
		UserID: userID,
		Text:   text,
	}
	if err := f.db.Create(&feedback).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to create feedback")
		return
	}
	if err := f.db.Preload("User").First(&feedback, feedback.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to load feedback")
		return
	}

	if err := f.notifier.FeedbackCreated(&post, &post.User, &feedback); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to send notification")
		return
	}

	utils.InvalidateByPrefix(utils.PostDetailKey(postID))
	utils.Success(ctx, gin.H{"feedback": feedback})
}

// Inbox lists feedback left on the requester's own posts, oldest first,
// optionally narrowed by a post header prefix.
func (f *FeedbackController) Inbox(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40116, "unauthorized")
		return
	}
	page := parsePage(ctx.Query("page"))
	header := strings.TrimSpace(ctx.Query("header"))

	q := f.db.Model(&models.Feedback{}).
		Joins("JOIN posts ON posts.id = feedbacks.post_id").
		Where("posts.user_id = ?", userID)
	if header != "" {
		q = q.Where("posts.header LIKE ?", header+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50044, "failed to count feedback")
		return
	}

	var items []models.Feedback
	if err := q.Preload("User").Preload("Post").
		Order("feedbacks.created_at ASC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&items).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50045, "failed to list feedback")
		return
	}

	utils.Success(ctx, gin.H{
		"items":      items,
		"pagination": paginationPayload(page, total),
	})
}

// ToggleSubscription subscribes or unsubscribes the requester to one
// feedback item on their own post. The subscription row and the feedback's
// flag are written inside a single transaction so they cannot diverge.
func (f *FeedbackController) ToggleSubscription(ctx *gin.Context) {
	var req struct {
		FeedbackID uint   `json:"feedback_id" binding:"required"`
		Action     string `json:"action" binding:"required,oneof=subscribe unsubscribe"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40042, "invalid request payload")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40117, "unauthorized")
		return
	}

	var feedback models.Feedback
	if err := f.db.Preload("Post").First(&feedback, req.FeedbackID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40405, "feedback not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50046, "failed to load feedback")
		return
	}
	if feedback.Post.UserID != userID {
		utils.Error(ctx, http.StatusForbidden, 40303, "you can only manage feedback on your own posts")
		return
	}

	subscribe := req.Action == "subscribe"
	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Feedback{}).
			Where("id = ?", feedback.ID).
			Update("user_subscribed", subscribe).Error; err != nil {
			return err
		}
		if subscribe {
			sub := models.Subscription{UserID: userID, FeedbackID: feedback.ID}
			return tx.Where(models.Subscription{UserID: userID, FeedbackID: feedback.ID}).
				FirstOrCreate(&sub).Error
		}
		return tx.Where("user_id = ? AND feedback_id = ?", userID, feedback.ID).
			Delete(&models.Subscription{}).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50047, "failed to update subscription")
		return
	}

	if subscribe {
		var subscriber models.User
		if err := f.db.First(&subscriber, userID).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50048, "failed to load user")
			return
		}
		if err := f.notifier.SubscriptionCreated(&feedback.Post, &subscriber, &feedback); err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50049, "failed to send notification")
			return
		}
	}

	utils.InvalidateByPrefix(utils.PostDetailKey(strconv.Itoa(int(feedback.PostID))))
	utils.Success(ctx, gin.H{"feedback_id": feedback.ID, "subscribed": subscribe})
}
