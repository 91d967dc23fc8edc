package controllers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bulletin/bboard/config"
	"github.com/bulletin/bboard/middleware"
	"github.com/bulletin/bboard/models"
	"github.com/bulletin/bboard/utils"
)

// pageSize is the fixed number of items per page on every listing.
const pageSize = 5

// PostController manages the board listing and CRUD operations for posts.
type PostController struct {
	db *gorm.DB
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB) *PostController {
	return &PostController{db: db}
}

type postRequest struct {
	Header     string `json:"header" binding:"required,max=150"`
	Text       string `json:"text" binding:"required"`
	CategoryID uint   `json:"category_id" binding:"required"`
	Image      string `json:"image" binding:"required"`
}

// validate normalizes the payload and checks the rules the form layer owns:
// non-empty header, body of at least 150 characters, existing category.
// Length is counted on the submitted text; sanitizing strips markup afterwards.
func (r *postRequest) validate(db *gorm.DB) (int, string) {
	r.Header = utils.Sanitize(strings.TrimSpace(r.Header))
	if r.Header == "" {
		return 40021, "header cannot be empty"
	}
	if utf8.RuneCountInString(r.Text) < models.MinPostTextRunes {
		return 40022, fmt.Sprintf("the text cannot be less than %d characters", models.MinPostTextRunes)
	}
	r.Text = utils.Sanitize(r.Text)
	var category models.Category
	if err := db.First(&category, r.CategoryID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 40023, "unknown category"
		}
		return 50020, "failed to load category"
	}
	return 0, ""
}

// ListPosts returns the public board: paginated posts in publication order,
// narrowed by the optional header/category/added_after filters.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page := parsePage(ctx.Query("page"))
	header := strings.TrimSpace(ctx.Query("header"))
	category := strings.TrimSpace(ctx.Query("category"))
	addedAfter := strings.TrimSpace(ctx.Query("added_after"))
	filtered := header != "" || category != "" || addedAfter != ""

	// Cache unfiltered pages only to avoid cache key explosion.
	cacheKey := utils.PostListKey(page)
	if !filtered {
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	query := applyPostFilters(p.db.Model(&models.Post{}), header, category, addedAfter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to count posts")
		return
	}

	var posts []models.Post
	if err := query.Preload("User").Preload("Category").
		Order("created_at ASC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to list posts")
		return
	}

	payload := gin.H{
		"items":      posts,
		"pagination": paginationPayload(page, total),
	}
	if !filtered {
		utils.CacheSetJSON(cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, time.Hour)
	}
	utils.Success(ctx, payload)
}

// GetPost returns one post with its feedback thread in posting order.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID := ctx.Param("id")

	if b, ok := utils.CacheGetBytes(utils.PostDetailKey(postID)); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var post models.Post
	err := p.db.Preload("User").Preload("Category").
		Preload("Feedback", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Feedback.User").
		First(&post, postID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
		return
	}

	payload := gin.H{"post": post}
	utils.CacheSetJSON(utils.PostDetailKey(postID), utils.JSONResponse{Code: 0, Message: "success", Data: payload}, time.Hour)
	utils.Success(ctx, payload)
}

// CreatePost publishes a new post authored by the requester.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	if code, msg := req.validate(p.db); code != 0 {
		status := http.StatusBadRequest
		if code >= 50000 {
			status = http.StatusInternalServerError
		}
		utils.Error(ctx, status, code, msg)
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	post := models.Post{
		UserID:     userID,
		CategoryID: req.CategoryID,
		Header:     req.Header,
		Text:       req.Text,
		Image:      req.Image,
	}
	if err := p.db.Create(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to create post")
		return
	}

	utils.InvalidateByPrefix(utils.PostListKeyPrefix)
	utils.Success(ctx, gin.H{"post": post})
}

// UpdatePost lets the author edit their post. Authorship is re-asserted on
// save; non-authors get a forbidden response even with the change permission.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40025, "invalid request payload")
		return
	}
	if code, msg := req.validate(p.db); code != 0 {
		status := http.StatusBadRequest
		if code >= 50000 {
			status = http.StatusInternalServerError
		}
		utils.Error(ctx, status, code, msg)
		return
	}

	postID := ctx.Param("id")
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40402, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to load post")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}
	if post.UserID != userID {
		utils.Error(ctx, http.StatusForbidden, 40301, "you can only update your own posts")
		return
	}

	post.UserID = userID
	post.CategoryID = req.CategoryID
	post.Header = req.Header
	post.Text = req.Text
	post.Image = req.Image
	if err := p.db.Save(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to update post")
		return
	}

	utils.InvalidateByPrefix(utils.PostListKeyPrefix)
	utils.InvalidateByPrefix(utils.PostDetailKey(postID))
	utils.Success(ctx, gin.H{"post": post})
}

// DeletePost removes the author's post together with its feedback thread
// and any subscriptions on that feedback.
func (p *PostController) DeletePost(ctx *gin.Context) {
	postID := ctx.Param("id")
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40403, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to load post")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40112, "unauthorized")
		return
	}
	if post.UserID != userID {
		utils.Error(ctx, http.StatusForbidden, 40302, "you can only delete your own posts")
		return
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		feedbackIDs := tx.Model(&models.Feedback{}).Select("id").Where("post_id = ?", post.ID)
		if err := tx.Where("feedback_id IN (?)", feedbackIDs).Delete(&models.Subscription{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Feedback{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to delete post")
		return
	}

	utils.InvalidateByPrefix(utils.PostListKeyPrefix)
	utils.InvalidateByPrefix(utils.PostDetailKey(postID))
	utils.Success(ctx, gin.H{"message": "post deleted"})
}

// Profile returns the requester's own posts, paginated.
func (p *PostController) Profile(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	page := parsePage(ctx.Query("page"))

	q := p.db.Model(&models.Post{}).Where("user_id = ?", userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50029, "failed to count posts")
		return
	}
	var posts []models.Post
	if err := q.Preload("Category").
		Order("created_at ASC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to list posts")
		return
	}

	utils.Success(ctx, gin.H{
		"items":      posts,
		"pagination": paginationPayload(page, total),
	})
}

// imageExtensions lists the accepted upload types.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// UploadImage stores a post image under static/uploads and returns its URL.
func (p *PostController) UploadImage(ctx *gin.Context) {
	if _, ok := getUserID(ctx); !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40114, "unauthorized")
		return
	}

	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "no file uploaded")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !imageExtensions[ext] {
		utils.Error(ctx, http.StatusBadRequest, 40031, "unsupported image type")
		return
	}

	const maxSize = 10 * 1024 * 1024
	if header.Size > maxSize {
		utils.Error(ctx, http.StatusBadRequest, 40032, "file size exceeds 10MB")
		return
	}

	baseDir := filepath.Join(".", "static", "uploads", "images")
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to create upload directory")
		return
	}

	name := uuid.NewString() + ext
	dstPath := filepath.Join(baseDir, name)
	out, err := os.Create(dstPath)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to save file")
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, io.LimitReader(file, maxSize)); err != nil {
		_ = os.Remove(dstPath)
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to write file")
		return
	}

	utils.Success(ctx, gin.H{"url": "/static/uploads/images/" + name})
}

func parsePage(pageStr string) int {
	page := 1
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	return page
}

func paginationPayload(page int, total int64) gin.H {
	return gin.H{
		"page":        page,
		"page_size":   pageSize,
		"total":       total,
		"total_pages": int((total + pageSize - 1) / pageSize),
	}
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

func isAdmin(ctx *gin.Context) bool {
	unameVal, exists := ctx.Get(middleware.ContextUsernameKey)
	if !exists {
		return false
	}
	uname, _ := unameVal.(string)
	if uname == "" {
		return false
	}
	cfg := config.Get()
	for _, u := range cfg.AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(u), uname) {
			return true
		}
	}
	return false
}
