package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bulletin/bboard/models"
	"github.com/bulletin/bboard/utils"
)

// CategoryController exposes the category list and the admin management endpoints.
type CategoryController struct {
	db *gorm.DB
}

// NewCategoryController creates a new CategoryController instance.
func NewCategoryController(db *gorm.DB) *CategoryController {
	return &CategoryController{db: db}
}

// ListCategories returns all categories ordered by name.
func (c *CategoryController) ListCategories(ctx *gin.Context) {
	var categories []models.Category
	if err := c.db.Order("name ASC").Find(&categories).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to list categories")
		return
	}
	utils.Success(ctx, gin.H{"items": categories})
}

// CreateCategory adds a new category. Admin only.
func (c *CategoryController) CreateCategory(ctx *gin.Context) {
	if !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40311, "admin privileges required")
		return
	}

	var req struct {
		Name string `json:"name" binding:"required,max=64"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid request payload")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		utils.Error(ctx, http.StatusBadRequest, 40051, "name cannot be empty")
		return
	}

	var existing models.Category
	if err := c.db.Where("name = ?", name).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40910, "category already exists")
		return
	}

	category := models.Category{Name: name}
	if err := c.db.Create(&category).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to create category")
		return
	}
	utils.Success(ctx, gin.H{"category": category})
}

// DeleteCategory removes a category and cascades to its posts, their
// feedback and any subscriptions. Admin only.
func (c *CategoryController) DeleteCategory(ctx *gin.Context) {
	if !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40312, "admin privileges required")
		return
	}

	categoryID := ctx.Param("id")
	var category models.Category
	if err := c.db.First(&category, categoryID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40406, "category not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to load category")
		return
	}

	err := c.db.Transaction(func(tx *gorm.DB) error {
		var postIDs []uint
		if err := tx.Model(&models.Post{}).Where("category_id = ?", category.ID).Pluck("id", &postIDs).Error; err != nil {
			return err
		}
		if len(postIDs) > 0 {
			feedbackIDs := tx.Model(&models.Feedback{}).Select("id").Where("post_id IN ?", postIDs)
			if err := tx.Where("feedback_id IN (?)", feedbackIDs).Delete(&models.Subscription{}).Error; err != nil {
				return err
			}
			if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Feedback{}).Error; err != nil {
				return err
			}
			if err := tx.Where("category_id = ?", category.ID).Delete(&models.Post{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&category).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50053, "failed to delete category")
		return
	}

	utils.InvalidateByPrefix(utils.PostListKeyPrefix)
	utils.Success(ctx, gin.H{"message": "category deleted"})
}
