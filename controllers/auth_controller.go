package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bulletin/bboard/models"
	"github.com/bulletin/bboard/notify"
	"github.com/bulletin/bboard/utils"
)

const tokenDuration = 72 * time.Hour

// AuthController handles registration, login and permission management.
type AuthController struct {
	db       *gorm.DB
	notifier *notify.Notifier
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(db *gorm.DB, notifier *notify.Notifier) *AuthController {
	return &AuthController{db: db, notifier: notifier}
}

// Register creates a new account, places it in the default group and
// notifies administrators about the registration.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required,min=3,max=64"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6,max=64"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	var existing models.User
	if err := a.db.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		RegisterIP:   ctx.ClientIP(),
	}
	if err := a.db.Create(&user).Error; err != nil {
		// The pre-check races with concurrent registrations and misses
		// soft-deleted accounts; the unique index is the authority.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}

	var group models.Group
	if err := a.db.Where(models.Group{Name: models.DefaultGroupName}).FirstOrCreate(&group).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to load default group")
		return
	}
	if err := a.db.Model(&user).Association("Groups").Append(&group); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to assign default group")
		return
	}

	if err := a.notifier.UserRegistered(&user); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to send notification")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, tokenDuration)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to generate token")
		return
	}
	utils.Success(ctx, gin.H{"token": token, "user": user})
}

// Login verifies credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.Where("username = ?", strings.TrimSpace(req.Username)).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40120, "invalid username or password")
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40120, "invalid username or password")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, tokenDuration)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to generate token")
		return
	}
	utils.Success(ctx, gin.H{"token": token, "user": user})
}

// Logout revokes the presented token until its natural expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		utils.Error(ctx, http.StatusBadRequest, 40011, "missing bearer token")
		return
	}
	token := strings.TrimSpace(parts[1])
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40121, "invalid token")
		return
	}
	utils.BlacklistToken(token, claims.ExpiresAt.Time)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the authenticated user with groups and direct permission grants.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40118, "unauthorized")
		return
	}

	var user models.User
	if err := a.db.Preload("Groups").First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50008, "failed to load user")
		return
	}
	var perms []string
	if err := a.db.Model(&models.UserPermission{}).
		Where("user_id = ?", userID).
		Pluck("code", &perms).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50009, "failed to load permissions")
		return
	}

	utils.Success(ctx, gin.H{
		"user":        user,
		"groups":      user.Groups,
		"permissions": perms,
	})
}

// UpdatePermission grants or revokes a post permission for a user. Admin only.
func (a *AuthController) UpdatePermission(ctx *gin.Context) {
	if !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40313, "admin privileges required")
		return
	}

	var req struct {
		Action     string `json:"action" binding:"required,oneof=grant revoke"`
		Permission string `json:"permission" binding:"required,oneof=add_post change_post delete_post"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.First(&user, ctx.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40407, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to load user")
		return
	}

	if req.Action == "grant" {
		perm := models.UserPermission{UserID: user.ID, Code: req.Permission}
		if err := a.db.Where(perm).FirstOrCreate(&perm).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50012, "failed to grant permission")
			return
		}
	} else {
		if err := a.db.Where("user_id = ? AND code = ?", user.ID, req.Permission).
			Delete(&models.UserPermission{}).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50013, "failed to revoke permission")
			return
		}
	}

	utils.Success(ctx, gin.H{
		"user_id":    user.ID,
		"permission": req.Permission,
		"action":     req.Action,
	})
}
