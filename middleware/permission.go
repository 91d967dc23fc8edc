package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bulletin/bboard/models"
	"github.com/bulletin/bboard/utils"
)

// PermissionRequired rejects the request unless the authenticated user holds
// every listed permission code. It must run after AuthRequired; ownership
// checks stay in the handler body where the object is loaded.
func PermissionRequired(db *gorm.DB, codes ...string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		value, exists := ctx.Get(ContextUserIDKey)
		if !exists {
			utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
			ctx.Abort()
			return
		}
		userID, ok := value.(uint)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
			ctx.Abort()
			return
		}

		for _, code := range codes {
			has, err := models.UserHasPermission(db, userID, code)
			if err != nil {
				utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to check permissions")
				ctx.Abort()
				return
			}
			if !has {
				utils.Error(ctx, http.StatusForbidden, 40310, "permission denied")
				ctx.Abort()
				return
			}
		}
		ctx.Next()
	}
}
