package controllers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulletin/bboard/models"
	"github.com/bulletin/bboard/notify"
)

func TestCreateCategoryAdminOnly(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter(db, notify.New(&fakeMailer{}, "http://test", nil))

	admin := createUser(t, db, "admin", "admin@test")
	user := createUser(t, db, "alice", "alice@example.com")

	w := doJSON(t, r, http.MethodPost, "/api/v1/categories", bearer(t, user),
		map[string]interface{}{"name": "news"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/categories", bearer(t, admin),
		map[string]interface{}{"name": "news"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Duplicate names are rejected
	w = doJSON(t, r, http.MethodPost, "/api/v1/categories", bearer(t, admin),
		map[string]interface{}{"name": "news"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteCategoryCascades(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter(db, notify.New(&fakeMailer{}, "http://test", nil))

	admin := createUser(t, db, "admin", "admin@test")
	author := createUser(t, db, "alice", "alice@example.com")
	category := createCategory(t, db, "doomed")
	post := createPost(t, db, author, category, "doomed post", time.Now())
	fb := models.Feedback{PostID: post.ID, UserID: author.ID, Text: "bye"}
	require.NoError(t, db.Create(&fb).Error)
	require.NoError(t, db.Create(&models.Subscription{UserID: author.ID, FeedbackID: fb.ID}).Error)

	w := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/categories/%d", category.ID),
		bearer(t, admin), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, model := range []interface{}{
		&models.Category{}, &models.Post{}, &models.Feedback{}, &models.Subscription{},
	} {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		assert.Zero(t, n)
	}
}
