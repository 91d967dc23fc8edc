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

func TestCreatePostTextLength(t *testing.T) {
	db := setupTestDB(t)
	mailer := &fakeMailer{}
	r := newTestRouter(db, notify.New(mailer, "http://test", nil))

	author := createUser(t, db, "alice", "alice@example.com")
	grantPerms(t, db, author.ID, models.PermAddPost)
	category := createCategory(t, db, "news")

	payload := map[string]interface{}{
		"header":      "short text post",
		"text":        longText(models.MinPostTextRunes - 1),
		"category_id": category.ID,
		"image":       "/static/uploads/images/a.png",
	}
	w := doJSON(t, r, http.MethodPost, "/api/v1/posts", bearer(t, author), payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	payload["text"] = longText(models.MinPostTextRunes)
	w = doJSON(t, r, http.MethodPost, "/api/v1/posts", bearer(t, author), payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var post models.Post
	require.NoError(t, db.Where("header = ?", "short text post").First(&post).Error)
	assert.Equal(t, author.ID, post.UserID)
}

// The length rule applies to the text as submitted; markup stripped by
// sanitizing must not push a boundary-length body under the minimum.
func TestCreatePostLengthCountsSubmittedText(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter(db, notify.New(&fakeMailer{}, "http://test", nil))

	author := createUser(t, db, "alice", "alice@example.com")
	grantPerms(t, db, author.ID, models.PermAddPost)
	category := createCategory(t, db, "news")

	markup := "<script>x</script>"
	payload := map[string]interface{}{
		"header":      "boundary post",
		"text":        longText(models.MinPostTextRunes-len(markup)) + markup,
		"category_id": category.ID,
		"image":       "/static/uploads/images/a.png",
	}
	w := doJSON(t, r, http.MethodPost, "/api/v1/posts", bearer(t, author), payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var post models.Post
	require.NoError(t, db.Where("header = ?", "boundary post").First(&post).Error)
	assert.NotContains(t, post.Text, "script")
}

func TestGetPostDetail(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter(db, notify.New(&fakeMailer{}, "http://test", nil))

	author := createUser(t, db, "alice", "alice@example.com")
	commenter := createUser(t, db, "bob", "bob@example.com")
	category := createCategory(t, db, "news")
	post := createPost(t, db, author, category, "discussed post", time.Now())

	base := time.Date(2026, 8, 10, 9, 0, 0, 0, time.Local)
	// Insert out of chronological order; the thread must come back oldest first
	later := models.Feedback{PostID: post.ID, UserID: commenter.ID, Text: "second", CreatedAt: base.Add(time.Minute)}
	require.NoError(t, db.Create(&later).Error)
	earlier := models.Feedback{PostID: post.ID, UserID: commenter.ID, Text: "first", CreatedAt: base}
	require.NoError(t, db.Create(&earlier).Error)

	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", post.ID), bearer(t, commenter), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	detail := decodeData(t, w)["post"].(map[string]interface{})
	assert.Equal(t, "discussed post", detail["header"])
	thread := detail["feedback"].([]interface{})
	require.Len(t, thread, 2)
	assert.Equal(t, "first", thread[0].(map[string]interface{})["text"])
	assert.Equal(t, "second", thread[1].(map[string]interface{})["text"])

	w = doJSON(t, r, http.MethodGet, "/api/v1/posts/9999", bearer(t, commenter), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreatePostRequiresPermission(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter(db, notify.New(&fakeMailer{}, "http://test", nil))

	user := createUser(t, db, "bob", "bob@example.com")
	category := createCategory(t, db, "news")

	payload := map[string]interface{}{
		"header":      "no permission",
		"text":        longText(200),
		"category_id": category.ID,
		"image":       "/static/uploads/images/a.png",
	}
	w := doJSON(t, r, http.MethodPost, "/api/v1/posts", bearer(t, user), payload)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/posts", "", payload)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdatePostOwnership(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter(db, notify.New(&fakeMailer{}, "http://test", nil))

	author := createUser(t, db, "alice", "alice@example.com")
	other := createUser(t, db, "bob", "bob@example.com")
	grantPerms(t, db, author.ID, models.PermChangePost)
	grantPerms(t, db, other.ID, models.PermChangePost)
	category := createCategory(t, db, "news")
	post := createPost(t, db, author, category, "original header", time.Now())

	payload := map[string]interface{}{
		"header":      "edited header",
		"text":        longText(200),
		"category_id": category.ID,
		"image":       post.Image,
	}

	w := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/v1/posts/%d", post.ID), bearer(t, other), payload)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/v1/posts/%d", post.ID), bearer(t, author), payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated models.Post
	require.NoError(t, db.First(&updated, post.ID).Error)
	assert.Equal(t, "edited header", updated.Header)
	assert.Equal(t, author.ID, updated.UserID)
}

func TestDeletePostOwnership(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter(db, notify.New(&fakeMailer{}, "http://test", nil))

	author := createUser(t, db, "alice", "alice@example.com")
	other := createUser(t, db, "bob", "bob@example.com")
	grantPerms(t, db, author.ID, models.PermDeletePost)
	grantPerms(t, db, other.ID, models.PermDeletePost)
	category := createCategory(t, db, "news")
	post := createPost(t, db, author, category, "to delete", time.Now())

	w := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/posts/%d", post.ID), bearer(t, other), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/posts/%d", post.ID), bearer(t, author), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", post.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDeletePostRemovesFeedbackAndSubscriptions(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter(db, notify.New(&fakeMailer{}, "http://test", nil))

	author := createUser(t, db, "alice", "alice@example.com")
	commenter := createUser(t, db, "bob", "bob@example.com")
	grantPerms(t, db, author.ID, models.PermDeletePost)
	category := createCategory(t, db, "news")
	post := createPost(t, db, author, category, "with thread", time.Now())

	fb := models.Feedback{PostID: post.ID, UserID: commenter.ID, Text: "nice", UserSubscribed: true}
	require.NoError(t, db.Create(&fb).Error)
	require.NoError(t, db.Create(&models.Subscription{UserID: author.ID, FeedbackID: fb.ID}).Error)

	w := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/posts/%d", post.ID), bearer(t, author), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var feedbackCount, subCount int64
	require.NoError(t, db.Model(&models.Feedback{}).Count(&feedbackCount).Error)
	require.NoError(t, db.Model(&models.Subscription{}).Count(&subCount).Error)
	assert.Zero(t, feedbackCount)
	assert.Zero(t, subCount)
}

func TestBoardFilters(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter(db, notify.New(&fakeMailer{}, "http://test", nil))

	author := createUser(t, db, "alice", "alice@example.com")
	news := createCategory(t, db, "news")
	tech := createCategory(t, db, "tech")

	base := time.Date(2026, 8, 3, 12, 0, 0, 0, time.Local)
	createPost(t, db, author, news, "Golang weekly", base)
	createPost(t, db, author, tech, "Writing Go", base.Add(time.Hour))
	createPost(t, db, author, tech, "go 1.22 released", base.Add(2*time.Hour))

	// Case-insensitive header prefix
	w := doJSON(t, r, http.MethodGet, "/api/v1/posts?header=go", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, itemsLen(t, w))

	// Exact category
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/posts?category=%d", tech.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, itemsLen(t, w))

	// Strictly-after threshold: a post created exactly at the boundary is excluded
	w = doJSON(t, r, http.MethodGet, "/api/v1/posts?added_after=2026-08-03T13:00", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, itemsLen(t, w))

	// Combined filters AND together
	w = doJSON(t, r, http.MethodGet,
		fmt.Sprintf("/api/v1/posts?header=go&category=%d&added_after=2026-08-03T12:30", tech.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, itemsLen(t, w))

	// Malformed values are ignored, not rejected
	w = doJSON(t, r, http.MethodGet, "/api/v1/posts?added_after=not-a-date&category=abc", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, itemsLen(t, w))
}

func TestBoardPagination(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter(db, notify.New(&fakeMailer{}, "http://test", nil))

	author := createUser(t, db, "alice", "alice@example.com")
	category := createCategory(t, db, "news")
	base := time.Date(2026, 8, 3, 12, 0, 0, 0, time.Local)
	for i := 0; i < 7; i++ {
		createPost(t, db, author, category, fmt.Sprintf("post %d", i), base.Add(time.Duration(i)*time.Minute))
	}

	// Filtered query keeps pagination off the shared cache
	page1 := doJSON(t, r, http.MethodGet, "/api/v1/posts?header=post&page=1", "", nil)
	require.Equal(t, http.StatusOK, page1.Code)
	page2 := doJSON(t, r, http.MethodGet, "/api/v1/posts?header=post&page=2", "", nil)
	require.Equal(t, http.StatusOK, page2.Code)

	items1 := decodeData(t, page1)["items"].([]interface{})
	items2 := decodeData(t, page2)["items"].([]interface{})
	assert.Len(t, items1, 5)
	assert.Len(t, items2, 2)
	headers := map[string]bool{}
	for _, it := range append(items1, items2...) {
		h := it.(map[string]interface{})["header"].(string)
		assert.False(t, headers[h], "duplicate item across pages: %s", h)
		headers[h] = true
	}
	assert.Len(t, headers, 7)

	// Ascending publication order within and across pages
	first := items1[0].(map[string]interface{})["header"].(string)
	assert.Equal(t, "post 0", first)
}

func TestProfileListsOwnPosts(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter(db, notify.New(&fakeMailer{}, "http://test", nil))

	alice := createUser(t, db, "alice", "alice@example.com")
	bob := createUser(t, db, "bob", "bob@example.com")
	grantPerms(t, db, alice.ID, models.PermChangePost, models.PermDeletePost)
	category := createCategory(t, db, "news")
	createPost(t, db, alice, category, "mine", time.Now())
	createPost(t, db, bob, category, "not mine", time.Now())

	w := doJSON(t, r, http.MethodGet, "/api/v1/users/me/posts", bearer(t, alice), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, itemsLen(t, w))

	// Profile needs both change and delete permissions
	w = doJSON(t, r, http.MethodGet, "/api/v1/users/me/posts", bearer(t, bob), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
