package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&User{}, &Group{}, &UserPermission{}, &Category{}, &Post{}, &Feedback{}, &Subscription{}))
	return db
}

func TestUserHasPermissionDirectGrant(t *testing.T) {
	db := setupTestDB(t)

	user := User{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&UserPermission{UserID: user.ID, Code: PermAddPost}).Error)

	ok, err := UserHasPermission(db, user.ID, PermAddPost)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = UserHasPermission(db, user.ID, PermDeletePost)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserHasPermissionViaGroup(t *testing.T) {
	db := setupTestDB(t)

	group := Group{Name: "moderators", Permissions: "change_post, delete_post"}
	require.NoError(t, db.Create(&group).Error)
	user := User{Username: "bob", Email: "bob@example.com"}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Model(&user).Association("Groups").Append(&group))

	ok, err := UserHasPermission(db, user.ID, PermChangePost)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = UserHasPermission(db, user.ID, PermAddPost)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGroupHas(t *testing.T) {
	g := Group{Permissions: "add_post,change_post"}
	assert.True(t, g.Has(PermAddPost))
	assert.True(t, g.Has(PermChangePost))
	assert.False(t, g.Has(PermDeletePost))
	assert.False(t, Group{}.Has(PermAddPost))
}

func TestEnsureDefaultGroupsIdempotent(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, EnsureDefaultGroups(db))
	require.NoError(t, EnsureDefaultGroups(db))

	var n int64
	require.NoError(t, db.Model(&Group{}).Where("name = ?", DefaultGroupName).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}
