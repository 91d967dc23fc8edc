package models

import (
	"strings"

	"gorm.io/gorm"
)

// Permission codes checked by the post handlers.
const (
	PermAddPost    = "add_post"
	PermChangePost = "change_post"
	PermDeletePost = "delete_post"
)

// DefaultGroupName is the group every new account is placed into on registration.
const DefaultGroupName = "common users"

// Group bundles permission codes and is attached to users via user_groups.
type Group struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:64;uniqueIndex;not null" json:"name"`
	Permissions string `gorm:"size:255" json:"permissions"` // comma-separated permission codes
}

// Has reports whether the group carries the given permission code.
func (g Group) Has(code string) bool {
	for _, c := range strings.Split(g.Permissions, ",") {
		if strings.TrimSpace(c) == code {
			return true
		}
	}
	return false
}

// UserPermission is a permission code granted directly to a single user.
type UserPermission struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID uint   `gorm:"index:idx_user_perm,unique;not null" json:"user_id"`
	Code   string `gorm:"size:64;index:idx_user_perm,unique;not null" json:"code"`
}

// UserHasPermission checks direct grants first, then the user's groups.
func UserHasPermission(db *gorm.DB, userID uint, code string) (bool, error) {
	var n int64
	if err := db.Model(&UserPermission{}).
		Where("user_id = ? AND code = ?", userID, code).
		Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	var groups []Group
	if err := db.Model(&User{ID: userID}).Association("Groups").Find(&groups); err != nil {
		return false, err
	}
	for _, g := range groups {
		if g.Has(code) {
			return true, nil
		}
	}
	return false, nil
}

// EnsureDefaultGroups creates the built-in groups when missing.
func EnsureDefaultGroups(db *gorm.DB) error {
	return db.Where(Group{Name: DefaultGroupName}).FirstOrCreate(&Group{Name: DefaultGroupName}).Error
}
