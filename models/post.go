package models

import (
	"fmt"
	"time"
)

// MinPostTextRunes is the minimum accepted length of a post body.
const MinPostTextRunes = 150

// Post represents a bulletin board entry published by a user.
type Post struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"index;not null" json:"user_id"`
	CategoryID uint       `gorm:"index;not null" json:"category_id"`
	Header     string     `gorm:"size:150;not null" json:"header"`
	Text       string     `gorm:"type:text;not null" json:"text"`
	Image      string     `gorm:"size:512;not null" json:"image"` // public URL under /static/uploads
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	User       User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Category   Category   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"category"`
	Feedback   []Feedback `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"feedback,omitempty"`
}

// URL returns the public detail link for the post.
func (p Post) URL(base string) string {
	return fmt.Sprintf("%s/%d/", base, p.ID)
}
