package models

import "time"

// Feedback is a comment left on a post. UserSubscribed mirrors whether the
// post author holds an active Subscription for this item; the two are
// written together inside one transaction.
type Feedback struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	PostID         uint      `gorm:"index;not null" json:"post_id"`
	UserID         uint      `gorm:"index;not null" json:"user_id"`
	Text           string    `gorm:"type:text;not null" json:"text"`
	UserSubscribed bool      `gorm:"not null;default:false" json:"user_subscribed"`
	CreatedAt      time.Time `json:"created_at"`
	User           User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Post           Post      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"post,omitempty"`
}

// Subscription registers a post author's interest in updates about one
// feedback item. Exists iff the feedback's UserSubscribed flag is true.
type Subscription struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index:idx_sub_user_feedback,unique;not null" json:"user_id"`
	FeedbackID uint      `gorm:"index:idx_sub_user_feedback,unique;not null" json:"feedback_id"`
	CreatedAt  time.Time `json:"created_at"`
}
