package controllers

import (
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// filterTimeLayouts are accepted formats for the added_after parameter,
// matching the datetime-local input format first.
var filterTimeLayouts = []string{
	"2006-01-02T15:04",
	time.RFC3339,
	"2006-01-02",
}

// applyPostFilters narrows a post query by the optional board filters:
// case-insensitive header prefix, exact category id, and a strict
// created-after threshold. Malformed values are silently ignored.
func applyPostFilters(q *gorm.DB, header, category, addedAfter string) *gorm.DB {
	if header != "" {
		q = q.Where("LOWER(header) LIKE ?", strings.ToLower(header)+"%")
	}
	if category != "" {
		if id, err := strconv.ParseUint(category, 10, 64); err == nil {
			q = q.Where("category_id = ?", id)
		}
	}
	if addedAfter != "" {
		if t, ok := parseFilterTime(addedAfter); ok {
			q = q.Where("created_at > ?", t)
		}
	}
	return q
}

func parseFilterTime(s string) (time.Time, bool) {
	for _, layout := range filterTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
