package domain

import (
	"fmt"
	"strings"
)

// Category is the semantic class a transcript is sorted into.
// The set is closed: every consumer switches over all values.
type Category string

// Known categories. Unknown is the fallback when classification fails.
const (
	CategoryMeeting  Category = "meeting"
	CategoryReminder Category = "reminder"
	CategoryArchive  Category = "archive"
	CategoryDiary    Category = "diary"
	CategoryWork     Category = "work"
	CategoryHome     Category = "home"
	CategoryStudy    Category = "study"
	CategoryIdeas    Category = "ideas"
	CategoryHealth   Category = "health"
	CategoryFinance  Category = "finance"
	CategoryUnknown  Category = "unknown"
)

// Categories lists every category in display order, unknown last.
func Categories() []Category {
	return []Category{
		CategoryMeeting,
		CategoryReminder,
		CategoryArchive,
		CategoryDiary,
		CategoryWork,
		CategoryHome,
		CategoryStudy,
		CategoryIdeas,
		CategoryHealth,
		CategoryFinance,
		CategoryUnknown,
	}
}

// ParseCategory converts a model label such as "HOME" or " meeting " to a
// Category. Matching is case-insensitive.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return CategoryUnknown, fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryMeeting, CategoryReminder, CategoryArchive, CategoryDiary, CategoryWork,
		CategoryHome, CategoryStudy, CategoryIdeas, CategoryHealth, CategoryFinance, CategoryUnknown:
		return true
	default:
		return false
	}
}

// Label returns the upper-case label used in classification prompts.
func (c Category) Label() string {
	return strings.ToUpper(string(c))
}
