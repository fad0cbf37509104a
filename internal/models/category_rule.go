package models

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var ErrCategoryRuleInvalid = errors.New("category rules need both a match pattern and a category")

// CategoryRule assigns a category to bank transactions whose description
// matches a glob pattern. Rules are applied in ascending priority order,
// the first match wins. They only apply when the source did not already
// provide a category.
type CategoryRule struct {
	DefaultModel
	Priority uint   `json:"priority" example:"1"`
	Match    string `json:"match" example:"AWS*"`
	Category string `json:"category" example:"Infrastructure"`
}

func (r *CategoryRule) BeforeSave(_ *gorm.DB) error {
	r.Match = strings.TrimSpace(r.Match)
	r.Category = strings.TrimSpace(r.Category)

	if r.Match == "" || r.Category == "" {
		return ErrCategoryRuleInvalid
	}

	return nil
}
