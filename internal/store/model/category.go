package model

import (
	"encoding/json"

	api "github.com/petrorag/petrorag/api/v1alpha1"
	"gorm.io/gorm"
)

type Category struct {
	gorm.Model
	ID            string `gorm:"primaryKey"`
	Name          string `gorm:"uniqueIndex;not null"`
	Description   string
	DocumentCount int        `gorm:"default:0"`
	Documents     []Document `gorm:"foreignKey:CategoryID;references:ID;constraint:OnDelete:CASCADE;"`
}

type CategoryList []Category

func (c Category) String() string {
	val, _ := json.Marshal(c)
	return string(val)
}

func (c Category) ToApiResource() api.Category {
	return api.Category{
		CategoryId:    c.ID,
		Name:          c.Name,
		Description:   c.Description,
		DocumentCount: c.DocumentCount,
		CreatedAt:     c.CreatedAt,
	}
}

func (cl CategoryList) ToApiResource() api.CategoryList {
	categories := make(api.CategoryList, 0, len(cl))
	for _, c := range cl {
		categories = append(categories, c.ToApiResource())
	}
	return categories
}
