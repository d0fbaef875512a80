package models

import "gorm.io/gorm"

// Course represents a learning course. Price is the catalog price used
// when a checkout session is created; the amount actually settled by
// the payment gateway is what ends up on the enrollment.
type Course struct {
	gorm.Model
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Author       string  `json:"author"`
	Duration     int64   `json:"duration" gorm:"default:0"` // duration in hours
	Price        float64 `json:"price" gorm:"default:0"`
	Status       string  `json:"status" gorm:"default:'DRAFT'"` // DRAFT, ACTIVE, INACTIVE
	Rating       uint    `json:"rating" gorm:"default:0"`
	ThumbnailURL string  `json:"thumbnail_url"`
	IsPublished  bool    `json:"is_published" gorm:"default:false"`
	IsDeleted    bool    `gorm:"default:false"`
}
