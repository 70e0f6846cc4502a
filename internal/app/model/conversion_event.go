package model

import "time"

// ConversionEvent records one conversion notice from the affiliate network.
// TrackingID carries a unique index: it is the idempotency key.
type ConversionEvent struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	LinkID      string    `json:"link_id" gorm:"index;size:36;not null"`
	TrackingID  string    `json:"tracking_id" gorm:"uniqueIndex;size:64;not null"`
	Revenue     float64   `json:"revenue" gorm:"type:numeric(14,4);not null"`
	Commission  float64   `json:"commission" gorm:"type:numeric(14,4);not null"`
	ChannelRef  string    `json:"channel_ref" gorm:"index;size:128"`
	ConvertedAt time.Time `json:"converted_at" gorm:"index;not null"`
}
