package model

import "time"

// ShortLinkCodeLength is the fixed length of generated short codes.
const ShortLinkCodeLength = 7

// ShortLink owns a destination URL and the aggregate counters derived from its
// click and conversion events. Counters only ever move up, through increments.
type ShortLink struct {
	ID              string    `json:"id" gorm:"primaryKey;size:36"`
	ShortCode       string    `json:"short_code" gorm:"uniqueIndex;size:16;not null"`
	DestinationURL  string    `json:"destination_url" gorm:"type:text;not null"`
	OwnerID         string    `json:"owner_id" gorm:"index;size:64;not null"`
	ChannelRef      string    `json:"channel_ref" gorm:"size:128"`
	ASIN            string    `json:"asin" gorm:"size:32"`
	AmazonTag       string    `json:"amazon_tag" gorm:"size:64"`
	Clicks          int64     `json:"clicks" gorm:"not null;default:0"`
	ConversionCount int64     `json:"conversion_count" gorm:"not null;default:0"`
	TotalRevenue    float64   `json:"total_revenue" gorm:"type:numeric(14,4);not null;default:0"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
}
