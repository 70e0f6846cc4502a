package model

import "time"

// ClickEvent is one immutable record of a redirect resolution.
// IPHash is the anonymized fingerprint; the raw address is never stored.
type ClickEvent struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	LinkID     string    `json:"link_id" gorm:"index;size:36;not null"`
	IPHash     string    `json:"ip_hash" gorm:"size:16;not null"`
	UserAgent  string    `json:"user_agent" gorm:"type:text"`
	Referer    string    `json:"referer" gorm:"type:text"`
	ChannelRef string    `json:"channel_ref" gorm:"index;size:128"`
	Timestamp  time.Time `json:"timestamp" gorm:"index;not null"`
}

// Column limits for caller-supplied click attributes. ChannelRef matches the
// size tag above.
const (
	ChannelRefMaxLength = 128
	UserAgentMaxLength  = 512
	RefererMaxLength    = 2048
)

const (
	ClickStreamName     = "CLICKS"
	ClickStreamSubject  = "clicks.events"
	ClickConsumerName   = "click-recorder"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
