// Package model defines the persisted entities for Seen.
package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Media kinds accepted for an upload.
const (
	MediaKindImage = "image"
	MediaKindVideo = "video"
)

// Verification status values written back by the verification pipeline.
// An empty status means verification has never been attempted.
const (
	StatusUnverified      = "unverified"
	StatusVerified        = "verified"
	StatusPotentialIssues = "potential_issues"
)

// Location provenance tags.
const (
	LocationSourceEXIF    = "exif"
	LocationSourceUser    = "user-supplied"
	LocationSourceManual  = "manual"
	LocationSourceAddress = "address"
)

// MaxDescriptionLen bounds the free-text description on an upload.
const MaxDescriptionLen = 100

// Upload is one user-submitted geo-tagged media asset plus its metadata and
// verification state. Rows are never hard-deleted; DeletedAt marks them
// invisible to every read path.
type Upload struct {
	ID          string `gorm:"primaryKey;type:text" json:"id"`
	OwnerID     string `gorm:"index" json:"owner_id"`
	MediaURL    string `json:"media_url"`
	MediaKind   string `json:"media_kind"`
	Description string `json:"description"`

	// Latitude/Longitude are set together or not at all.
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	LocationSource string   `json:"location_source"`
	LocationName   string   `json:"location_name"`

	CapturedAt *time.Time `json:"captured_at"`

	Verified           bool   `json:"verified"`
	VerificationStatus string `gorm:"index" json:"verification_status"`
	VerificationResult string `json:"verification_result"`

	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// HasCoordinate reports whether the upload carries a usable coordinate pair.
func (u *Upload) HasCoordinate() bool {
	return u.Latitude != nil && u.Longitude != nil
}

// Validate checks the fields a client controls at creation time.
func (u *Upload) Validate() error {
	if u.MediaURL == "" {
		return fmt.Errorf("media_url is required")
	}
	if u.MediaKind != MediaKindImage && u.MediaKind != MediaKindVideo {
		return fmt.Errorf("media_kind must be %q or %q", MediaKindImage, MediaKindVideo)
	}
	if len(u.Description) > MaxDescriptionLen {
		return fmt.Errorf("description exceeds %d characters", MaxDescriptionLen)
	}
	if (u.Latitude == nil) != (u.Longitude == nil) {
		return fmt.Errorf("latitude and longitude must be provided together")
	}
	if u.Latitude != nil {
		if *u.Latitude < -90 || *u.Latitude > 90 {
			return fmt.Errorf("latitude out of range")
		}
		if *u.Longitude < -180 || *u.Longitude > 180 {
			return fmt.Errorf("longitude out of range")
		}
	}
	switch u.LocationSource {
	case "", LocationSourceEXIF, LocationSourceUser, LocationSourceManual, LocationSourceAddress:
	default:
		return fmt.Errorf("unknown location_source %q", u.LocationSource)
	}
	return nil
}
