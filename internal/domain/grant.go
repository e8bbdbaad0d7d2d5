package domain

import (
	"fmt"
	"time"
)

// ExpiredLabel is the display value for a grant past its expiry.
const ExpiredLabel = "Expired"

// DownloadGrant is a time-bounded permission to fetch one file.
type DownloadGrant struct {
	FileID    string    `json:"fileId"`
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
	IssuedTo  string    `json:"-"`
	IssuedAt  time.Time `json:"-"`
}

// Expired reports whether the grant can no longer be redeemed at now.
func (g DownloadGrant) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

// TimeRemaining is the display breakdown of a grant's remaining lifetime.
type TimeRemaining struct {
	Expired bool
	Hours   int
	Minutes int
}

// Remaining computes the time left on a grant at now.
func (g DownloadGrant) Remaining(now time.Time) TimeRemaining {
	diff := g.ExpiresAt.Sub(now)
	if diff <= 0 {
		return TimeRemaining{Expired: true}
	}
	minutes := int(diff / time.Minute)
	return TimeRemaining{Hours: minutes / 60, Minutes: minutes % 60}
}

func (r TimeRemaining) String() string {
	if r.Expired {
		return ExpiredLabel
	}
	if r.Hours > 0 {
		return fmt.Sprintf("%dh %dm", r.Hours, r.Minutes)
	}
	return fmt.Sprintf("%dm", r.Minutes)
}
