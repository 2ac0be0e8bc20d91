// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — plain values with no
// behaviour attached beyond what the layers around them need.
package model

import (
	"time"

	"github.com/sakif/civicfix/internal/geo"
)

// Report is a citizen-submitted civic issue: a pothole, a broken street
// light, an overflowing bin.
//
// Media comes in two flavours that coexist on purpose:
//   - Image:    the path of an uploaded file under the media root
//     (e.g. "reports/cv37rs3pp9olc6atsptg.jpg")
//   - ImageURL: an external reference supplied by the client
//
// When both are set, the stored file wins at read time. Writes do not make
// them mutually exclusive — that matches the behaviour mobile clients
// already depend on.
//
// Voice is an uploaded audio note. A report may have an empty Body as long
// as a voice note is attached; the handler layer enforces that rule.
//
// Coords is nil when the client supplied no usable coordinates. The counters
// are denormalized totals maintained elsewhere; no API endpoint here
// increments them.
type Report struct {
	ID        string     `json:"id"         db:"id"`
	Name      string     `json:"name"       db:"name"`     // free-text reporter name
	Title     string     `json:"title"      db:"title"`
	Body      string     `json:"body"       db:"body"`
	Image     string     `json:"image"      db:"image"`     // stored file path (media root relative)
	ImageURL  string     `json:"image_url"  db:"image_url"` // external image reference
	Voice     string     `json:"voice"      db:"voice"`     // stored audio path
	Location  string     `json:"location"   db:"location"`  // human-readable address
	Coords    *geo.Point `json:"coords"`
	Comments  int        `json:"comments"   db:"comments"`
	Likes     int        `json:"likes"      db:"likes"`
	Shares    int        `json:"shares"     db:"shares"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"` // set once, immutable
}
