package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sakif/civicfix/internal/geo"
	"github.com/sakif/civicfix/internal/media"
	"github.com/sakif/civicfix/internal/model"
)

// reportResponse is the client-facing shape of a report. Photo and Voice are
// fully resolved absolute URLs (or null); Coords is the {lat,lng} pair or
// null; Time is a relative-time string computed at read time.
type reportResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Location  string     `json:"location"`
	Photo     *string    `json:"photo"`
	Voice     *string    `json:"voice"`
	Coords    *geo.Point `json:"coords"`
	Comments  int        `json:"comments"`
	Likes     int        `json:"likes"`
	Shares    int        `json:"shares"`
	CreatedAt time.Time  `json:"created_at"`
	Time      string     `json:"time"`
}

// newReportResponse serializes one report against the current request — the
// request matters because media URLs resolve to the host the client actually
// reached us on.
func newReportResponse(r *http.Request, report *model.Report, now time.Time) reportResponse {
	return reportResponse{
		ID:        report.ID,
		Name:      report.Name,
		Title:     report.Title,
		Body:      report.Body,
		Location:  report.Location,
		Photo:     media.Resolve(r, report.Image, report.ImageURL),
		Voice:     media.Resolve(r, report.Voice, ""),
		Coords:    report.Coords,
		Comments:  report.Comments,
		Likes:     report.Likes,
		Shares:    report.Shares,
		CreatedAt: report.CreatedAt,
		Time:      relativeTime(report.CreatedAt, now),
	}
}

// relativeTime renders "how long ago" with integer division at every step:
// under a minute "Ns ago", under an hour "Nm ago", under a day "Nh ago",
// under a week "Nd ago", then the plain ISO calendar date.
func relativeTime(createdAt, now time.Time) string {
	if createdAt.IsZero() {
		return ""
	}

	sec := int(now.Sub(createdAt).Seconds())
	if sec < 0 {
		sec = 0
	}
	if sec < 60 {
		return fmt.Sprintf("%ds ago", sec)
	}
	m := sec / 60
	if m < 60 {
		return fmt.Sprintf("%dm ago", m)
	}
	h := m / 60
	if h < 24 {
		return fmt.Sprintf("%dh ago", h)
	}
	d := h / 24
	if d < 7 {
		return fmt.Sprintf("%dd ago", d)
	}
	return createdAt.UTC().Format("2006-01-02")
}

// userResponse is the account summary returned by signup, login, and me.
// Avatar resolves the same way report media does.
type userResponse struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	PhoneNumber string     `json:"phone_number"`
	Avatar      *string    `json:"avatar"`
	Location    *geo.Point `json:"location"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newUserResponse(r *http.Request, user *model.User, civic *model.Civic) userResponse {
	resp := userResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
	if civic != nil {
		resp.PhoneNumber = civic.PhoneNumber
		resp.Avatar = media.Resolve(r, civic.Avatar, "")
		resp.Location = civic.Location
	}
	return resp
}
