// Package media handles stored uploads and the URL resolution rules for
// serving them back to clients.
//
// THE EMULATOR PROBLEM:
// During development the mobile app talks to a server on the developer's
// machine. Inside the Android emulator that machine is 10.0.2.2; in the iOS
// simulator it's localhost. Records created during development end up with
// absolute URLs pointing at those loopback hosts — which a real phone on the
// network can never reach. Instead of migrating the data, we rewrite
// local-only hosts to the host the current request arrived on, so the same
// record works from the emulator, the simulator, and a physical device.
package media

import (
	"net/http"
	"net/url"
	"strings"
)

// localOnlyHosts are hostnames reachable only from the machine running the
// server. Port numbers are ignored when matching ("10.0.2.2:8000" counts).
var localOnlyHosts = map[string]bool{
	"127.0.0.1": true,
	"localhost": true,
	"10.0.2.2":  true,
	"0.0.0.0":   true,
}

// Resolve turns a stored-file path and/or an external URL into one absolute
// URL a remote client can fetch, or nil when neither is set.
//
// Priority order:
//  1. A stored file always wins over the external URL.
//  2. Absolute URLs on a local-only host are rewritten to the request host,
//     preserving path and query.
//  3. Other absolute URLs pass through unchanged.
//  4. Relative URLs are resolved against the request host with exactly one
//     leading slash.
//
// The same rules serve the image/image_url pair and, independently, the
// voice attachment.
func Resolve(r *http.Request, storedPath, externalURL string) *string {
	raw := externalURL
	if storedPath != "" {
		// Stored files live under the media root and are served at /media/.
		raw = "/media/" + strings.TrimLeft(storedPath, "/")
	}
	if raw == "" {
		return nil
	}

	resolved := resolveRaw(r, raw)
	return &resolved
}

func resolveRaw(r *http.Request, raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		// Not parseable as a URL — treat it as a relative path.
		return RequestBase(r) + "/" + strings.TrimLeft(raw, "/")
	}

	if u.IsAbs() {
		if !localOnlyHosts[u.Hostname()] {
			return raw
		}
		// Local-only host: keep path and query, swap in the request host.
		rewritten := *u
		rewritten.Scheme = requestScheme(r)
		rewritten.Host = r.Host
		return rewritten.String()
	}

	return RequestBase(r) + "/" + strings.TrimLeft(raw, "/")
}

// RequestBase returns scheme://host for the current request. The pagination
// envelope uses it to build absolute next/previous links.
func RequestBase(r *http.Request) string {
	return requestScheme(r) + "://" + r.Host
}

// requestScheme honours the X-Forwarded-Proto header set by a fronting
// proxy; direct TLS connections report https, everything else http.
func requestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
