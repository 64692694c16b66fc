package preview

import (
	"net/http"
	"regexp"
	"strings"
)

var petPath = regexp.MustCompile(`^/pet/([a-fA-F0-9-]+)$`)

// MatchPetPath extracts the pet id from a /pet/{id} path.
func MatchPetPath(path string) (string, bool) {
	m := petPath.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ValidID reports whether id has the hex-and-hyphen shape used in pet URLs.
func ValidID(id string) bool {
	_, ok := MatchPetPath("/pet/" + id)
	return ok
}

// RequestBaseURL returns scheme://host for r. The scheme comes from X-Forwarded-Proto when the edge proxy
// sets it, else from the connection. Empty when the request carries no host.
func RequestBaseURL(r *http.Request) string {
	host := strings.TrimSpace(r.Host)
	if host == "" {
		return ""
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		switch p := strings.ToLower(strings.TrimSpace(first)); p {
		case "http", "https":
			scheme = p
		}
	}
	return scheme + "://" + host
}

// ForRequest fills an unset SiteURL from r so that og:url and og:image stay absolute.
func (s Settings) ForRequest(r *http.Request) Settings {
	if s.SiteURL == "" {
		s.SiteURL = RequestBaseURL(r)
	}
	return s
}
