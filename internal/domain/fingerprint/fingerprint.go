// Package fingerprint derives stable cache keys for media analyses.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/url"
	"sort"
	"strings"

	"github.com/okian/civiclens/internal/domain/model"
)

// trackingParams are dropped entirely; trackingPrefixes drop any param they start.
var (
	trackingParams = map[string]struct{}{
		"fbclid": {}, "gclid": {}, "dclid": {}, "msclkid": {}, "yclid": {},
		"spm": {}, "from": {}, "share_token": {}, "mc_cid": {}, "mc_eid": {}, "_ga": {},
		"igshid": {}, "ref": {}, "ref_src": {},
	}
	trackingPrefixes = []string{"utm_", "share_", "wx_"}
)

// Normalize canonicalises a media URL: lower-case scheme and host, no default port,
// no fragment, no tracking params, remaining params sorted. Unparseable input is
// returned trimmed.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !isDefaultPort(u.Scheme, port) {
		host = net.JoinHostPort(host, port)
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""

	q := u.Query()
	for key := range q {
		if isTracking(strings.ToLower(key)) {
			q.Del(key)
		}
	}
	for _, vals := range q {
		sort.Strings(vals)
	}
	u.RawQuery = q.Encode() // Encode sorts by key
	return u.String()
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}

func isTracking(key string) bool {
	if _, ok := trackingParams[key]; ok {
		return true
	}
	for _, p := range trackingPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// Compute hashes (normalized URL, media type, operation) into a hex digest.
func Compute(rawURL string, mediaType model.MediaType, operation string) string {
	h := sha256.New()
	h.Write([]byte(Normalize(rawURL)))
	h.Write([]byte{0})
	h.Write([]byte(mediaType))
	h.Write([]byte{0})
	h.Write([]byte(operation))
	return hex.EncodeToString(h.Sum(nil))
}
