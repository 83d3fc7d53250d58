// Package device turns raw User-Agent strings into human-readable labels for
// audit events and computes stable device fingerprints.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mssola/useragent"
)

// ParseUserAgent produces a display label like "Chrome on Mac OS X". Unknown
// or empty agents degrade to generic labels rather than failing.
func ParseUserAgent(rawUA string) string {
	if strings.TrimSpace(rawUA) == "" {
		return "Unknown Device"
	}

	ua := useragent.New(rawUA)

	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	platform := ua.OSInfo().Name
	if platform == "" {
		platform = ua.Platform()
	}
	if platform == "" {
		platform = "Unknown Platform"
	}

	return strings.Join(strings.Fields(fmt.Sprintf("%s on %s", browser, platform)), " ")
}

// Service computes and compares device fingerprints. Disabled instances
// return empty fingerprints so callers need no conditional wiring.
type Service struct {
	enabled bool
}

func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

// ComputeFingerprint hashes the stable parts of the user agent: browser name,
// major version, and OS. Minor and patch version bumps do not change the
// fingerprint, so routine self-updates don't look like new devices.
func (s *Service) ComputeFingerprint(rawUA string) string {
	if !s.enabled {
		return ""
	}

	ua := useragent.New(rawUA)
	browser, version := ua.Browser()
	major, _, _ := strings.Cut(version, ".")

	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s", browser, major, ua.OS()))
	return hex.EncodeToString(sum[:])
}

// CompareFingerprints reports whether the fingerprints match and whether the
// difference counts as drift.
func (s *Service) CompareFingerprints(stored, current string) (matched, drift bool) {
	matched = stored == current
	return matched, !matched
}
