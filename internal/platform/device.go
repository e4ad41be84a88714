package platform

import (
	"regexp"
	"strings"
)

var (
	mobileUA = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)
	iosUA    = regexp.MustCompile(`iPad|iPhone|iPod`)
)

// IsMobile reports whether the user agent belongs to a phone or tablet.
func IsMobile(userAgent string) bool {
	return mobileUA.MatchString(userAgent)
}

// IsIOS reports whether the user agent is an iPhone, iPad or iPod. iPadOS desktop-mode Safari
// reports itself as a Mac; it is recognised when the UA also mentions touch ("Mobile/").
func IsIOS(userAgent string) bool {
	if iosUA.MatchString(userAgent) {
		return true
	}
	return strings.Contains(userAgent, "Macintosh") && strings.Contains(userAgent, "Mobile/")
}
