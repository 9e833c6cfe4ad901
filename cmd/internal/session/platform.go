package session

import "strings"

// Platform represents the client runtime that owns a session.
type Platform string

const (
	// PlatformWeb is a browser-based client.
	PlatformWeb Platform = "web"
	// PlatformDesktop is a desktop (macOS/Windows/Linux) client.
	PlatformDesktop Platform = "desktop"
	// PlatformIOS is an iOS native client.
	PlatformIOS Platform = "ios"
	// PlatformAndroid is an Android native client.
	PlatformAndroid Platform = "android"
)

// ParsePlatform maps a config string to a Platform, defaulting to web.
func ParsePlatform(s string) Platform {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformDesktop:
		return PlatformDesktop
	case PlatformIOS:
		return PlatformIOS
	case PlatformAndroid:
		return PlatformAndroid
	default:
		return PlatformWeb
	}
}

// IsMobile reports whether p is a mobile runtime.
func (p Platform) IsMobile() bool {
	return p == PlatformIOS || p == PlatformAndroid
}
