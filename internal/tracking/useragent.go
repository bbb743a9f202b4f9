// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tracking

import (
	"regexp"
	"strings"

	"github.com/mileusna/useragent"
)

// Device types.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceBot     = "bot"
)

// Viewport breakpoints in CSS pixels.
const (
	tabletMinWidth  = 768
	desktopMinWidth = 1024
)

// crawlerPattern catches automated clients the useragent parser does not
// flag as bots: HTTP libraries, headless browsers, link preview fetchers.
var crawlerPattern = regexp.MustCompile(`(?i)(bot\b|bot/|crawl|spider|slurp|scrap|curl/|wget/|python-|httpclient|http-client|okhttp|axios/|node-fetch|undici|java/|libwww|headless|phantomjs|selenium|puppeteer|playwright|lighthouse|pagespeed|facebookexternalhit|embedly|quora link preview|whatsapp|preview|monitor|uptime|feedfetcher|\+https?://)`)

// ClientInfo is what the service derives from a user agent string.
type ClientInfo struct {
	Browser    string
	OS         string
	DeviceType string
	Bot        bool
}

// ParseUserAgent extracts browser, OS and device type from a user agent string.
func ParseUserAgent(uaString string) ClientInfo {
	ua := useragent.Parse(uaString)

	info := ClientInfo{
		Browser: ua.Name,
		OS:      ua.OS,
		Bot:     IsBot(uaString),
	}

	if info.Browser == "" {
		info.Browser = "Unknown"
	}
	if info.OS == "" {
		info.OS = "Unknown"
	}

	switch {
	case info.Bot:
		info.DeviceType = DeviceBot
	case ua.Tablet:
		info.DeviceType = DeviceTablet
	case ua.Mobile:
		info.DeviceType = DeviceMobile
	default:
		info.DeviceType = DeviceDesktop
	}

	return info
}

// IsBot reports whether a user agent belongs to a crawler or script.
// A missing user agent counts as a bot.
func IsBot(uaString string) bool {
	uaString = strings.TrimSpace(uaString)
	if uaString == "" {
		return true
	}
	if useragent.Parse(uaString).Bot {
		return true
	}
	return crawlerPattern.MatchString(uaString)
}

// DeviceType classifies the client by viewport width, falling back to the
// user agent when the width is unknown.
func DeviceType(viewportWidth *int, info ClientInfo) string {
	if viewportWidth == nil {
		return info.DeviceType
	}
	switch w := *viewportWidth; {
	case w < tabletMinWidth:
		return DeviceMobile
	case w < desktopMinWidth:
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}
