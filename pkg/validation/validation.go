package validation

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// EntityIDRegex validates driver, booking and incident ids
	EntityIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

	// ChannelRegex validates subscription channel names
	ChannelRegex = regexp.MustCompile(`^[a-z][a-z0-9_:.-]*$`)
)

// ValidateEntityID validates an identifier pushed by the server
func ValidateEntityID(id, fieldName string) error {
	if id == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if len(id) > 100 {
		return fmt.Errorf("%s is too long (max 100 characters)", fieldName)
	}
	if !EntityIDRegex.MatchString(id) {
		return fmt.Errorf("invalid %s format", fieldName)
	}
	return nil
}

// ValidateCoordinates validates a WGS84 latitude/longitude pair
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return fmt.Errorf("coordinates must be numbers")
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", lng)
	}
	return nil
}

// ValidateHeading validates a compass heading in degrees
func ValidateHeading(heading float64) error {
	if heading < 0 || heading >= 360 {
		return fmt.Errorf("heading %v out of range [0, 360)", heading)
	}
	return nil
}

// ValidateNonNegative validates counters and gauges reported by the server
func ValidateNonNegative(v float64, fieldName string) error {
	if math.IsNaN(v) || v < 0 {
		return fmt.Errorf("%s must be >= 0", fieldName)
	}
	return nil
}

// ValidateChannel validates a subscription channel name
func ValidateChannel(channel string) error {
	if channel == "" {
		return fmt.Errorf("channel is required")
	}
	if err := ValidateStringLength(channel, 1, 64, "channel"); err != nil {
		return err
	}
	if !ChannelRegex.MatchString(channel) {
		return fmt.Errorf("invalid channel name %q", channel)
	}
	return nil
}

// ValidateSocketURL validates the realtime endpoint URL
func ValidateSocketURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid URL scheme (must be ws or wss)")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length
func ValidateStringLength(s string, min, max int, fieldName string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
