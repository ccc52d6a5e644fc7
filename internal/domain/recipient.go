package domain

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidRecipient is returned when a recipient reference has no numeric
// profile identifier in it.
var ErrInvalidRecipient = errors.New("invalid recipient id")

// ErrEmptyRecipient is returned for blank recipient references.
var ErrEmptyRecipient = errors.New("empty recipient id")

var (
	profileIDRE = regexp.MustCompile(`(?i)(?:vk\.com/id|id)(\d{5,})`)
	digitsRE    = regexp.MustCompile(`(\d{5,})`)
)

// NormalizeRecipientID turns "https://vk.com/id123456", "id123456" or
// "123456" into 123456. Plain integers of any length are accepted as-is.
func NormalizeRecipientID(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrEmptyRecipient
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return n, nil
	}
	if m := profileIDRE.FindStringSubmatch(s); m != nil {
		return strconv.ParseInt(m[1], 10, 64)
	}
	if m := digitsRE.FindStringSubmatch(s); m != nil {
		return strconv.ParseInt(m[1], 10, 64)
	}
	return 0, ErrInvalidRecipient
}
