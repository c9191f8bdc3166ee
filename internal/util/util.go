package util

import (
	"crypto/rand"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

var e164 = regexp.MustCompile(`^\+\d{10,15}$`)

// ValidE164 reports whether p is a "+" followed by 10 to 15 digits.
func ValidE164(p string) bool {
	return e164.MatchString(p)
}

func NormalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// NewID returns a prefixed ULID, e.g. "sms_01J...".
func NewID(prefix string) string {
	// ULID is sortable (keeps queue files and tables in insertion order)
	t := time.Now().UTC()
	return prefix + "_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NowUTC() time.Time {
	return time.Now().UTC()
}
