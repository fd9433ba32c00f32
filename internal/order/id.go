package order

import (
	"strconv"
	"strings"
	"time"
)

// DefaultIDPrefix prefixes generated order ids.
const DefaultIDPrefix = "MK"

// NewOrderID returns prefix-<unix millis in upper base36>.
func NewOrderID(now time.Time, prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultIDPrefix
	}
	return prefix + "-" + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
}
