package utils

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const ticketNumberPrefix = "TKT"

// NewTicketNumber returns TKT-YYYYMMDD-XXXXXX with six random hex digits.
func NewTicketNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return ticketNumberPrefix + "-" + now.UTC().Format("20060102") + "-" + suffix
}

// NormalizeSearch trims and collapses whitespace in a free text query.
func NormalizeSearch(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// LooksLikeTicketNumber reports whether the query names a ticket number so
// lookups can skip the wider text match.
func LooksLikeTicketNumber(raw string) bool {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	return strings.HasPrefix(normalized, ticketNumberPrefix+"-") && len(normalized) == len("TKT-20060102-ABCDEF")
}
