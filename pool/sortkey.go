package pool

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// attemptDateLayout is a fixed width UTC layout, so attempt dates order
// lexically in time order whatever offset or precision they were given in.
const attemptDateLayout = "2006-01-02T15:04:05.000000000Z"

// sortKey returns the key that orders and deduplicates an element within
// its swap's set. Attempts sort by date. Chain elements sort by the refund
// height of their swap followed by a digest over everything that identifies
// them, so the same detection always maps to the same key.
func sortKey(element Element, height uint32) string {
	attempt, ok := element.(*Attempt)
	if ok {
		return attemptSortDate(attempt.Date) + "-" + attempt.ID
	}

	fields := element.(ChainElement).chainFields()
	components := []string{
		fields.block,
		fields.id,
		fields.network,
		fields.script,
		element.Type(),
		element.sortComponent(),
	}

	digest := sha256.Sum256([]byte(strings.Join(components, "/")))

	return strconv.FormatUint(uint64(height), 10) + "-" +
		hex.EncodeToString(digest[:])
}

// attemptSortDate normalizes an attempt date to attemptDateLayout. Dates that
// do not parse are used as given.
func attemptSortDate(date string) string {
	parsed, err := time.Parse(time.RFC3339Nano, date)
	if err != nil {
		return date
	}

	return parsed.UTC().Format(attemptDateLayout)
}

// sortKeyLess orders sort keys by their numeric height prefix first, then by
// the remainder.
func sortKeyLess(a, b string) bool {
	aPrefix, aRest, _ := strings.Cut(a, "-")
	bPrefix, bRest, _ := strings.Cut(b, "-")

	if len(aPrefix) != len(bPrefix) {
		return len(aPrefix) < len(bPrefix)
	}

	if aPrefix != bPrefix {
		return aPrefix < bPrefix
	}

	return aRest < bRest
}
