package coordkv

import (
	"fmt"
	"strconv"
	"strings"
)

// priorityWidth is wide enough for any non-negative int64 priority (19
// decimal digits). Queue.Get's tie-break when every item shares the same
// contention score (always true until a handle has been contended for,
// since Put always ZADDs with score 0) is h_k's own lexical order, so the
// priority field must be zero-padded — a plain "%d" would put "9" after
// "100" lexically even though 9 < 100 numerically.
const priorityWidth = 19

// buildHandle constructs h_k = "priority:insert_time:payload" (spec §3/§6),
// with priority zero-padded to priorityWidth so lexical and numeric order
// agree. Priority is assumed non-negative, matching every priority spec.md
// uses (the default of 100 and the scenarios in §8).
func buildHandle(priority int, insertTime float64, payload []byte) string {
	return fmt.Sprintf("%0*d:%s:%s", priorityWidth, priority, strconv.FormatFloat(insertTime, 'f', -1, 64), payload)
}

// splitHandle positionally splits h_k on the first two colons only, so an
// embedded colon in payload is preserved byte-for-byte (spec §6).
func splitHandle(h string) (priority int, insertTime float64, payload string, ok bool) {
	parts := strings.SplitN(h, ":", 3)
	if len(parts) != 3 {
		return 0, 0, "", false
	}
	p, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, "", false
	}
	t, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, "", false
	}
	return p, t, parts[2], true
}
