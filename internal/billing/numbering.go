package billing

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"
)

// PlaceholderPrefix marks a document number that has not been finalized.
const PlaceholderPrefix = "DRAFT-"

var seqToken = regexp.MustCompile(`\{seq(?::0?(\d+)d)?\}`)

// FormatNumber renders seq into pattern, e.g. "Q{seq:04d}" with 7 gives
// "Q0007". A bare {seq} pads to 4 digits.
func FormatNumber(pattern string, seq int64) string {
	return seqToken.ReplaceAllStringFunc(pattern, func(tok string) string {
		width := 4
		if m := seqToken.FindStringSubmatch(tok); m[1] != "" {
			width, _ = strconv.Atoi(m[1])
		}
		return fmt.Sprintf("%0*d", width, seq)
	})
}

// PlaceholderNumber returns a unique number for a document still in DRAFT.
// It never competes with the sequence, so concurrent drafts do not contend.
func PlaceholderNumber() string {
	return PlaceholderPrefix + uuid.NewString()
}
