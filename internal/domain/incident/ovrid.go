package incident

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/r3hc/ovr/internal/platform/apperr"
)

const ovrPrefix = "OVR"

// Bucket returns the year-month sequence bucket (YYMM, UTC) for t.
func Bucket(t time.Time) string {
	return t.UTC().Format("0601")
}

// FormatOVRID renders OVR-YYMM-NNNN. The sequence is padded to four digits
// and widens past 9999.
func FormatOVRID(t time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", ovrPrefix, Bucket(t), seq)
}

// ParseOVRID validates id and returns its bucket and sequence number.
func ParseOVRID(id string) (bucket string, seq int, err error) {
	parts := strings.Split(strings.TrimSpace(id), "-")
	if len(parts) != 3 || parts[0] != ovrPrefix {
		return "", 0, apperr.Validation("Invalid OVR ID %q", id)
	}
	bucket = parts[1]
	if len(bucket) != 4 || !allDigits(bucket) {
		return "", 0, apperr.Validation("Invalid OVR ID %q", id)
	}
	if month, _ := strconv.Atoi(bucket[2:]); month < 1 || month > 12 {
		return "", 0, apperr.Validation("Invalid OVR ID %q", id)
	}
	if len(parts[2]) < 4 || !allDigits(parts[2]) {
		return "", 0, apperr.Validation("Invalid OVR ID %q", id)
	}
	seq, err = strconv.Atoi(parts[2])
	if err != nil || seq < 1 {
		return "", 0, apperr.Validation("Invalid OVR ID %q", id)
	}
	return bucket, seq, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
