// Package cas provides BLAKE3 content digest helpers for the extraction
// manifest.
package cas

import (
	"encoding/hex"
	"strings"
	"time"

	"lukechampine.com/blake3"
)

// NowMs returns the current time in milliseconds since epoch.
func NowMs() int64 {
	return time.Now().UnixMilli()
}

// SumHex returns the hex-encoded BLAKE3-256 digest of data.
func SumHex(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// RunDigest derives a digest for a whole run from the ordered content
// digests of the scripts it wrote. Order matters: the same scripts written
// in a different traversal order produce a different run digest.
func RunDigest(digests []string) string {
	return SumHex([]byte(strings.Join(digests, "\n")))
}
