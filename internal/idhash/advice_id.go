package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeAdviceID computes a deterministic advice_id using SHA256.
// Formula: SHA256(pool|position|computed_at_ms|window_size)
// Returns hex-encoded hash (64 characters).
func ComputeAdviceID(poolID, positionID string, computedAtMs int64, windowSize int) string {
	data := fmt.Sprintf("%s|%s|%d|%d",
		poolID,
		positionID,
		computedAtMs,
		windowSize,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
