package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	// Counter for sequential IDs
	idCounter uint64
)

// GenerateBatchID returns a random identifier for a submitted batch.
func GenerateBatchID() string {
	return "batch-" + uuid.NewString()
}

// GenerateTaskID derives a task identifier from its batch and position.
func GenerateTaskID(batchID string, index int) string {
	return fmt.Sprintf("%s/%d", batchID, index)
}

// GenerateRunID generates a run ID with a timestamp prefix
func GenerateRunID() string {
	timestamp := time.Now().Format("20060102-150405")
	b := make([]byte, 4)
	_, err := rand.Read(b)
	if err != nil {
		count := atomic.AddUint64(&idCounter, 1)
		return fmt.Sprintf("fit-%s-%x", timestamp, count)
	}
	return fmt.Sprintf("fit-%s-%s", timestamp, hex.EncodeToString(b))
}
