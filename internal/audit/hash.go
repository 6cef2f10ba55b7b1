// Package audit implements the tamper-evident audit trail: every entry is
// hash-chained to its predecessor, so retroactive edits break the chain and
// become detectable.
package audit

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opencpa/ledgerpilot/internal/model"
)

// ComputeDataHash produces the SHA-256 digest binding an entry to its
// predecessor. The digest covers the identifying fields, both serialized
// value snapshots, the previous hash, and the entry timestamp in millis.
// Recomputing from stored fields must reproduce the stored hash exactly.
func ComputeDataHash(entry *model.AuditEntry) string {
	payload := strings.Join([]string{
		entry.EventType,
		entry.EntityType,
		entry.EntityID,
		entry.Action,
		serializeValues(entry.OldValues),
		serializeValues(entry.NewValues),
		entry.PreviousHash,
		fmt.Sprintf("%d", entry.CreatedAt.UnixMilli()),
	}, "|")

	sum := sha256.Sum256([]byte(payload))
	return fmt.Sprintf("%x", sum)
}

// serializeValues renders a value snapshot deterministically. encoding/json
// sorts map keys, which is what makes the digest stable.
func serializeValues(values map[string]any) string {
	if len(values) == 0 {
		return ""
	}
	data, err := json.Marshal(values)
	if err != nil {
		// Snapshots come from JSON-decoded request bodies or flat maps
		// built in-process; marshaling them cannot fail in practice.
		return fmt.Sprintf("%v", values)
	}
	return string(data)
}
