package audit

import (
	"fmt"

	"github.com/opencpa/ledgerpilot/internal/common"
	"github.com/opencpa/ledgerpilot/internal/model"
)

// VerifyChain checks a tenant's audit entries in creation order: the first
// entry must have an empty previous hash, every later entry must point at
// its predecessor's data hash, and every stored hash must be reproducible
// from the stored fields. Returns nil for an empty chain.
func VerifyChain(entries []model.AuditEntry) error {
	for i := range entries {
		entry := &entries[i]

		if recomputed := ComputeDataHash(entry); recomputed != entry.DataHash {
			return fmt.Errorf("%w: entry %d data hash mismatch (stored %s, recomputed %s)",
				common.ErrChainBroken, entry.ID, entry.DataHash, recomputed)
		}

		if i == 0 {
			if entry.PreviousHash != "" {
				return fmt.Errorf("%w: first entry %d has non-empty previous hash",
					common.ErrChainBroken, entry.ID)
			}
			continue
		}

		if entry.PreviousHash != entries[i-1].DataHash {
			return fmt.Errorf("%w: entry %d does not chain to entry %d",
				common.ErrChainBroken, entry.ID, entries[i-1].ID)
		}
	}
	return nil
}
