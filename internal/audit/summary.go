package audit

import (
	"fmt"
	"sort"
	"strings"
)

// ChangeSummary derives a human-readable description of an audited action
// from the before/after snapshots. Update actions list the keys present in
// both snapshots whose serialized value differs; other actions use
// action-specific templates.
func ChangeSummary(action, entityType, entityID string, oldValues, newValues map[string]any) string {
	subject := entityType
	if entityID != "" {
		subject = fmt.Sprintf("%s %s", entityType, entityID)
	}

	switch action {
	case "create":
		return fmt.Sprintf("Created %s", subject)
	case "delete":
		return fmt.Sprintf("Deleted %s", subject)
	case "export":
		return fmt.Sprintf("Exported %s", subject)
	case "approve":
		return fmt.Sprintf("Approved %s", subject)
	case "reject":
		return fmt.Sprintf("Rejected %s", subject)
	case "update":
		changed := changedFields(oldValues, newValues)
		if len(changed) == 0 {
			return fmt.Sprintf("Updated %s", subject)
		}
		return fmt.Sprintf("Updated %s: changed %s", subject, strings.Join(changed, ", "))
	default:
		return fmt.Sprintf("%s on %s", action, subject)
	}
}

// changedFields returns the sorted keys present in both snapshots whose
// serialized values differ.
func changedFields(oldValues, newValues map[string]any) []string {
	var changed []string
	for key, oldVal := range oldValues {
		newVal, ok := newValues[key]
		if !ok {
			continue
		}
		if fmt.Sprintf("%v", oldVal) != fmt.Sprintf("%v", newVal) {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	return changed
}
