package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// canonicalFieldJSON approximates Python's json.dumps(schema_json, sort_keys=True):
// field lists are sorted by Name at every nesting level, and each field's
// keys come out in fieldJSON's fixed declaration order, so the same
// logical schema always serializes to the same bytes regardless of the
// order fields were supplied in.
func canonicalFieldJSON(fields []fieldJSON) ([]byte, error) {
	sortFields(fields)
	return json.Marshal(fields)
}

// fieldJSON is the canonical on-the-wire shape of one SchemaField, used
// only for hashing — field names are the map keys that sort_keys=True
// would reorder, so we sort the slice itself by Name at every level
// instead of relying on struct field order.
type fieldJSON struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Mode        string      `json:"mode"`
	Description string      `json:"description,omitempty"`
	PolicyTags  []string    `json:"policy_tags,omitempty"`
	Fields      []fieldJSON `json:"fields,omitempty"`
}

func sortFields(fields []fieldJSON) {
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	for i := range fields {
		if len(fields[i].Fields) > 0 {
			sortFields(fields[i].Fields)
		}
	}
}

// versionHash computes H(canonical_json) per spec.md §4.5:
// sha256 of the sort_keys=True JSON encoding, truncated to 16 hex chars —
// ported from original_source/backend/schema_registry.py's
// hashlib.sha256(content.encode()).hexdigest()[:16].
func versionHash(fields []fieldJSON) (string, string, error) {
	canon, err := canonicalFieldJSON(fields)
	if err != nil {
		return "", "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:])[:16], string(canon), nil
}
