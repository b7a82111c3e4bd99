package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Schema versions of the persisted blob:
// v0: bare JSON array of entities (written before versioning existed)
// v1: {"version":1,"items":[...]}
const (
	legacySchemaVersion  = 0
	DefaultSchemaVersion = 1
)

// Migration upgrades the items array of a blob from version From to From+1.
type Migration struct {
	From    int
	Migrate func(items json.RawMessage) (json.RawMessage, error)
}

type envelope struct {
	Version int             `json:"version"`
	Items   json.RawMessage `json:"items"`
}

// decodeBlob unwraps a persisted blob and migrates its items to target.
// It returns the items array and the version the blob was stored with.
func decodeBlob(raw string, target int, migrations []Migration) (json.RawMessage, int, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 {
		return nil, target, nil
	}

	var env envelope
	if data[0] == '[' {
		env = envelope{Version: legacySchemaVersion, Items: data}
	} else if err := json.Unmarshal(data, &env); err != nil {
		return nil, 0, fmt.Errorf("decode envelope: %w", err)
	}

	stored := env.Version
	if stored > target {
		return nil, stored, fmt.Errorf("%w: stored %d, supported %d", ErrUnsupportedVersion, stored, target)
	}

	items := env.Items
	for v := stored; v < target; v++ {
		m, ok := findMigration(migrations, v)
		if !ok {
			if v == legacySchemaVersion {
				// v0 -> v1 only introduced the envelope.
				continue
			}
			return nil, stored, fmt.Errorf("no migration from schema version %d", v)
		}
		migrated, err := m.Migrate(items)
		if err != nil {
			return nil, stored, fmt.Errorf("migrate from schema version %d: %w", v, err)
		}
		items = migrated
	}
	return items, stored, nil
}

func findMigration(migrations []Migration, from int) (Migration, bool) {
	for _, m := range migrations {
		if m.From == from {
			return m, true
		}
	}
	return Migration{}, false
}

func encodeBlob(version int, items any) (string, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode items: %w", err)
	}
	out, err := json.Marshal(envelope{Version: version, Items: raw})
	if err != nil {
		return "", fmt.Errorf("encode envelope: %w", err)
	}
	return string(out), nil
}
