package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// jsonValue and scanJSON back the jsonb columns (delivery_config, filter_config,
// step config, execution_logs).
func jsonValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	// string rather than []byte: lib/pq would send []byte as bytea.
	return string(b), nil
}

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
}
