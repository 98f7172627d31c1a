package models

import (
	"encoding/json"
	"fmt"
)

// scanJSON decodes a JSONB column into dst. NULL columns leave dst at its
// zero value.
func scanJSON(src, dst interface{}) error {
	if src == nil {
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dst)
	}
}
