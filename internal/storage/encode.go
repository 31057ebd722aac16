package storage

import (
	"bytes"
	"encoding/json"
)

// encodeJSON marshals v without HTML escaping so embedded proof documents
// keep their exact bytes
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
