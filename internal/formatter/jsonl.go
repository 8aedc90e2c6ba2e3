package formatter

import (
	"encoding/json"
	"io"
)

// WriteJSONL writes each item as one compact JSON line.
func WriteJSONL[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false) // commands contain < > & verbatim
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}
