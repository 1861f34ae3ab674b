package export

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSON writes v as an indented document
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}

// Marshal is JSON for callers that store the document, e.g. a layout column
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal reads a document written by JSON or Marshal
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
