package main

import (
	"encoding/json"
	"io"
)

// printJSON writes v indented, the same shape the API serves.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
