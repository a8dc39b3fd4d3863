package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// formatOutput writes data in the json or yaml output format. It reports
// false for the table format, which each command prints itself.
func formatOutput(w io.Writer, format string, data interface{}) (bool, error) {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return true, encoder.Encode(data)
	case "yaml":
		out, err := yaml.Marshal(data)
		if err != nil {
			return true, err
		}
		_, err = w.Write(out)
		return true, err
	case "table", "":
		return false, nil
	default:
		return true, fmt.Errorf("%w: unknown output format %q", errUsage, format)
	}
}
