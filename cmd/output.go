package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

var outputFormat string

// printResult writes a command result to stdout as JSON or YAML.
func printResult(v any) error {
	switch outputFormat {
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return eris.Wrap(enc.Encode(v), "encode yaml")
	case "json", "":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "encode json")
	default:
		return eris.Errorf("unsupported output format: %s", outputFormat)
	}
}
