package cmd

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v2"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// printResult renders a result in the format set by flags. The text format is rendered by a command specific function.
func printResult(w io.Writer, v interface{}, text func(io.Writer) error) error {
	switch irminFlags.output.format {
	case "", formatText:
		return text(w)
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unsupported output format %q", irminFlags.output.format)
	}
}
