package persistence

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// FormatForPath guesses the format from a file extension.
func FormatForPath(path string) Format {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return FormatYAML
	}
	return FormatJSON
}

// Encode serializes the full snapshot. YAML output is the same document as
// the JSON one, so that binary blobs stay base64 strings in both formats.
func Encode(state *conversation.State, format Format) ([]byte, error) {
	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "could not encode snapshot")
	}
	if format != FormatYAML {
		return b, nil
	}
	var doc interface{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrap(err, "could not re-read snapshot")
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode snapshot as yaml")
	}
	return out, nil
}

// Decode parses a snapshot of any known shape, backfills fields missing from
// older versions and normalizes the resulting tree.
func Decode(data []byte, format Format) (*conversation.State, error) {
	var doc interface{}
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "could not parse yaml snapshot")
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "could not parse json snapshot")
		}
	}
	root, ok := doc.(map[string]interface{})
	if !ok {
		return nil, errors.New("snapshot is not an object")
	}

	Backfill(root)

	b, err := json.Marshal(root)
	if err != nil {
		return nil, errors.Wrap(err, "could not re-encode snapshot")
	}
	state := &conversation.State{}
	if err := json.Unmarshal(b, state); err != nil {
		return nil, errors.Wrap(err, "could not decode snapshot")
	}
	return conversation.Normalize(state), nil
}
