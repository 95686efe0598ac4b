package cmds

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// printYAML renders v through its JSON form so that json tags name the keys.
func printYAML(w io.Writer, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "could not encode output")
	}
	var doc interface{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "could not encode output as yaml")
	}
	_, err = w.Write(out)
	return err
}

func marker(current bool) string {
	if current {
		return "*"
	}
	return " "
}

func describePart(p conversation.Part) string {
	if p.IsFile() {
		return fmt.Sprintf("[file %s %s %d bytes]", p.File.Name, p.File.MimeType, len(p.File.Data))
	}
	return p.GetText()
}

// printMessage writes one history entry. Model messages show the active
// version and the number of versions.
func printMessage(w io.Writer, idx int, m *conversation.Message) error {
	header := fmt.Sprintf("[%d] %s %s", idx, m.Role, m.ID)
	var body []string
	if m.Role == conversation.RoleModel {
		if len(m.Parts) > 1 {
			header += fmt.Sprintf(" (version %d/%d)", m.ActivePartIndex+1, len(m.Parts))
		}
		if p, ok := m.ActivePart(); ok {
			body = append(body, describePart(p))
		}
	} else {
		for _, p := range m.Parts {
			body = append(body, describePart(p))
		}
	}
	_, err := fmt.Fprintf(w, "%s\n%s\n\n", header, strings.Join(body, "\n"))
	return err
}
