// Package board renders the static kanban visualization from an export
// snapshot.
package board

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/srstomp/ohno/internal/export"
)

//go:embed template.html
var templateHTML string

// dataMarker is the placeholder the template ships with; generation
// replaces it with the real snapshot.
const dataMarker = "window.KANBAN_DATA = {};"

// Generate renders the board HTML with the snapshot injected.
func Generate(snap *export.Snapshot) ([]byte, error) {
	if !strings.Contains(templateHTML, dataMarker) {
		return nil, fmt.Errorf("board template is missing the data marker")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal board data: %w", err)
	}
	// A literal "</script>" inside task text would terminate the script
	// block; escape the closing sequence inside the JSON payload.
	payload := strings.ReplaceAll(string(data), "</", "<\\/")

	html := strings.Replace(templateHTML, dataMarker,
		"window.KANBAN_DATA = "+payload+";", 1)
	return []byte(html), nil
}

// WriteFile renders the board and writes it to path.
func WriteFile(snap *export.Snapshot, path string) error {
	html, err := Generate(snap)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return fmt.Errorf("write board: %w", err)
	}
	return nil
}

// Placeholder returns the template with an empty snapshot, used by init to
// seed a project before the first sync.
func Placeholder() []byte {
	return []byte(templateHTML)
}
