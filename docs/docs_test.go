package docs

import (
	"encoding/json"
	"testing"

	"github.com/swaggo/swag"
)

func TestDocumentIsRegistered(t *testing.T) {
	raw, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	if err != nil {
		t.Fatalf("ReadDoc: %v", err)
	}
	var doc struct {
		BasePath    string                     `json:"basePath"`
		Paths       map[string]json.RawMessage `json:"paths"`
		Definitions map[string]json.RawMessage `json:"definitions"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("document is not valid JSON: %v", err)
	}
	if doc.BasePath != "/api/v1" {
		t.Fatalf("basePath = %q", doc.BasePath)
	}
	for _, path := range []string{"/events", "/lobbies", "/lobby/start", "/gameservers/rooms", "/admin/tasks"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Fatalf("path %s missing", path)
		}
	}
	if _, ok := doc.Definitions["lobby.Data"]; !ok {
		t.Fatalf("lobby.Data definition missing")
	}
}
