package handler

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/swaggo/swag"
)

var routeParam = regexp.MustCompile(`:(\w+)`)

func TestSwaggerDocumentsEveryAPIRoute(t *testing.T) {
	env := newTestEnv(t)

	doc, err := swag.ReadDoc()
	if err != nil {
		t.Fatalf("failed to read swagger doc: %v", err)
	}

	var spec struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal([]byte(doc), &spec); err != nil {
		t.Fatalf("swagger doc is not valid JSON: %v", err)
	}

	checked := 0
	for _, route := range env.app.GetRoutes(true) {
		if route.Method == fiber.MethodHead || !strings.HasPrefix(route.Path, APIPrefix) {
			continue
		}
		path := strings.TrimSuffix(strings.TrimPrefix(route.Path, APIPrefix), "/")
		path = routeParam.ReplaceAllString(path, "{$1}")

		if _, ok := spec.Paths[path][strings.ToLower(route.Method)]; !ok {
			t.Errorf("%s %s is not documented", route.Method, path)
		}
		checked++
	}
	if checked == 0 {
		t.Fatal("expected registered API routes")
	}
}
