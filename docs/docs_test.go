package docs

import (
	"strings"
	"testing"
)

func TestSwaggerInfoRegistered(t *testing.T) {
	if SwaggerInfo == nil {
		t.Fatal("swagger info not initialized")
	}
	if SwaggerInfo.Title == "" {
		t.Fatal("swagger info missing title")
	}
}

func TestSwaggerDocListsScoreRoutes(t *testing.T) {
	doc := SwaggerInfo.ReadDoc()
	for _, route := range []string{"/api/cot/dashboard", "/api/cot/markets/{id}", "/api/collect/cot"} {
		if !strings.Contains(doc, route) {
			t.Errorf("expected %s in swagger doc", route)
		}
	}
	if !strings.Contains(doc, "COT Sentinel API") {
		t.Error("expected title to be rendered into the doc")
	}
}
