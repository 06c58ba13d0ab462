package mcpserver

import "testing"

func TestResourceTemplatesAdvertised(t *testing.T) {
	templates := resourceTemplates()
	if len(templates) != 1 || templates[0].URITemplate != resourceURITemplate {
		t.Fatalf("unexpected resource templates: %+v", templates)
	}
}

func TestToolDefinitionsCoverAllThreeTools(t *testing.T) {
	defs := toolDefinitions()
	want := map[string]bool{"store_qa": true, "query_qa": true, "merge_knowledge": true}
	if len(defs) != len(want) {
		t.Fatalf("expected %d tool definitions, got %d", len(want), len(defs))
	}
	for _, d := range defs {
		if !want[d.Name] {
			t.Fatalf("unexpected tool %q", d.Name)
		}
		delete(want, d.Name)
	}
	if len(want) != 0 {
		t.Fatalf("missing tool definitions: %v", want)
	}
}

func TestParseKnowledgeURI(t *testing.T) {
	topic, query, err := parseKnowledgeURI("knowledge://golang%20concurrency/how%20do%20channels%20work")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if topic != "golang concurrency" || query != "how do channels work" {
		t.Fatalf("unexpected parse result: topic=%q query=%q", topic, query)
	}

	if _, _, err := parseKnowledgeURI("not-a-knowledge-uri"); err == nil {
		t.Fatal("expected error for unsupported uri scheme")
	}

	if _, _, err := parseKnowledgeURI("knowledge://onlytopic"); err == nil {
		t.Fatal("expected error for missing query segment")
	}
}
