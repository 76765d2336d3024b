package agent

import (
	"context"
	"testing"
)

type namedTool struct{ name string }

func (t namedTool) Spec() ToolSpec { return ToolSpec{Name: t.name, Description: "stub"} }
func (t namedTool) Invoke(context.Context, ToolRequest) (ToolResponse, error) {
	return ToolResponse{Content: t.name}, nil
}

func TestCatalogRegisterAndLookup(t *testing.T) {
	catalog := NewStaticToolCatalog([]Tool{namedTool{"Find_Buses"}, namedTool{"confirm_booking"}})

	if _, _, ok := catalog.Lookup("find_buses"); !ok {
		t.Fatal("lookup should be case-insensitive")
	}
	if _, _, ok := catalog.Lookup(" Confirm_Booking "); !ok {
		t.Fatal("lookup should trim whitespace")
	}
	if _, _, ok := catalog.Lookup("missing"); ok {
		t.Fatal("unexpected hit for unregistered tool")
	}
}

func TestCatalogRejectsDuplicates(t *testing.T) {
	catalog := NewStaticToolCatalog(nil)
	if err := catalog.Register(namedTool{"echo"}); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if err := catalog.Register(namedTool{"ECHO"}); err == nil {
		t.Fatal("duplicate name (case-insensitive) must be rejected")
	}
	if err := catalog.Register(namedTool{""}); err == nil {
		t.Fatal("empty name must be rejected")
	}
	if err := catalog.Register(nil); err == nil {
		t.Fatal("nil tool must be rejected")
	}
}

func TestCatalogPreservesRegistrationOrder(t *testing.T) {
	names := []string{"charlie", "alpha", "bravo"}
	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, namedTool{name})
	}
	catalog := NewStaticToolCatalog(tools)

	specs := catalog.Specs()
	if len(specs) != len(names) {
		t.Fatalf("expected %d specs, got %d", len(names), len(specs))
	}
	for i, name := range names {
		if specs[i].Name != name {
			t.Fatalf("spec %d: got %q, want %q", i, specs[i].Name, name)
		}
	}
}
