package functions

import (
	"context"
	"fmt"
	"testing"

	"google.golang.org/genai"

	"github.com/openmic/gemlive/protocol"
)

func decl(name string) *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{Name: name}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(decl("a"), nil); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if err := r.Register(decl("a"), nil); err == nil {
		t.Error("duplicate Register() error = nil, want error")
	}
	if err := r.Register(&genai.FunctionDeclaration{}, nil); err == nil {
		t.Error("unnamed Register() error = nil, want error")
	}
}

func TestRegistry_DeclarationsOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		if err := r.Register(decl(name), nil); err != nil {
			t.Fatal(err)
		}
	}
	decls := r.Declarations()
	if len(decls) != 3 {
		t.Fatalf("declarations length = %d, want 3", len(decls))
	}
	for i, want := range []string{"c", "a", "b"} {
		if decls[i].Name != want {
			t.Errorf("declarations[%d] = %q, want %q", i, decls[i].Name, want)
		}
	}
}

func TestRegistry_DeclarationsEmpty(t *testing.T) {
	if got := NewRegistry().Declarations(); got != nil {
		t.Errorf("Declarations() = %v, want nil", got)
	}
}

func TestCallBatch_OneResultPerCallInOrder(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(decl("ok"), func(_ context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"echo": args["v"]}, nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(decl("fail"), func(context.Context, map[string]any) (map[string]any, error) {
		return nil, fmt.Errorf("boom")
	}); err != nil {
		t.Fatal(err)
	}

	calls := []protocol.FunctionCall{
		{ID: "1", Name: "ok", Args: map[string]any{"v": "first"}},
		{ID: "2", Name: "fail"},
		{ID: "3", Name: "missing"},
		{ID: "4", Name: "ok", Args: map[string]any{"v": "last"}},
	}
	results := r.CallBatch(context.Background(), calls)

	if len(results) != len(calls) {
		t.Fatalf("results length = %d, want %d", len(results), len(calls))
	}
	for i, call := range calls {
		if results[i].ID != call.ID || results[i].Name != call.Name {
			t.Errorf("results[%d] = {%s %s}, want {%s %s}",
				i, results[i].ID, results[i].Name, call.ID, call.Name)
		}
	}

	if got := results[0].Response["echo"]; got != "first" {
		t.Errorf("results[0] response = %v", results[0].Response)
	}
	if got, _ := results[1].Response["error"].(string); got != "boom" {
		t.Errorf("results[1] response = %v", results[1].Response)
	}
	if got, _ := results[2].Response["error"].(string); got != "unknown function: missing" {
		t.Errorf("results[2] response = %v", results[2].Response)
	}
	if got := results[3].Response["echo"]; got != "last" {
		t.Errorf("results[3] response = %v", results[3].Response)
	}
}

func TestCallBatch_PanicBecomesErrorResult(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(decl("panics"), func(context.Context, map[string]any) (map[string]any, error) {
		panic("oops")
	}); err != nil {
		t.Fatal(err)
	}

	results := r.CallBatch(context.Background(), []protocol.FunctionCall{{ID: "1", Name: "panics"}})
	if len(results) != 1 {
		t.Fatalf("results length = %d, want 1", len(results))
	}
	if _, ok := results[0].Response["error"]; !ok {
		t.Errorf("response = %v, want an error entry", results[0].Response)
	}
}

func TestDemoSet(t *testing.T) {
	r := Demo()
	if r.Len() != 2 {
		t.Fatalf("demo set size = %d, want 2", r.Len())
	}

	results := r.CallBatch(context.Background(), []protocol.FunctionCall{
		{ID: "1", Name: "get_current_weather", Args: map[string]any{"location": "Oslo"}},
	})
	if got, _ := results[0].Response["status"].(string); got != "success" {
		t.Errorf("weather response = %v", results[0].Response)
	}
}
