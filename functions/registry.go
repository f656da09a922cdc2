// Package functions maps model-callable function names to implementations
// and answers tool-call batches.
package functions

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/openmic/gemlive/protocol"
)

// Handler executes one function call with the model-supplied named arguments.
// Handlers may block; the session invokes batches off the receive loop.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

type entry struct {
	decl *genai.FunctionDeclaration
	fn   Handler
}

// Registry is the name → callable mapping declared to the model at setup.
type Registry struct {
	order   []string
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a function. Names must be unique.
func (r *Registry) Register(decl *genai.FunctionDeclaration, fn Handler) error {
	if decl == nil || decl.Name == "" {
		return fmt.Errorf("function declaration requires a name")
	}
	if _, exists := r.entries[decl.Name]; exists {
		return fmt.Errorf("function %q already registered", decl.Name)
	}
	r.order = append(r.order, decl.Name)
	r.entries[decl.Name] = entry{decl: decl, fn: fn}
	return nil
}

// Declarations returns the declarations in registration order, for the setup
// frame's tools list. Nil when nothing is registered.
func (r *Registry) Declarations() []*genai.FunctionDeclaration {
	if len(r.order) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(r.order))
	for _, name := range r.order {
		decls = append(decls, r.entries[name].decl)
	}
	return decls
}

// Len reports the number of registered functions.
func (r *Registry) Len() int {
	return len(r.order)
}

// CallBatch runs every call in the batch and returns exactly one result per
// call, in batch order, ids preserved. A missing function or a failed
// invocation becomes that call's error result; it never aborts the siblings.
func (r *Registry) CallBatch(ctx context.Context, calls []protocol.FunctionCall) []protocol.FunctionResult {
	results := make([]protocol.FunctionResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, protocol.FunctionResult{
			ID:       call.ID,
			Name:     call.Name,
			Response: r.invoke(ctx, call),
		})
	}
	return results
}

func (r *Registry) invoke(ctx context.Context, call protocol.FunctionCall) (response map[string]any) {
	e, ok := r.entries[call.Name]
	if !ok {
		return map[string]any{"error": fmt.Sprintf("unknown function: %s", call.Name)}
	}

	defer func() {
		if p := recover(); p != nil {
			response = map[string]any{"error": fmt.Sprintf("function %s panicked: %v", call.Name, p)}
		}
	}()

	out, err := e.fn(ctx, call.Args)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	if out == nil {
		out = map[string]any{}
	}
	return out
}
