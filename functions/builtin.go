package functions

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Demo returns the built-in demo function set: a canned weather lookup and a
// console line printer. It doubles as the reference for declaring your own
// set at build time.
func Demo() *Registry {
	r := NewRegistry()

	_ = r.Register(&genai.FunctionDeclaration{
		Name:        "get_current_weather",
		Description: "Returns the current weather.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"location": {
					Type:        genai.TypeString,
					Description: "The location to get the weather for.",
				},
			},
			Required: []string{"location"},
		},
	}, getCurrentWeather)

	_ = r.Register(&genai.FunctionDeclaration{
		Name:        "line_printer",
		Description: "Prints a line to the console.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"line": {
					Type:        genai.TypeString,
					Description: "The line to print.",
				},
			},
			Required: []string{"line"},
		},
	}, linePrinter)

	return r
}

func getCurrentWeather(_ context.Context, args map[string]any) (map[string]any, error) {
	location, _ := args["location"].(string)
	return map[string]any{
		"status": "success",
		"response": fmt.Sprintf(
			"The current weather in %s is 72 degrees with scattered thunderstorms.", location),
	}, nil
}

func linePrinter(_ context.Context, args map[string]any) (map[string]any, error) {
	line, ok := args["line"].(string)
	if !ok {
		return nil, fmt.Errorf("line argument must be a string")
	}
	fmt.Printf("  \033[1m :: %s ::\033[0m\n", line)
	return map[string]any{"status": "success"}, nil
}
