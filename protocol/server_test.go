package protocol

import (
	"errors"
	"testing"
)

func TestDecode_SetupComplete(t *testing.T) {
	frame, err := Decode([]byte(`{"setupComplete":{}}`))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if _, ok := frame.(SetupComplete); !ok {
		t.Errorf("decoded %T, want SetupComplete", frame)
	}
}

func TestDecode_ServerContent(t *testing.T) {
	raw := `{"serverContent":{
		"turnComplete": true,
		"modelTurn":{"parts":[
			{"text":"hi"},
			{"executableCode":{"language":"PYTHON","code":"print(1)"}}
		]},
		"groundingMetadata":{"groundingChunks":[
			{"web":{"title":"Example","uri":"https://example.com"}}
		]}
	}}`
	frame, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	sc, ok := frame.(*ServerContent)
	if !ok {
		t.Fatalf("decoded %T, want *ServerContent", frame)
	}
	if sc.Interrupted {
		t.Error("interrupted = true, want false")
	}
	if !sc.TurnComplete {
		t.Error("turnComplete = false, want true")
	}
	if len(sc.Parts) != 2 {
		t.Fatalf("parts length = %d, want 2", len(sc.Parts))
	}
	if sc.Parts[0].Text != "hi" {
		t.Errorf("text = %q", sc.Parts[0].Text)
	}
	if !sc.Parts[1].ExecutableCode {
		t.Error("executable code marker not set")
	}
	if len(sc.Grounding) != 1 || sc.Grounding[0].Title != "Example" || sc.Grounding[0].URI != "https://example.com" {
		t.Errorf("grounding = %+v", sc.Grounding)
	}
}

func TestDecode_Interrupted(t *testing.T) {
	frame, err := Decode([]byte(`{"serverContent":{"interrupted":true}}`))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	sc := frame.(*ServerContent)
	if !sc.Interrupted {
		t.Error("interrupted = false, want true")
	}
}

func TestDecode_ToolCall(t *testing.T) {
	raw := `{"toolCall":{"functionCalls":[
		{"id":"call-1","name":"get_current_weather","args":{"location":"Reykjavik"}},
		{"id":"call-2","name":"line_printer","args":{"line":"hi"}}
	]}}`
	frame, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	tc, ok := frame.(*ToolCall)
	if !ok {
		t.Fatalf("decoded %T, want *ToolCall", frame)
	}
	if len(tc.Calls) != 2 {
		t.Fatalf("calls length = %d, want 2", len(tc.Calls))
	}
	if tc.Calls[0].ID != "call-1" || tc.Calls[0].Name != "get_current_weather" {
		t.Errorf("calls[0] = %+v", tc.Calls[0])
	}
	if loc, _ := tc.Calls[0].Args["location"].(string); loc != "Reykjavik" {
		t.Errorf("args = %+v", tc.Calls[0].Args)
	}
}

func TestDecode_Error(t *testing.T) {
	frame, err := Decode([]byte(`{"error":{"code":429,"message":"quota"}}`))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	se, ok := frame.(*ServerError)
	if !ok {
		t.Fatalf("decoded %T, want *ServerError", frame)
	}
	if se.Code != 429 || se.Message != "quota" {
		t.Errorf("server error = %+v", se)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"unknown shape", `{"somethingElse":{}}`},
		{"bad base64", `{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"!!!"}}]}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.raw)); err == nil {
				t.Error("Decode() error = nil, want error")
			}
		})
	}

	if _, err := Decode([]byte(`{"somethingElse":{}}`)); !errors.Is(err, ErrUnknownFrame) {
		t.Errorf("error = %v, want ErrUnknownFrame", err)
	}
}

func TestParseAudioMIME(t *testing.T) {
	tests := []struct {
		mime     string
		wantType string
		wantRate int
		wantOK   bool
	}{
		{"audio/pcm;rate=24000", "audio/pcm", 24000, true},
		{"audio/pcm;rate=16000", "audio/pcm", 16000, true},
		{"audio/pcm", "audio/pcm", 0, false},
		{"audio/pcm;rate=abc", "audio/pcm", 0, false},
		{"image/jpeg", "image/jpeg", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			mimeType, rate, ok := ParseAudioMIME(tt.mime)
			if mimeType != tt.wantType || rate != tt.wantRate || ok != tt.wantOK {
				t.Errorf("ParseAudioMIME(%q) = (%q, %d, %v), want (%q, %d, %v)",
					tt.mime, mimeType, rate, ok, tt.wantType, tt.wantRate, tt.wantOK)
			}
		})
	}
}
