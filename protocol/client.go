package protocol

import (
	"encoding/base64"
	"fmt"

	"github.com/bytedance/sonic"
	"google.golang.org/genai"
)

// AudioMIME returns the mime type string for raw PCM at the given sample rate,
// e.g. "audio/pcm;rate=16000".
func AudioMIME(rate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", rate)
}

// ImageMIME is the mime type used for screen capture frames.
const ImageMIME = "image/jpeg"

// ClientFrame is one outbound protocol message. Frames are immutable once
// constructed and are consumed by the transport send path.
type ClientFrame interface {
	clientFrame()
}

// Marshal serializes a frame to its wire JSON. A failure here is fatal to the
// session: the frame cannot be un-sent, so the caller must tear down.
func Marshal(f ClientFrame) ([]byte, error) {
	data, err := sonic.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", f, err)
	}
	return data, nil
}

// Setup is the first frame on every connection. The BidiGenerateContent
// endpoint accepts snake_case field names inside the setup payload.
type Setup struct {
	Setup SetupPayload `json:"setup"`
}

func (Setup) clientFrame() {}

type SetupPayload struct {
	Model             string           `json:"model"`
	GenerationConfig  GenerationConfig `json:"generation_config"`
	SystemInstruction *Content         `json:"system_instruction,omitempty"`
	Tools             []Tool           `json:"tools"`
}

type GenerationConfig struct {
	ResponseModalities []string     `json:"response_modalities"`
	SpeechConfig       SpeechConfig `json:"speech_config"`
}

type SpeechConfig struct {
	VoiceConfig VoiceConfig `json:"voice_config"`
}

type VoiceConfig struct {
	PrebuiltVoiceConfig PrebuiltVoiceConfig `json:"prebuilt_voice_config"`
}

type PrebuiltVoiceConfig struct {
	VoiceName string `json:"voice_name"`
}

// Tool is one entry in the setup tools list. Exactly one field is set per
// entry: a built-in tool marker or a batch of user function declarations.
type Tool struct {
	GoogleSearch         *struct{}                    `json:"google_search,omitempty"`
	CodeExecution        *struct{}                    `json:"code_execution,omitempty"`
	FunctionDeclarations []*genai.FunctionDeclaration `json:"function_declarations,omitempty"`
}

// Content is a single conversation turn.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is one piece of a turn. Only text parts are sent by this client.
type Part struct {
	Text string `json:"text"`
}

// SetupOptions carries the semantic inputs for a Setup frame.
type SetupOptions struct {
	Model             string
	AudioOutput       bool
	TextOutput        bool
	Voice             string
	SystemInstruction string
	Search            bool
	CodeExecution     bool
	Declarations      []*genai.FunctionDeclaration
}

// NewSetup builds the setup frame. Tool entries keep a fixed order: search,
// code execution, then function declarations.
func NewSetup(o SetupOptions) *Setup {
	var modalities []string
	if o.AudioOutput {
		modalities = append(modalities, "AUDIO")
	}
	if o.TextOutput {
		modalities = append(modalities, "TEXT")
	}

	s := &Setup{Setup: SetupPayload{
		Model: o.Model,
		GenerationConfig: GenerationConfig{
			ResponseModalities: modalities,
			SpeechConfig: SpeechConfig{
				VoiceConfig: VoiceConfig{
					PrebuiltVoiceConfig: PrebuiltVoiceConfig{VoiceName: o.Voice},
				},
			},
		},
		Tools: []Tool{},
	}}

	if o.SystemInstruction != "" {
		s.Setup.SystemInstruction = &Content{
			Parts: []Part{{Text: o.SystemInstruction}},
		}
	}
	if o.Search {
		s.Setup.Tools = append(s.Setup.Tools, Tool{GoogleSearch: &struct{}{}})
	}
	if o.CodeExecution {
		s.Setup.Tools = append(s.Setup.Tools, Tool{CodeExecution: &struct{}{}})
	}
	if len(o.Declarations) > 0 {
		s.Setup.Tools = append(s.Setup.Tools, Tool{FunctionDeclarations: o.Declarations})
	}
	return s
}

// ClientContent carries user text turns.
type ClientContent struct {
	ClientContent ClientContentPayload `json:"clientContent"`
}

func (ClientContent) clientFrame() {}

type ClientContentPayload struct {
	Turns        []Content `json:"turns"`
	TurnComplete bool      `json:"turnComplete"`
}

// NewClientText builds a single-turn user text frame. This client always
// completes the turn; deferred turns are not used here.
func NewClientText(text string) *ClientContent {
	return &ClientContent{ClientContent: ClientContentPayload{
		Turns: []Content{
			{Role: "user", Parts: []Part{{Text: text}}},
		},
		TurnComplete: true,
	}}
}

// RealtimeInput carries binary media (mic audio, screen frames) upstream.
type RealtimeInput struct {
	RealtimeInput RealtimeInputPayload `json:"realtimeInput"`
}

func (RealtimeInput) clientFrame() {}

type RealtimeInputPayload struct {
	MediaChunks []MediaChunk `json:"mediaChunks"`
}

type MediaChunk struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// NewRealtimeMedia wraps one raw media buffer. Audio must already be at the
// rate declared in the mime type; the encoder never resamples.
func NewRealtimeMedia(mimeType string, data []byte) *RealtimeInput {
	return &RealtimeInput{RealtimeInput: RealtimeInputPayload{
		MediaChunks: []MediaChunk{
			{MIMEType: mimeType, Data: base64.StdEncoding.EncodeToString(data)},
		},
	}}
}

// ToolResponse answers a tool call batch. Results must match the originating
// batch 1:1 and keep its order.
type ToolResponse struct {
	ToolResponse ToolResponsePayload `json:"toolResponse"`
}

func (ToolResponse) clientFrame() {}

type ToolResponsePayload struct {
	FunctionResponses []FunctionResult `json:"functionResponses"`
}

// FunctionResult is the outcome of one function invocation, correlated to
// its call by ID.
type FunctionResult struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// NewToolResponse builds the response frame for a completed batch.
func NewToolResponse(results []FunctionResult) *ToolResponse {
	return &ToolResponse{ToolResponse: ToolResponsePayload{FunctionResponses: results}}
}
