package protocol

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// ErrUnknownFrame is returned for messages that decode as JSON but match no
// known frame shape. Callers log and drop these; they are not fatal.
var ErrUnknownFrame = errors.New("unrecognized server frame")

// ServerFrame is one decoded inbound protocol message. Frames are transient:
// decoded, dispatched, discarded.
type ServerFrame interface {
	serverFrame()
}

// SetupComplete acknowledges the setup frame; the session may go live.
type SetupComplete struct{}

func (SetupComplete) serverFrame() {}

// ServerContent is model output: text and/or inline media, possibly an
// interruption marker, possibly grounding metadata.
type ServerContent struct {
	Interrupted  bool
	TurnComplete bool
	Parts        []ServerPart
	Grounding    []GroundingChunk
}

func (*ServerContent) serverFrame() {}

// ServerPart is one part of a model turn. InlineData carries raw bytes,
// already base64-decoded at this boundary.
type ServerPart struct {
	Text           string
	InlineData     *InlineBlob
	ExecutableCode bool
}

type InlineBlob struct {
	MIMEType string
	Data     []byte
}

// GroundingChunk is one search citation attached to a grounded answer.
type GroundingChunk struct {
	Title string
	URI   string
}

// ToolCall is a batch of function invocations requested by the model.
type ToolCall struct {
	Calls []FunctionCall
}

func (*ToolCall) serverFrame() {}

// FunctionCall is one requested invocation, correlated by ID.
type FunctionCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ServerError is an error payload delivered in-band by the service.
type ServerError struct {
	Code    int
	Message string
}

func (*ServerError) serverFrame() {}

// Wire shapes, camelCase per the BidiGenerateContent stream.
type serverEnvelope struct {
	SetupComplete *struct{}      `json:"setupComplete"`
	ServerContent *serverContent `json:"serverContent"`
	ToolCall      *toolCallWire  `json:"toolCall"`
	Error         *serverError   `json:"error"`
}

type serverContent struct {
	Interrupted  bool `json:"interrupted"`
	TurnComplete bool `json:"turnComplete"`
	ModelTurn    *struct {
		Parts []wirePart `json:"parts"`
	} `json:"modelTurn"`
	GroundingMetadata *struct {
		GroundingChunks []struct {
			Web *struct {
				Title string `json:"title"`
				URI   string `json:"uri"`
			} `json:"web"`
		} `json:"groundingChunks"`
	} `json:"groundingMetadata"`
}

type wirePart struct {
	Text       string `json:"text"`
	InlineData *struct {
		MIMEType string `json:"mimeType"`
		Data     string `json:"data"`
	} `json:"inlineData"`
	ExecutableCode *struct {
		Language string `json:"language"`
		Code     string `json:"code"`
	} `json:"executableCode"`
}

type toolCallWire struct {
	FunctionCalls []FunctionCall `json:"functionCalls"`
}

type serverError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Decode parses one raw inbound message into its typed frame. Malformed JSON
// and unrecognized shapes return errors the dispatcher logs and drops.
func Decode(data []byte) (ServerFrame, error) {
	var env serverEnvelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse server frame: %w", err)
	}

	switch {
	case env.SetupComplete != nil:
		return SetupComplete{}, nil

	case env.ServerContent != nil:
		sc := &ServerContent{
			Interrupted:  env.ServerContent.Interrupted,
			TurnComplete: env.ServerContent.TurnComplete,
		}
		if mt := env.ServerContent.ModelTurn; mt != nil {
			for _, p := range mt.Parts {
				part := ServerPart{
					Text:           p.Text,
					ExecutableCode: p.ExecutableCode != nil,
				}
				if p.InlineData != nil {
					raw, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
					if err != nil {
						return nil, fmt.Errorf("failed to decode inline data: %w", err)
					}
					part.InlineData = &InlineBlob{
						MIMEType: p.InlineData.MIMEType,
						Data:     raw,
					}
				}
				sc.Parts = append(sc.Parts, part)
			}
		}
		if gm := env.ServerContent.GroundingMetadata; gm != nil {
			for _, c := range gm.GroundingChunks {
				if c.Web != nil {
					sc.Grounding = append(sc.Grounding, GroundingChunk{
						Title: c.Web.Title,
						URI:   c.Web.URI,
					})
				}
			}
		}
		return sc, nil

	case env.ToolCall != nil:
		return &ToolCall{Calls: env.ToolCall.FunctionCalls}, nil

	case env.Error != nil:
		return &ServerError{Code: env.Error.Code, Message: env.Error.Message}, nil
	}

	return nil, ErrUnknownFrame
}

// ParseAudioMIME splits an inbound audio mime string of the form
// "audio/pcm;rate=24000" into its type and sample rate.
func ParseAudioMIME(mime string) (mimeType string, rate int, ok bool) {
	mimeType, attr, found := strings.Cut(mime, ";")
	if !found {
		return mimeType, 0, false
	}
	rateStr, found := strings.CutPrefix(attr, "rate=")
	if !found {
		return mimeType, 0, false
	}
	rate, err := strconv.Atoi(rateStr)
	if err != nil {
		return mimeType, 0, false
	}
	return mimeType, rate, true
}
