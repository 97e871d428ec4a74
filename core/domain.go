package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

const (
	DefaultHost        = "127.0.0.1"
	DefaultProtocol    = "http"
	DefaultMethod      = "POST"
	DefaultContentType = "application/json"
	DefaultMode        = "cors"
	DefaultCredentials = "include"
)

// ProviderInfo identifies the network endpoint a driver is bound to.
type ProviderInfo struct {
	Host     string `json:"host" koanf:"host" mapstructure:"host"`
	Port     int    `json:"port,omitempty" koanf:"port" mapstructure:"port"`
	Root     string `json:"root,omitempty" koanf:"root" mapstructure:"root"`
	Protocol string `json:"protocol,omitempty" koanf:"protocol" mapstructure:"protocol"`
}

type ResponseType string

const (
	ResponseTypeJSON     ResponseType = "json"
	ResponseTypeText     ResponseType = "text"
	ResponseTypeString   ResponseType = "string"
	ResponseTypeFormData ResponseType = "formData"
)

type ResponseSettings struct {
	Type ResponseType `json:"type"`
}

// ServiceSettings describes one remote operation. InputParameters[i] describes
// call argument i; arguments past the end of the schema are ignored.
type ServiceSettings struct {
	Name            string           `json:"name,omitempty"`
	Path            string           `json:"path"`
	Method          string           `json:"method,omitempty"`
	InputParameters []ParameterDef   `json:"inputParameters,omitempty"`
	Response        ResponseSettings `json:"response"`
}

func (s ServiceSettings) DisplayName() string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	return strings.TrimSpace(s.Path)
}

type Position int

const (
	PositionUnknown Position = iota
	PositionBody
	PositionHeader
	PositionQuery
	PositionCookie
)

// ParsePosition accepts the position names and aliases a settings document may
// carry. Anything unrecognized maps to PositionUnknown.
func ParsePosition(value string) Position {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "body":
		return PositionBody
	case "header", "headers":
		return PositionHeader
	case "query", "address", "addr":
		return PositionQuery
	case "cookie", "cookies":
		return PositionCookie
	default:
		return PositionUnknown
	}
}

func (p Position) String() string {
	switch p {
	case PositionBody:
		return "body"
	case PositionHeader:
		return "header"
	case PositionQuery:
		return "query"
	case PositionCookie:
		return "cookie"
	default:
		return "unknown"
	}
}

func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Position) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("core: position must be a string: %w", err)
	}
	*p = ParsePosition(raw)
	return nil
}

type ParameterDef struct {
	Name     string   `json:"name,omitempty"`
	Position Position `json:"position"`
	Type     string   `json:"type,omitempty"`
}

// Bucket holds the contents of one request bucket (body, header, query, cookie).
type Bucket map[string]any

func (b Bucket) Clone() Bucket {
	if b == nil {
		return nil
	}
	out := make(Bucket, len(b))
	for key, value := range b {
		out[key] = value
	}
	return out
}

// FetchOptions is the request being assembled for one invocation. Middleware
// may mutate it, including setting Abort, before dispatch.
type FetchOptions struct {
	Method      string
	Headers     map[string]string
	Body        any
	Query       Bucket
	Mode        string
	Credentials string
	Abort       bool
}

// HookContext is shared by pointer with every hook of one invocation.
type HookContext struct {
	RequestID    string
	Service      ServiceSettings
	Parameters   []any
	FetchOptions *FetchOptions
	Address      string
	Error        error
	Result       any

	mu sync.Mutex
}

// Locked runs fn while holding the context lock. Hooks that run concurrently
// (parallel and group) should mutate the context only through Locked.
func (h *HookContext) Locked(fn func()) {
	if h == nil || fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	fn()
}

// HandlerError carries a remote handler's own error value verbatim.
type HandlerError struct {
	Value any
}

func (e *HandlerError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch typed := e.Value.(type) {
	case string:
		return typed
	case error:
		return typed.Error()
	}
	encoded, err := json.Marshal(e.Value)
	if err != nil {
		return fmt.Sprint(e.Value)
	}
	return string(encoded)
}
