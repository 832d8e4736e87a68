package hubproxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Registration payload formats sent to the gateway.
const (
	FormatStructured = "structured"
	FormatFlat       = "flat"
)

const defaultTransport = "SSE"

// Endpoint is where the gateway reaches a registered server.
type Endpoint struct {
	Transport string `json:"transport"`
	URL       string `json:"url"`
}

// Registration is a server registration after normalization.
type Registration struct {
	ID           string
	Name         string
	Version      string
	Description  string
	Endpoint     Endpoint
	Capabilities json.RawMessage
}

// registrationInput accepts both the flat and the structured shape.
type registrationInput struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	URL          string          `json:"url"`
	Transport    string          `json:"transport"`
	Endpoint     *Endpoint       `json:"endpoint"`
	Capabilities json.RawMessage `json:"capabilities"`
}

type structuredRegistration struct {
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name"`
	Version      string          `json:"version,omitempty"`
	Description  string          `json:"description,omitempty"`
	Endpoint     Endpoint        `json:"endpoint"`
	Capabilities json.RawMessage `json:"capabilities,omitempty"`
}

type flatRegistration struct {
	Name         string          `json:"name"`
	URL          string          `json:"url"`
	Transport    string          `json:"transport"`
	Description  string          `json:"description,omitempty"`
	ID           string          `json:"id,omitempty"`
	Version      string          `json:"version,omitempty"`
	Capabilities json.RawMessage `json:"capabilities,omitempty"`
}

// ParseRegistration decodes either registration shape and normalizes it:
// endpoint fields win over flat ones, transport defaults to SSE and is
// upper-cased, name defaults to id.
func ParseRegistration(data []byte) (*Registration, error) {
	var in registrationInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, badRegistration("malformed JSON: %v", err)
	}

	reg := &Registration{
		ID:           strings.TrimSpace(in.ID),
		Name:         strings.TrimSpace(in.Name),
		Version:      in.Version,
		Description:  in.Description,
		Endpoint:     Endpoint{URL: in.URL, Transport: in.Transport},
		Capabilities: in.Capabilities,
	}
	if in.Endpoint != nil {
		if in.Endpoint.URL != "" {
			reg.Endpoint.URL = in.Endpoint.URL
		}
		if in.Endpoint.Transport != "" {
			reg.Endpoint.Transport = in.Endpoint.Transport
		}
	}
	if string(reg.Capabilities) == "null" {
		reg.Capabilities = nil
	}

	reg.Endpoint.URL = strings.TrimSpace(reg.Endpoint.URL)
	reg.Endpoint.Transport = strings.ToUpper(strings.TrimSpace(reg.Endpoint.Transport))
	if reg.Endpoint.Transport == "" {
		reg.Endpoint.Transport = defaultTransport
	}
	if reg.Name == "" {
		reg.Name = reg.ID
	}

	if reg.Name == "" {
		return nil, badRegistration("id or name is required")
	}
	if reg.Endpoint.URL == "" {
		return nil, badRegistration("url is required")
	}
	return reg, nil
}

// Encode renders the registration in the given gateway format.
func (r *Registration) Encode(format string) ([]byte, error) {
	switch format {
	case FormatFlat:
		return json.Marshal(flatRegistration{
			Name:         r.Name,
			URL:          r.Endpoint.URL,
			Transport:    r.Endpoint.Transport,
			Description:  r.Description,
			ID:           r.ID,
			Version:      r.Version,
			Capabilities: r.Capabilities,
		})
	case FormatStructured, "":
		return json.Marshal(structuredRegistration{
			ID:           r.ID,
			Name:         r.Name,
			Version:      r.Version,
			Description:  r.Description,
			Endpoint:     r.Endpoint,
			Capabilities: r.Capabilities,
		})
	default:
		return nil, fmt.Errorf("unknown registration format %q", format)
	}
}

// encodeRegistration is the body rewrite of the registry route.
func (p *Proxy) encodeRegistration(raw []byte) ([]byte, error) {
	reg, err := ParseRegistration(raw)
	if err != nil {
		return nil, err
	}
	return reg.Encode(p.registrationFormat)
}

func badRegistration(format string, args ...interface{}) error {
	return &StatusError{
		Status: http.StatusBadRequest,
		Err:    fmt.Errorf("%w: %s", ErrInvalidRegistration, fmt.Sprintf(format, args...)),
	}
}
