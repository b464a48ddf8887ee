package topology

import "time"

// Mode is the consistency rule a service follows for the primary role.
type Mode string

const (
	// ModeOnlyOne keeps a single primary; promoting one endpoint demotes the rest.
	ModeOnlyOne Mode = "only_one"
	// ModeMany lets any number of endpoints be primary at once.
	ModeMany Mode = "many"
)

const (
	DefaultStatusMethod    = "GET"
	DefaultPriorityMethod  = "PUT"
	DefaultStatusTimeout   = 2000  // Milliseconds
	DefaultPriorityTimeout = 10000 // Milliseconds
	DefaultPrimaryParams   = "new_state=primary"
	DefaultSecondaryParams = "new_state=secondary"
)

// StatusCall describes how to ask an endpoint for its current role.
type StatusCall struct {
	URL     string `yaml:"url" json:"url"`
	Method  string `yaml:"method,omitempty" json:"method,omitempty"`
	Timeout int    `yaml:"timeout,omitempty" json:"timeout,omitempty"` // Milliseconds
	Body    any    `yaml:"body,omitempty" json:"body,omitempty"`
}

// PriorityParams are the raw query strings appended to the priority URL for each role.
type PriorityParams struct {
	Primary   string `yaml:"primary,omitempty" json:"primary,omitempty"`
	Secondary string `yaml:"secondary,omitempty" json:"secondary,omitempty"`
}

// PriorityCall describes how to change an endpoint's role.
type PriorityCall struct {
	URL     string         `yaml:"url" json:"url"`
	Method  string         `yaml:"method,omitempty" json:"method,omitempty"`
	Timeout int            `yaml:"timeout,omitempty" json:"timeout,omitempty"` // Milliseconds
	Body    any            `yaml:"body,omitempty" json:"body,omitempty"`
	Params  PriorityParams `yaml:"params,omitempty" json:"params,omitempty"`
}

// Endpoint is one managed instance of a service. The status URL identifies it.
type Endpoint struct {
	Status   StatusCall   `yaml:"status" json:"status"`
	Priority PriorityCall `yaml:"priority" json:"priority"`
}

// StatusTimeout is the status call timeout with the default applied.
func (e Endpoint) StatusTimeout() time.Duration {
	return millis(e.Status.Timeout, DefaultStatusTimeout)
}

// PriorityTimeout is the priority call timeout with the default applied.
func (e Endpoint) PriorityTimeout() time.Duration {
	return millis(e.Priority.Timeout, DefaultPriorityTimeout)
}

// PrimaryParams is the query string for the "become primary" call.
func (e Endpoint) PrimaryParams() string {
	if e.Priority.Params.Primary != "" {
		return e.Priority.Params.Primary
	}
	return DefaultPrimaryParams
}

// SecondaryParams is the query string for the "become secondary" call.
func (e Endpoint) SecondaryParams() string {
	if e.Priority.Params.Secondary != "" {
		return e.Priority.Params.Secondary
	}
	return DefaultSecondaryParams
}

func millis(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Millisecond
}

// Service is a named group of endpoints sharing a mode.
type Service struct {
	Name      string
	Mode      Mode
	Endpoints []Endpoint
}

// ServiceConfig is the per-service settings exposed to the dashboard.
type ServiceConfig struct {
	PrimaryMode Mode `json:"primary_mode"`
}

// Declarative document form.

type callTemplate struct {
	Path    string         `yaml:"path"`
	Method  string         `yaml:"method"`
	Timeout int            `yaml:"timeout"`
	Body    any            `yaml:"body"`
	Params  PriorityParams `yaml:"params"`
}

type typeDecl struct {
	Name     string       `yaml:"name" validate:"required"`
	Status   callTemplate `yaml:"status"`
	Priority callTemplate `yaml:"priority"`
}

type serviceDecl struct {
	Name        string   `yaml:"name" validate:"required"`
	Type        string   `yaml:"type" validate:"required"`
	PrimaryMode Mode     `yaml:"primary_mode" validate:"omitempty,oneof=only_one many"`
	URLs        []string `yaml:"url" validate:"required,min=1,dive,required"`
}

type document struct {
	Types    []typeDecl    `yaml:"Types"`
	Services []serviceDecl `yaml:"Services"`
}
