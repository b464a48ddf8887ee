package topology

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Topology is an immutable snapshot of the configured services.
type Topology struct {
	order       []string
	services    map[string]*Service
	declarative bool
}

// Parse builds a topology from a YAML document. JSON input is accepted as YAML.
func Parse(data []byte) (*Topology, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("[Parse] %w", err)
	}

	t := &Topology{services: map[string]*Service{}}
	if len(root.Content) == 0 {
		return t, nil
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("[Parse] top level must be a mapping")
	}

	var doc document
	if err := top.Decode(&doc); err != nil {
		return nil, fmt.Errorf("[Parse] %w", err)
	}

	if hasKey(top, "Types") && hasKey(top, "Services") {
		t.declarative = true
		if err := t.expand(doc); err != nil {
			return nil, err
		}
		return t, nil
	}

	if err := t.passThrough(top); err != nil {
		return nil, err
	}
	return t, nil
}

func hasKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return true
		}
	}
	return false
}

// expand turns type and service declarations into endpoints.
func (t *Topology) expand(doc document) error {
	types := make(map[string]typeDecl, len(doc.Types))
	for _, td := range doc.Types {
		if err := validate.Struct(td); err != nil {
			log.Warn().Err(err).Msg("Skipping invalid type declaration")
			continue
		}
		types[td.Name] = td
	}

	for _, sd := range doc.Services {
		if err := validate.Struct(sd); err != nil {
			log.Warn().Err(err).Str("service", sd.Name).Msg("Skipping invalid service declaration")
			continue
		}
		td, ok := types[sd.Type]
		if !ok {
			log.Warn().Str("service", sd.Name).Str("type", sd.Type).Msg("Type not found for service")
			continue
		}

		mode := sd.PrimaryMode
		if mode == "" {
			mode = ModeOnlyOne
		}
		svc := &Service{Name: sd.Name, Mode: mode}
		for _, base := range sd.URLs {
			svc.Endpoints = append(svc.Endpoints, td.endpoint(base))
		}
		if err := t.add(svc); err != nil {
			return err
		}
	}
	return nil
}

func (td typeDecl) endpoint(base string) Endpoint {
	return Endpoint{
		Status: StatusCall{
			URL:     base + td.Status.Path,
			Method:  orDefault(strings.ToUpper(td.Status.Method), DefaultStatusMethod),
			Timeout: orDefaultInt(td.Status.Timeout, DefaultStatusTimeout),
			Body:    td.Status.Body,
		},
		Priority: PriorityCall{
			URL:     base + td.Priority.Path,
			Method:  orDefault(strings.ToUpper(td.Priority.Method), DefaultPriorityMethod),
			Timeout: orDefaultInt(td.Priority.Timeout, DefaultPriorityTimeout),
			Body:    td.Priority.Body,
			Params:  td.Priority.Params,
		},
	}
}

// passThrough reads the already expanded form: service name to endpoint list.
func (t *Topology) passThrough(top *yaml.Node) error {
	for i := 0; i+1 < len(top.Content); i += 2 {
		name := top.Content[i].Value
		var endpoints []Endpoint
		if err := top.Content[i+1].Decode(&endpoints); err != nil {
			return fmt.Errorf("[Parse] service %q: %w", name, err)
		}
		if err := t.add(&Service{Name: name, Mode: ModeOnlyOne, Endpoints: endpoints}); err != nil {
			return err
		}
	}
	return nil
}

func (t *Topology) add(svc *Service) error {
	seen := make(map[string]struct{}, len(svc.Endpoints))
	for _, ep := range svc.Endpoints {
		if _, dup := seen[ep.Status.URL]; dup {
			return fmt.Errorf("[Parse] service %q lists status url %q more than once", svc.Name, ep.Status.URL)
		}
		seen[ep.Status.URL] = struct{}{}
	}

	if _, exists := t.services[svc.Name]; exists {
		log.Warn().Str("service", svc.Name).Msg("Service declared more than once, last declaration wins")
	} else {
		t.order = append(t.order, svc.Name)
	}
	t.services[svc.Name] = svc
	return nil
}

// ServiceNames returns service names in declaration order.
func (t *Topology) ServiceNames() []string {
	return slices.Clone(t.order)
}

// Service returns the named service.
func (t *Topology) Service(name string) (Service, bool) {
	svc, ok := t.services[name]
	if !ok {
		return Service{}, false
	}
	return Service{Name: svc.Name, Mode: svc.Mode, Endpoints: slices.Clone(svc.Endpoints)}, true
}

// Endpoints returns the endpoints of a service, or nil for an unknown service.
func (t *Topology) Endpoints(name string) []Endpoint {
	svc, ok := t.services[name]
	if !ok {
		return nil
	}
	return slices.Clone(svc.Endpoints)
}

// Mode returns the service's mode. Unknown services report ModeOnlyOne.
func (t *Topology) Mode(name string) Mode {
	if svc, ok := t.services[name]; ok && svc.Mode != "" {
		return svc.Mode
	}
	return ModeOnlyOne
}

// StatusURLs returns the status URL of every endpoint of the service.
func (t *Topology) StatusURLs(name string) []string {
	svc, ok := t.services[name]
	if !ok {
		return nil
	}
	urls := make([]string, 0, len(svc.Endpoints))
	for _, ep := range svc.Endpoints {
		urls = append(urls, ep.Status.URL)
	}
	return urls
}

// AllStatusURLs maps every service to its status URLs.
func (t *Topology) AllStatusURLs() map[string][]string {
	all := make(map[string][]string, len(t.order))
	for _, name := range t.order {
		all[name] = t.StatusURLs(name)
	}
	return all
}

// Configs returns per-service settings. The expanded form carries none.
func (t *Topology) Configs() map[string]ServiceConfig {
	configs := map[string]ServiceConfig{}
	if !t.declarative {
		return configs
	}
	for _, name := range t.order {
		configs[name] = ServiceConfig{PrimaryMode: t.Mode(name)}
	}
	return configs
}

// Declarative reports whether the topology came from Types/Services declarations.
func (t *Topology) Declarative() bool {
	return t.declarative
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func orDefaultInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
