package priority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-priority-dashboard/auth"
	apperrors "github.com/jrsteele09/go-priority-dashboard/internal/errors"
	"github.com/jrsteele09/go-priority-dashboard/internal/metrics"
	"github.com/jrsteele09/go-priority-dashboard/internal/utils"
	"github.com/jrsteele09/go-priority-dashboard/topology"
	"github.com/rs/zerolog/log"
)

const maxUpstreamBody = 64 << 10

const (
	kindStatus    = "status"
	kindPrimary   = "primary"
	kindSecondary = "secondary"
)

// TopologySource yields the current service topology.
type TopologySource interface {
	Load() (*topology.Topology, error)
}

// HeaderSource builds the outbound Authorization header for a principal.
type HeaderSource interface {
	AuthorizationHeader(ctx context.Context, principal *auth.Principal) string
}

// Orchestrator queries and changes endpoint roles on behalf of a principal.
type Orchestrator struct {
	topology   TopologySource
	headers    HeaderSource
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// OrchestratorOption defines a function type to modify the Orchestrator instance.
type OrchestratorOption func(*Orchestrator)

func WithHTTPClient(httpClient *http.Client) OrchestratorOption {
	return func(o *Orchestrator) {
		o.httpClient = httpClient
	}
}

func WithMetrics(m *metrics.Metrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func NewOrchestrator(topologySource TopologySource, headers HeaderSource, options ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		topology:   topologySource,
		headers:    headers,
		httpClient: &http.Client{},
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// QueryAllStatuses asks every endpoint of every service for its state. Endpoints of one
// service are queried concurrently; services are processed one after another. A failed
// endpoint is reported as unreachable and never fails the batch.
func (o *Orchestrator) QueryAllStatuses(ctx context.Context, principal *auth.Principal) (map[string][]EndpointStatus, error) {
	topo, err := o.topology.Load()
	if err != nil {
		return nil, err
	}

	header := o.headers.AuthorizationHeader(ctx, principal)
	result := make(map[string][]EndpointStatus, len(topo.ServiceNames()))

	for _, name := range topo.ServiceNames() {
		endpoints := topo.Endpoints(name)
		statuses := make([]EndpointStatus, len(endpoints))

		var wg sync.WaitGroup
		for i, ep := range endpoints {
			wg.Add(1)
			go func(i int, ep topology.Endpoint) {
				defer wg.Done()
				statuses[i] = o.queryStatus(ctx, name, ep, header)
			}(i, ep)
		}
		wg.Wait()

		result[name] = statuses
	}
	return result, nil
}

func (o *Orchestrator) queryStatus(ctx context.Context, service string, ep topology.Endpoint, header string) EndpointStatus {
	method := strings.ToUpper(ep.Status.Method)
	if method != http.MethodPost && method != http.MethodPut {
		method = http.MethodGet
	}
	status := EndpointStatus{URL: ep.Status.URL, Status: StatusUnreachable, Method: method}

	body, err := o.call(ctx, kindStatus, service, method, ep.Status.URL, ep.Status.Body, ep.StatusTimeout(), header)
	if err != nil {
		log.Warn().Err(err).Str("url", ep.Status.URL).Msg("Service status check failed")
		return status
	}

	var reported struct {
		Hostname *string `json:"hostname"`
		State    string  `json:"state"`
	}
	if err := json.Unmarshal(body, &reported); err != nil {
		log.Warn().Err(err).Str("url", ep.Status.URL).Msg("Service status response is not valid JSON")
		return status
	}

	log.Debug().
		Str("url", ep.Status.URL).
		Str("hostname", utils.Value(reported.Hostname)).
		Str("state", reported.State).
		Msg("Service status")

	status.Hostname = reported.Hostname
	status.Status = reported.State
	return status
}

// SetPrimary promotes the endpoint whose status URL equals url. In only_one mode every other
// endpoint is then demoted concurrently; demotion failures are reported in the Outcome only.
func (o *Orchestrator) SetPrimary(ctx context.Context, service, url string, principal *auth.Principal) (Outcome, error) {
	topo, err := o.topology.Load()
	if err != nil {
		return Outcome{}, err
	}

	endpoints := topo.Endpoints(service)
	target := -1
	for i, ep := range endpoints {
		if ep.Status.URL == url {
			target = i
			break
		}
	}
	if target < 0 {
		return Outcome{}, fmt.Errorf("%w: %s %s", apperrors.ErrInvalidTarget, service, url)
	}

	mode := topo.Mode(service)
	header := o.headers.AuthorizationHeader(ctx, principal)
	log.Debug().Str("service", service).Str("url", url).Str("mode", string(mode)).Int("endpoint_count", len(endpoints)).Msg("Priority change request")

	outcome := Outcome{Primary: o.changeRole(ctx, kindPrimary, service, endpoints[target], header)}
	if !outcome.Primary.OK() {
		log.Err(outcome.Primary.Err).Str("service", service).Str("url", url).Msg("Priority change error")
		return outcome, outcome.Primary.Err
	}

	if mode == topology.ModeOnlyOne {
		outcome.Demotions = o.demoteOthers(ctx, service, endpoints, target, header)
		for _, failed := range outcome.FailedDemotions() {
			log.Warn().Err(failed.Err).Str("service", service).Str("url", failed.URL).Msg("Secondary demotion failed")
		}
	}

	log.Info().Str("service", service).Str("url", url).Str("mode", string(mode)).Msg("Server priority changed successfully")
	return outcome, nil
}

func (o *Orchestrator) demoteOthers(ctx context.Context, service string, endpoints []topology.Endpoint, target int, header string) []CallResult {
	demotions := make([]CallResult, 0, len(endpoints)-1)
	results := make([]CallResult, len(endpoints))

	var wg sync.WaitGroup
	for i, ep := range endpoints {
		if i == target {
			continue
		}
		wg.Add(1)
		go func(i int, ep topology.Endpoint) {
			defer wg.Done()
			results[i] = o.changeRole(ctx, kindSecondary, service, ep, header)
		}(i, ep)
	}
	wg.Wait()

	for i, r := range results {
		if i != target {
			demotions = append(demotions, r)
		}
	}
	return demotions
}

// SetSecondary demotes a single endpoint of a many-mode service. The endpoint is the first
// whose status URL starts with url, so a base URL is enough.
func (o *Orchestrator) SetSecondary(ctx context.Context, service, url string, principal *auth.Principal) (CallResult, error) {
	topo, err := o.topology.Load()
	if err != nil {
		return CallResult{}, err
	}

	svc, ok := topo.Service(service)
	if !ok {
		return CallResult{}, fmt.Errorf("%w: %s", apperrors.ErrInvalidTarget, service)
	}
	if svc.Mode != topology.ModeMany {
		return CallResult{}, fmt.Errorf("%w: operation is only available for many mode (current mode: %s)", apperrors.ErrUnsupportedOperation, svc.Mode)
	}
	if url == "" {
		return CallResult{}, fmt.Errorf("%w: url is required", apperrors.ErrInvalidTarget)
	}

	var target *topology.Endpoint
	for i := range svc.Endpoints {
		if strings.HasPrefix(svc.Endpoints[i].Status.URL, url) {
			target = &svc.Endpoints[i]
			break
		}
	}
	if target == nil {
		return CallResult{}, fmt.Errorf("%w: %s %s", apperrors.ErrInvalidTarget, service, url)
	}

	header := o.headers.AuthorizationHeader(ctx, principal)
	result := o.changeRole(ctx, kindSecondary, service, *target, header)
	if !result.OK() {
		log.Err(result.Err).Str("service", service).Str("url", url).Msg("Set secondary error")
		return result, result.Err
	}

	log.Info().Str("service", service).Str("url", target.Status.URL).Msg("Secondary status set successfully")
	return result, nil
}

// changeRole issues the priority call of ep with the primary or secondary parameters.
func (o *Orchestrator) changeRole(ctx context.Context, kind, service string, ep topology.Endpoint, header string) CallResult {
	params := ep.SecondaryParams()
	if kind == kindPrimary {
		params = ep.PrimaryParams()
	}

	method := strings.ToUpper(ep.Priority.Method)
	if method != http.MethodPost && method != http.MethodPut {
		method = http.MethodGet
	}

	result := CallResult{URL: ep.Status.URL}
	_, err := o.call(ctx, kind, service, method, ep.Priority.URL+"?"+params, ep.Priority.Body, ep.PriorityTimeout(), header)
	if err != nil {
		result.Err = err
		result.Error = err.Error()
		var upstream *apperrors.UpstreamError
		if apperrors.As(err, &upstream) {
			result.StatusCode = upstream.StatusCode
		}
		return result
	}
	result.StatusCode = http.StatusOK
	return result
}

// call performs one outbound request and returns the response body. Non-2xx answers are
// returned as *errors.UpstreamError.
func (o *Orchestrator) call(ctx context.Context, kind, service, method, url string, body any, timeout time.Duration, header string) ([]byte, error) {
	start := time.Now()
	data, err := o.do(ctx, service, method, url, body, timeout, header)

	result := "ok"
	switch {
	case apperrors.Is(err, apperrors.ErrForbidden):
		result = "forbidden"
	case err != nil:
		result = "error"
	}
	o.metrics.ObserveOutbound(kind, result, time.Since(start).Seconds())
	return data, err
}

func (o *Orchestrator) do(ctx context.Context, service, method, url string, body any, timeout time.Duration, header string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if method != http.MethodGet {
		if body == nil {
			body = map[string]any{}
		}
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if header != "" {
		req.Header.Set("Authorization", header)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &apperrors.UpstreamError{
			Service:    service,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}
	return data, nil
}
