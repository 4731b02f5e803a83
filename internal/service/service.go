// Package service routes RPC method names to Vercel API calls.
//
// The dispatcher is stateless per call: the only persistent state is the
// shared API client and the service version, both fixed for the
// service's lifetime. Each method's parameter schema drives validation,
// extraction and the discoverable method catalog from one declaration.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"verceld/internal/vercel"
)

// ServiceName identifies this service on the RPC channel.
const ServiceName = "vercel"

// ErrUnknownMethod is wrapped by dispatch errors for unrecognized
// method names.
var ErrUnknownMethod = errors.New("unknown method")

// API is the remote-access surface the dispatcher calls. *vercel.Client
// implements it; tests substitute a call-counting stand-in.
type API interface {
	Ping(ctx context.Context) (bool, error)
	ListProjects(ctx context.Context, limit int) ([]vercel.Project, error)
	GetProject(ctx context.Context, projectID string) (*vercel.Project, error)
	ListDeployments(ctx context.Context, projectID string, limit int) ([]vercel.Deployment, error)
	GetDeployment(ctx context.Context, deploymentID string) (*vercel.Deployment, error)
	DeploymentEvents(ctx context.Context, deploymentID string) ([]vercel.DeploymentEvent, error)
	UserRaw(ctx context.Context) (json.RawMessage, error)
	ListEnvVars(ctx context.Context, projectID, target string) (json.RawMessage, error)
	SetEnvVar(ctx context.Context, projectID, key, value string, targets []string, envType string) (json.RawMessage, error)
	ListDomains(ctx context.Context, projectID string) (json.RawMessage, error)
	Redeploy(ctx context.Context, deploymentID string) (json.RawMessage, error)
}

// Service dispatches RPC methods to the Vercel API.
type Service struct {
	api     API
	version string
	logger  *slog.Logger
	methods map[string]*method
	catalog []MethodInfo
}

// method ties one catalog entry to its handler. Handlers receive
// arguments already validated against the entry's schema.
type method struct {
	info    MethodInfo
	handler func(s *Service, ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// New creates a service over the given API client.
func New(api API, version string, logger *slog.Logger) *Service {
	s := &Service{
		api:     api,
		version: version,
		logger:  logger,
		methods: make(map[string]*method, len(methodTable)),
	}
	for i := range methodTable {
		m := &methodTable[i]
		s.methods[bareName(m.info.Name)] = m
		s.catalog = append(s.catalog, m.info)
	}
	return s
}

// Name returns the service name used for method prefixes.
func (s *Service) Name() string { return ServiceName }

// Version returns the daemon version string.
func (s *Service) Version() string { return s.version }

// Methods returns the ordered method catalog for discovery.
func (s *Service) Methods() []MethodInfo {
	return s.catalog
}

// bareName strips the service prefix from a method name.
func bareName(name string) string {
	return strings.TrimPrefix(name, ServiceName+".")
}

// Dispatch routes one method call: validate parameters per the method's
// schema, invoke the client, and return a JSON-shaped result. Methods
// are accepted bare ("projects") or prefixed ("vercel.projects").
func (s *Service) Dispatch(ctx context.Context, name string, params map[string]interface{}) (interface{}, error) {
	m, ok := s.methods[bareName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}

	args, err := extractParams(m.info.Params, params)
	if err != nil {
		return nil, err
	}

	return m.handler(s, ctx, args)
}

// OnStart verifies API connectivity once at service startup. An
// explicitly unsuccessful probe logs and still starts; a network-level
// failure fails startup so the daemon never runs in a broken state.
func (s *Service) OnStart(ctx context.Context) error {
	s.logger.Info("Verifying Vercel API connection")

	ok, err := s.api.Ping(ctx)
	if err != nil {
		s.logger.Error("Failed to connect to Vercel API", "error", err)
		return fmt.Errorf("failed to connect to vercel API: %w", err)
	}
	if !ok {
		s.logger.Warn("Vercel API returned unsuccessful response")
		return nil
	}

	s.logger.Info("Vercel API connection verified")
	return nil
}

// HealthStatus is one subsystem's health report.
type HealthStatus struct {
	Healthy   bool    `json:"healthy"`
	LatencyMS float64 `json:"latency_ms,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

// HealthCheck probes each subsystem and reports its status. The only
// subsystem here is the remote API; latency is measured wall-clock
// around the probe alone.
func (s *Service) HealthCheck(ctx context.Context) map[string]HealthStatus {
	checks := make(map[string]HealthStatus, 1)

	start := time.Now()
	ok, err := s.api.Ping(ctx)
	latencyMS := float64(time.Since(start).Microseconds()) / 1000.0

	switch {
	case err != nil:
		checks["vercel_api"] = HealthStatus{Reason: err.Error()}
	case !ok:
		checks["vercel_api"] = HealthStatus{Reason: "API returned non-success status"}
	default:
		checks["vercel_api"] = HealthStatus{Healthy: true, LatencyMS: latencyMS}
	}

	return checks
}
