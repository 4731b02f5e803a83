package service

import (
	"context"
	"fmt"

	"verceld/internal/vercel"
)

// methodTable declares every dispatchable method once: catalog entry and
// handler side by side. Dispatch keys and the discovery catalog are both
// derived from it.
var methodTable = []method{
	{
		info: MethodInfo{
			Name:        "health",
			Description: "Check daemon and Vercel API health",
			Params:      []Param{},
		},
		handler: (*Service).health,
	},
	{
		info: MethodInfo{
			Name:        "vercel.projects",
			Description: "List all Vercel projects",
			Params: []Param{
				{Name: "limit", Type: TypeInteger, Default: vercel.DefaultListLimit},
			},
		},
		handler: (*Service).listProjects,
	},
	{
		info: MethodInfo{
			Name:        "vercel.project",
			Description: "Get a specific project by ID or name",
			Params: []Param{
				{Name: "project_id", Type: TypeString, Required: true, aliases: []string{"name"}},
			},
		},
		handler: (*Service).getProject,
	},
	{
		info: MethodInfo{
			Name:        "vercel.deployments",
			Description: "List deployments (optionally filtered by project)",
			Params: []Param{
				{Name: "project_id", Type: TypeString},
				{Name: "limit", Type: TypeInteger, Default: vercel.DefaultListLimit},
			},
		},
		handler: (*Service).listDeployments,
	},
	{
		info: MethodInfo{
			Name:        "vercel.deployment",
			Description: "Get a specific deployment by ID",
			Params: []Param{
				{Name: "deployment_id", Type: TypeString, Required: true, aliases: []string{"id"}},
			},
		},
		handler: (*Service).getDeployment,
	},
	{
		info: MethodInfo{
			Name:        "vercel.logs",
			Description: "Get deployment logs/events",
			Params: []Param{
				{Name: "deployment_id", Type: TypeString, Required: true, aliases: []string{"id"}},
			},
		},
		handler: (*Service).getDeploymentLogs,
	},
	{
		info: MethodInfo{
			Name:        "vercel.user",
			Description: "Get current user info",
			Params:      []Param{},
		},
		handler: (*Service).getUser,
	},
	{
		info: MethodInfo{
			Name:        "vercel.env_vars",
			Description: "List environment variables for a project",
			Params: []Param{
				{Name: "project_id", Type: TypeString, Required: true},
				{Name: "target", Type: TypeString},
			},
		},
		handler: (*Service).listEnvVars,
	},
	{
		info: MethodInfo{
			Name:        "vercel.set_env",
			Description: "Set an environment variable",
			Params: []Param{
				{Name: "project_id", Type: TypeString, Required: true},
				{Name: "key", Type: TypeString, Required: true},
				{Name: "value", Type: TypeString, Required: true},
				{Name: "target", Type: TypeArray, Default: vercel.DefaultEnvTargets},
				{Name: "type", Type: TypeString, Default: vercel.DefaultEnvType},
			},
		},
		handler: (*Service).setEnvVar,
	},
	{
		info: MethodInfo{
			Name:        "vercel.domains",
			Description: "List domains for a project",
			Params: []Param{
				{Name: "project_id", Type: TypeString, Required: true},
			},
		},
		handler: (*Service).listDomains,
	},
	{
		info: MethodInfo{
			Name:        "vercel.redeploy",
			Description: "Redeploy a deployment",
			Params: []Param{
				{Name: "deployment_id", Type: TypeString, Required: true},
			},
		},
		handler: (*Service).redeploy,
	},
}

// health probes the API and reports liveness as a business result. A
// non-2xx probe is an "unhealthy" result, not an error; only a
// network-level probe failure fails the call.
func (s *Service) health(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	ok, err := s.api.Ping(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to probe vercel API: %w", err)
	}

	status := "healthy"
	if !ok {
		status = "unhealthy"
	}

	return map[string]interface{}{
		"status":        status,
		"api_connected": ok,
		"version":       s.version,
	}, nil
}

func (s *Service) listProjects(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	projects, err := s.api.ListProjects(ctx, argInt(args, "limit"))
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"projects": projects,
		"count":    len(projects),
	}, nil
}

func (s *Service) getProject(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return s.api.GetProject(ctx, argString(args, "project_id"))
}

func (s *Service) listDeployments(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	deployments, err := s.api.ListDeployments(ctx, argString(args, "project_id"), argInt(args, "limit"))
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"deployments": deployments,
		"count":       len(deployments),
	}, nil
}

func (s *Service) getDeployment(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return s.api.GetDeployment(ctx, argString(args, "deployment_id"))
}

func (s *Service) getDeploymentLogs(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	events, err := s.api.DeploymentEvents(ctx, argString(args, "deployment_id"))
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"events": events,
		"count":  len(events),
	}, nil
}

// getUser returns the raw user JSON so platform fields the typed model
// does not capture survive the round trip.
func (s *Service) getUser(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return s.api.UserRaw(ctx)
}

func (s *Service) listEnvVars(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return s.api.ListEnvVars(ctx, argString(args, "project_id"), argString(args, "target"))
}

func (s *Service) setEnvVar(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return s.api.SetEnvVar(ctx,
		argString(args, "project_id"),
		argString(args, "key"),
		argString(args, "value"),
		argStrings(args, "target"),
		argString(args, "type"),
	)
}

func (s *Service) listDomains(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return s.api.ListDomains(ctx, argString(args, "project_id"))
}

func (s *Service) redeploy(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return s.api.Redeploy(ctx, argString(args, "deployment_id"))
}
