package daemon

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"verceld/internal/history"
	"verceld/internal/metrics"
	"verceld/internal/service"
	"verceld/internal/vercel"
)

// stubAPI implements service.API against canned data.
type stubAPI struct {
	pingOK    bool
	redeploys int
}

func (a *stubAPI) Ping(ctx context.Context) (bool, error) { return a.pingOK, nil }

func (a *stubAPI) ListProjects(ctx context.Context, limit int) ([]vercel.Project, error) {
	return []vercel.Project{{ID: "prj_1", Name: "web"}}, nil
}

func (a *stubAPI) GetProject(ctx context.Context, projectID string) (*vercel.Project, error) {
	return &vercel.Project{ID: projectID, Name: "web"}, nil
}

func (a *stubAPI) ListDeployments(ctx context.Context, projectID string, limit int) ([]vercel.Deployment, error) {
	return nil, nil
}

func (a *stubAPI) GetDeployment(ctx context.Context, deploymentID string) (*vercel.Deployment, error) {
	return &vercel.Deployment{UID: deploymentID, Name: "web", URL: "u"}, nil
}

func (a *stubAPI) DeploymentEvents(ctx context.Context, deploymentID string) ([]vercel.DeploymentEvent, error) {
	return nil, nil
}

func (a *stubAPI) UserRaw(ctx context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"user":{"id":"usr_1"}}`), nil
}

func (a *stubAPI) ListEnvVars(ctx context.Context, projectID, target string) (json.RawMessage, error) {
	return json.RawMessage(`{"envs":[]}`), nil
}

func (a *stubAPI) SetEnvVar(ctx context.Context, projectID, key, value string, targets []string, envType string) (json.RawMessage, error) {
	return json.RawMessage(`{"created":{}}`), nil
}

func (a *stubAPI) ListDomains(ctx context.Context, projectID string) (json.RawMessage, error) {
	return json.RawMessage(`{"domains":[]}`), nil
}

func (a *stubAPI) Redeploy(ctx context.Context, deploymentID string) (json.RawMessage, error) {
	a.redeploys++
	return json.RawMessage(`{"uid":"dpl_new"}`), nil
}

// startTestServer runs a server on a temp socket and waits for it to
// accept connections.
func startTestServer(t *testing.T, hist *history.History) (*Server, *stubAPI) {
	t.Helper()

	api := &stubAPI{pingOK: true}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(api, "test", logger)
	socketPath := filepath.Join(t.TempDir(), "d.sock")

	srv := NewServer(svc, hist, metrics.New(), logger, socketPath)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()
	t.Cleanup(func() {
		_ = srv.Shutdown()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("Serve returned error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Serve did not return after shutdown")
		}
	})

	// Wait for the socket to come up.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(socketPath); err == nil {
			return srv, api
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Server socket never appeared")
	return nil, nil
}

func call(t *testing.T, socketPath string, req Request) *Response {
	t.Helper()
	client, err := Dial(socketPath, time.Second)
	if err != nil {
		t.Fatalf("Failed to dial daemon: %v", err)
	}
	defer client.Close()

	resp, err := client.Call(req, 2*time.Second)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	return resp
}

func TestServeDispatchesHealth(t *testing.T) {
	srv, _ := startTestServer(t, nil)

	resp := call(t, srv.SocketPath(), Request{ID: "1", Method: "health", Params: map[string]interface{}{}})
	if !resp.OK {
		t.Fatalf("health failed: %s", resp.Error)
	}
	if resp.ID != "1" {
		t.Errorf("Response ID = %q, want 1", resp.ID)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("Result is %T, want object", resp.Result)
	}
	if result["status"] != "healthy" || result["api_connected"] != true {
		t.Errorf("Unexpected health result: %v", result)
	}
}

func TestServeAnswersMethodCatalog(t *testing.T) {
	srv, _ := startTestServer(t, nil)

	resp := call(t, srv.SocketPath(), Request{ID: "2", Method: "methods"})
	if !resp.OK {
		t.Fatalf("methods failed: %s", resp.Error)
	}

	entries, ok := resp.Result.([]interface{})
	if !ok || len(entries) == 0 {
		t.Fatalf("Catalog = %v", resp.Result)
	}

	names := make(map[string]bool)
	for _, entry := range entries {
		info := entry.(map[string]interface{})
		names[info["name"].(string)] = true
	}
	for _, want := range []string{"vercel.projects", "vercel.set_env", "vercel.redeploy"} {
		if !names[want] {
			t.Errorf("Catalog missing %s", want)
		}
	}
}

func TestServeReportsUnknownMethod(t *testing.T) {
	srv, _ := startTestServer(t, nil)

	resp := call(t, srv.SocketPath(), Request{ID: "3", Method: "bogus"})
	if resp.OK {
		t.Fatal("Expected error response for unknown method")
	}
	if !strings.Contains(resp.Error, "unknown method") || !strings.Contains(resp.Error, "bogus") {
		t.Errorf("Error = %q, want it to name the unknown method", resp.Error)
	}
}

func TestServeRejectsMalformedFrameAndKeepsConnection(t *testing.T) {
	srv, _ := startTestServer(t, nil)

	client, err := Dial(srv.SocketPath(), time.Second)
	if err != nil {
		t.Fatalf("Failed to dial daemon: %v", err)
	}
	defer client.Close()

	// Raw write of a malformed line through the same connection.
	if _, err := client.conn.Write([]byte("not json\n")); err != nil {
		t.Fatalf("Failed to write malformed frame: %v", err)
	}
	_ = client.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp Response
	if err := json.NewDecoder(client.conn).Decode(&resp); err != nil {
		t.Fatalf("Failed to read error response: %v", err)
	}
	if resp.OK || resp.Error == "" {
		t.Errorf("Expected error frame, got %+v", resp)
	}

	// The connection survives a malformed frame.
	good, err := client.Call(Request{ID: "after", Method: "health"}, 2*time.Second)
	if err != nil {
		t.Fatalf("Connection did not survive malformed frame: %v", err)
	}
	if !good.OK {
		t.Errorf("health after malformed frame failed: %s", good.Error)
	}
}

func TestServeValidationErrorNamesParameter(t *testing.T) {
	srv, _ := startTestServer(t, nil)

	resp := call(t, srv.SocketPath(), Request{ID: "4", Method: "set_env", Params: map[string]interface{}{
		"project_id": "prj_1",
		"key":        "FOO",
	}})
	if resp.OK {
		t.Fatal("Expected validation error")
	}
	if !strings.Contains(resp.Error, "value") {
		t.Errorf("Error = %q, want it to name the missing parameter", resp.Error)
	}
}

func TestServeRecordsMutationsInHistory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ops.db")
	hist, err := history.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create history: %v", err)
	}
	defer hist.Close()

	srv, api := startTestServer(t, hist)

	resp := call(t, srv.SocketPath(), Request{ID: "5", Method: "vercel.redeploy", Params: map[string]interface{}{
		"deployment_id": "dpl_1",
	}})
	if !resp.OK {
		t.Fatalf("redeploy failed: %s", resp.Error)
	}
	if api.redeploys != 1 {
		t.Errorf("Redeploy called %d times, want 1", api.redeploys)
	}

	// A read-only method leaves no audit record.
	_ = call(t, srv.SocketPath(), Request{ID: "6", Method: "projects"})

	records, err := hist.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Failed to query history: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].Method != "redeploy" || records[0].Resource != "dpl_1" || records[0].Status != "ok" {
		t.Errorf("Unexpected record: %+v", records[0])
	}
}

func TestStopFrameShutsDownServer(t *testing.T) {
	srv, _ := startTestServer(t, nil)

	resp := call(t, srv.SocketPath(), Request{ID: "7", Method: "stop"})
	if !resp.OK {
		t.Fatalf("stop failed: %s", resp.Error)
	}

	// The socket disappears once the server winds down.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(srv.SocketPath()); os.IsNotExist(err) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("Socket still present after stop")
}

func TestPidFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.sock.pid")
	if err := WritePidFile(path); err != nil {
		t.Fatalf("Failed to write pid file: %v", err)
	}
	pid, err := ReadPidFile(path)
	if err != nil {
		t.Fatalf("Failed to read pid file: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
}
