package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/shaiso/ppdb-chunks/internal/deploy"
)

// --- Client ---

func TestClient_ListChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chunks" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("status"); got != "staged" {
			t.Errorf("expected status filter, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("expected bearer token, got %q", got)
		}
		w.Write([]byte(`{"data":[{"apdb_replica_chunk":1735776000,"status":"staged","created_at":"x","updated_at":"y"}],"total":1}`))
	}))
	defer srv.Close()

	chunks, err := NewClient(srv.URL, "tok").ListChunks(ListChunksOpts{Status: "staged"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].ID != 1735776000 || chunks[0].Status != "staged" {
		t.Errorf("unexpected chunks: %+v", chunks)
	}
}

func TestClient_GetChunk_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"chunk not found"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").GetChunk("42")
	if err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("expected NOT_FOUND error, got %v", err)
	}
}

func TestClient_Promote(t *testing.T) {
	tests := []struct {
		name    string
		dryRun  bool
		status  int
		body    string
		wantErr bool
	}{
		{"dry run", true, 200, `{"ok":true,"mode":"dry_run","chunks_promoted":0,"chunk_ids":[1,2]}`, false},
		{"execute", false, 200, `{"ok":true,"mode":"execute","chunks_promoted":2,"chunk_ids":[1,2]}`, false},
		{"failure", false, 500, `{"ok":false,"error":"boom"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/promote_chunks" {
					t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
				}
				if got := r.URL.Query().Get("dry_run") == "true"; got != tt.dryRun {
					t.Errorf("dry_run = %v, want %v", got, tt.dryRun)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			resp, err := NewClient(srv.URL, "").Promote(tt.dryRun)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(resp.ChunkIDs) != 2 {
				t.Errorf("unexpected chunk ids: %v", resp.ChunkIDs)
			}
		})
	}
}

func TestClient_Push_Envelope(t *testing.T) {
	var got stageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env pushEnvelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		data, err := base64.StdEncoding.DecodeString(env.Message.Data)
		if err != nil {
			t.Fatalf("decode data: %v", err)
		}
		json.Unmarshal(data, &got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	want := stageRequest{Bucket: "b", Name: "data/tmp/2025/01/02/1735776000", DatasetID: "p:ppdb"}
	if _, err := NewClient(srv.URL, "").Push("/stage_chunk", want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("payload = %+v, want %+v", got, want)
	}
}

func TestClient_Push_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error":"invalid stage request"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").Push("/stage_chunk", stageRequest{})
	if err == nil || !strings.Contains(err.Error(), "invalid stage request") {
		t.Errorf("expected rejection error, got %v", err)
	}
}

// --- Commands ---

func testConfig() *deploy.Config {
	return deploy.NewConfig(map[string]string{
		deploy.EnvProject:        "myproj",
		deploy.EnvServiceAccount: "ppdb@myproj.iam.gserviceaccount.com",
		deploy.EnvBucket:         "mybucket",
		deploy.EnvCredentials:    "/secrets/sa.json",
	})
}

// failExecutor фиксирует вызовы и падает, если его вообще вызвали.
type failExecutor struct {
	calls int
}

func (e *failExecutor) Execute(_ context.Context, _ deploy.Command, _, _ io.Writer) error {
	e.calls++
	return errors.New("must not execute")
}

func runCmd(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.Execute()
}

func TestTemplateBuild_DryRun(t *testing.T) {
	var stdout bytes.Buffer
	exec := &failExecutor{}

	configFn := func() (*deploy.Config, error) { return testConfig(), nil }
	runnerFn := func(dryRun bool) *deploy.Runner {
		return &deploy.Runner{
			Executor: exec,
			Stdout:   &stdout,
			Stderr:   io.Discard,
			Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
			DryRun:   dryRun,
		}
	}

	err := runCmd(t, NewTemplateCmd(configFn, runnerFn), "build", "--dry-run")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.calls != 0 {
		t.Errorf("dry run executed %d commands", exec.calls)
	}
	if !strings.Contains(stdout.String(), "gcloud dataflow flex-template build gs://mybucket/templates/stage_chunk_flex_template.json") {
		t.Errorf("unexpected output: %s", stdout.String())
	}
}

func TestDeploy_MissingEnv(t *testing.T) {
	exec := &failExecutor{}
	configFn := func() (*deploy.Config, error) { return testConfig(), nil }
	runnerFn := func(dryRun bool) *deploy.Runner {
		return &deploy.Runner{Executor: exec, Stdout: io.Discard, Stderr: io.Discard,
			Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), DryRun: dryRun}
	}

	err := runCmd(t, NewDeployCmd(configFn, runnerFn), "track")

	var missing *deploy.MissingEnvError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingEnvError, got %v", err)
	}
	if missing.Name != deploy.EnvDBHost {
		t.Errorf("expected %s to be reported, got %s", deploy.EnvDBHost, missing.Name)
	}
	if exec.calls != 0 {
		t.Error("no command may run when configuration is incomplete")
	}
	if deploy.ExitCode(err) != 1 {
		t.Errorf("expected exit code 1, got %d", deploy.ExitCode(err))
	}
}

func TestDeploy_UnknownResource(t *testing.T) {
	configFn := func() (*deploy.Config, error) { return testConfig(), nil }
	runnerFn := func(dryRun bool) *deploy.Runner { return nil }

	err := runCmd(t, NewDeployCmd(configFn, runnerFn), "nope")
	if !errors.Is(err, deploy.ErrUnknownResource) {
		t.Errorf("expected ErrUnknownResource, got %v", err)
	}
}

func TestConfigShow(t *testing.T) {
	var stdout, stderr bytes.Buffer
	configFn := func() (*deploy.Config, error) { return testConfig(), nil }
	outputFn := func() *Output { return NewOutputTo(false, &stdout, &stderr) }

	if err := runCmd(t, NewConfigCmd(configFn, outputFn), "show"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout.String(), "gcp_project: myproj") {
		t.Errorf("expected project in YAML, got:\n%s", stdout.String())
	}
}

func TestPromoteCmd_Table(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"mode":"dry_run","message":"Would promote 2 chunks","chunks_promoted":0,"chunk_ids":[7,8]}`))
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	clientFn := func() *Client { return NewClient(srv.URL, "") }
	outputFn := func() *Output { return NewOutputTo(false, &stdout, &stderr) }

	if err := runCmd(t, NewPromoteCmd(clientFn, outputFn), "--dry-run"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout.String(), "CHUNK") || !strings.Contains(stdout.String(), "8") {
		t.Errorf("unexpected table:\n%s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "Would promote 2 chunks") {
		t.Errorf("expected message on stderr, got %q", stderr.String())
	}
}
