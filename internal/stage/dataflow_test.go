package stage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

func newTestDataflow(t *testing.T, handler http.HandlerFunc) *DataflowLauncher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	l, err := NewDataflowLauncher(context.Background(), "myproj", "us-central1",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("create launcher: %v", err)
	}
	return l
}

func testLaunch() LaunchRequest {
	return LaunchRequest{LaunchParameter: LaunchParameter{
		JobName:              "stage-chunk-1-20250101000000",
		ContainerSpecGcsPath: "gs://mybucket/templates/stage_chunk_flex_template.json",
		Parameters:           map[string]string{ParamChunkID: "1"},
		Environment: Environment{
			ServiceAccountEmail: "sa@myproj.iam.gserviceaccount.com",
			TempLocation:        "gs://mybucket/tmp",
		},
	}}
}

func TestDataflowLauncher_Launch(t *testing.T) {
	l := newTestDataflow(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1b3/projects/myproj/locations/us-central1/flexTemplates:launch" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}

		var body LaunchRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.LaunchParameter.JobName != "stage-chunk-1-20250101000000" {
			t.Errorf("unexpected job name: %s", body.LaunchParameter.JobName)
		}
		if body.LaunchParameter.Environment.TempLocation != "gs://mybucket/tmp" {
			t.Errorf("unexpected temp location: %s", body.LaunchParameter.Environment.TempLocation)
		}
		if body.LaunchParameter.Parameters[ParamChunkID] != "1" {
			t.Errorf("unexpected parameters: %v", body.LaunchParameter.Parameters)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"job":{"id":"2025-01-01_00_00_00-123","name":"stage-chunk-1-20250101000000"}}`))
	})

	res, err := l.Launch(context.Background(), testLaunch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.JobID != "2025-01-01_00_00_00-123" {
		t.Errorf("unexpected job id: %s", res.JobID)
	}
}

func TestDataflowLauncher_MissingJob(t *testing.T) {
	l := newTestDataflow(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	})

	_, err := l.Launch(context.Background(), testLaunch())
	if !errors.Is(err, ErrNoJob) {
		t.Errorf("expected ErrNoJob, got %v", err)
	}
}

func TestDataflowLauncher_APIErrors(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusForbidden, false},
		{http.StatusBadGateway, false},
	}

	for _, tt := range tests {
		l := newTestDataflow(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"error":{"message":"boom"}}`))
		})

		_, err := l.Launch(context.Background(), testLaunch())

		var apiErr *googleapi.Error
		if !errors.As(err, &apiErr) {
			t.Fatalf("%d: expected googleapi.Error, got %v", tt.status, err)
		}
		if apiErr.Code != tt.status {
			t.Errorf("%d: unexpected code %d", tt.status, apiErr.Code)
		}
		if Retryable(err) != tt.retryable {
			t.Errorf("%d: expected retryable=%v", tt.status, tt.retryable)
		}
		if isFinal(err) == tt.retryable {
			t.Errorf("%d: isFinal mismatch", tt.status)
		}
	}
}

func TestRetryable_NonAPIError(t *testing.T) {
	if Retryable(errors.New("connection reset")) {
		t.Error("transport errors are not API errors")
	}
	if isFinal(errors.New("connection reset")) {
		t.Error("transport errors must be retried")
	}
}
