package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishansujesh/job-registry/internal/protocol"
)

func newTestHTTPServer(t *testing.T, ready func(context.Context) error) *httptest.Server {
	handler, err := NewHTTPHandler(newTestServer(t), ready)
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var raw json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	return resp, raw
}

func TestRest_CreateJob(t *testing.T) {
	knownJSON, err := knownJob().ToJSON()
	require.NoError(t, err)
	mismatched := strings.Replace(string(knownJSON), `"foobar:4711"`, `"foobar:4712"`, 1)

	tests := map[string]struct {
		body           string
		expectedCode   int
		expectedStatus protocol.CreateJobStatus
	}{
		"valid": {
			body:           string(knownJSON),
			expectedCode:   http.StatusCreated,
			expectedStatus: protocol.StatusOK,
		},
		"content does not match id": {
			body:           mismatched,
			expectedCode:   http.StatusBadRequest,
			expectedStatus: protocol.StatusInvalidJobDefinition,
		},
		"malformed id": {
			body:           `{"id":"bad:job:deadbeef","image":"busyBox","command":["sleep","60"]}`,
			expectedCode:   http.StatusBadRequest,
			expectedStatus: protocol.StatusInvalidJobDefinition,
		},
		"not json": {
			body:           `not json`,
			expectedCode:   http.StatusBadRequest,
			expectedStatus: protocol.StatusInvalidJobDefinition,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ts := newTestHTTPServer(t, nil)
			resp, body := do(t, http.MethodPost, ts.URL+"/v1/jobs", tc.body)

			assert.Equal(t, tc.expectedCode, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get("x-request-id"))
			var created protocol.CreateJobResponse
			require.NoError(t, json.Unmarshal(body, &created))
			assert.Equal(t, tc.expectedStatus, created.Status)
			if tc.expectedStatus != protocol.StatusOK {
				assert.NotEmpty(t, created.Errors)
			}
		})
	}
}

func TestRest_CreateJob_MismatchMessage(t *testing.T) {
	ts := newTestHTTPServer(t, nil)
	knownJSON, err := knownJob().ToJSON()
	require.NoError(t, err)
	mismatched := strings.Replace(string(knownJSON), `"foobar:4711"`, `"foobar:4712"`, 1)

	_, body := do(t, http.MethodPost, ts.URL+"/v1/jobs", mismatched)
	var created protocol.CreateJobResponse
	require.NoError(t, json.Unmarshal(body, &created))
	require.Len(t, created.Errors, 1)
	assert.True(t, strings.HasPrefix(created.Errors[0], "Id hash mismatch: 1085fb2d97e209f68bd325d08cb01601bd86b1cd != "))
}

func TestRest_CreateJob_AlreadyExists(t *testing.T) {
	ts := newTestHTTPServer(t, nil)
	knownJSON, err := knownJob().ToJSON()
	require.NoError(t, err)

	resp, _ := do(t, http.MethodPost, ts.URL+"/v1/jobs", string(knownJSON))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, http.MethodPost, ts.URL+"/v1/jobs", string(knownJSON))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.JSONEq(t, `{"status":"JOB_ALREADY_EXISTS","id":"`+knownID+`"}`, string(body))
}

func TestRest_GetListDelete(t *testing.T) {
	ts := newTestHTTPServer(t, nil)
	knownJSON, err := knownJob().ToJSON()
	require.NoError(t, err)
	resp, _ := do(t, http.MethodPost, ts.URL+"/v1/jobs", string(knownJSON))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	jobURL := ts.URL + "/v1/jobs/" + strings.ReplaceAll(knownID, ":", "/")

	resp, body := do(t, http.MethodGet, jobURL, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view protocol.JobView
	require.NoError(t, json.Unmarshal(body, &view))
	assert.True(t, knownJob().Equal(view.Job))

	resp, body = do(t, http.MethodGet, ts.URL+"/v1/jobs?name_contains=zbar&limit=10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list protocol.ListJobsResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Jobs, 1)
	assert.Equal(t, knownID, list.Jobs[0].Job.ID().String())

	resp, body = do(t, http.MethodDelete, jobURL, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"OK"}`, string(body))

	resp, body = do(t, http.MethodDelete, jobURL, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"status":"JOB_NOT_FOUND"}`, string(body))

	resp, _ = do(t, http.MethodGet, jobURL, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRest_Errors(t *testing.T) {
	tests := map[string]struct {
		method       string
		path         string
		expectedCode int
		expectedGrpc string
	}{
		"malformed hash": {
			method:       http.MethodGet,
			path:         "/v1/jobs/foozbarz/17/deadbeef",
			expectedCode: http.StatusBadRequest,
			expectedGrpc: "InvalidArgument",
		},
		"bad limit": {
			method:       http.MethodGet,
			path:         "/v1/jobs?limit=many",
			expectedCode: http.StatusBadRequest,
			expectedGrpc: "InvalidArgument",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ts := newTestHTTPServer(t, nil)
			resp, body := do(t, tc.method, ts.URL+tc.path, "")
			assert.Equal(t, tc.expectedCode, resp.StatusCode)

			var e errorBody
			require.NoError(t, json.Unmarshal(body, &e))
			assert.Equal(t, tc.expectedGrpc, e.Code)
			assert.Equal(t, resp.Header.Get("x-request-id"), e.RequestID)
		})
	}
}

func TestRest_RequestIDPropagated(t *testing.T) {
	ts := newTestHTTPServer(t, nil)
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/jobs", nil)
	require.NoError(t, err)
	req.Header.Set("x-request-id", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get("x-request-id"))
}

func TestRest_Readiness(t *testing.T) {
	ts := newTestHTTPServer(t, func(context.Context) error { return errors.New("postgres down") })

	resp, _ := do(t, http.MethodGet, ts.URL+"/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
