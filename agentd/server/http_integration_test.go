package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gitoleg1/lucy-agent/agentd/core"
	"github.com/gitoleg1/lucy-agent/internals/schemas"
)

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func decodeTask(t *testing.T, resp *http.Response) schemas.TaskOut {
	t.Helper()
	defer resp.Body.Close()
	var task schemas.TaskOut
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	return task
}

func TestHTTPHealth(t *testing.T) {
	server := newTestServer(t)
	client := httptest.NewServer(server.Router())
	defer client.Close()

	resp, err := http.Get(client.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestHTTPVersion(t *testing.T) {
	server := newTestServer(t)
	client := httptest.NewServer(server.Router())
	defer client.Close()

	resp, err := http.Get(client.URL + "/version")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if strings.TrimSpace(string(body)) != "test-version" {
		t.Fatalf("unexpected version body: %q", string(body))
	}
}

func TestHTTPCreateTaskInvalidJSON(t *testing.T) {
	server := newTestServer(t)
	client := httptest.NewServer(server.Router())
	defer client.Close()

	resp := postJSON(t, client.URL+"/tasks", "{")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}
	var payload ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Code != JsonResponseErrorCodeInvalidJson {
		t.Fatalf("expected invalid_json, got %s", payload.Code)
	}
}

func TestHTTPCreateTaskValidation(t *testing.T) {
	server := newTestServer(t)
	client := httptest.NewServer(server.Router())
	defer client.Close()

	resp := postJSON(t, client.URL+"/tasks", `{"title":""}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400 for missing title, got %d", resp.StatusCode)
	}

	resp = postJSON(t, client.URL+"/tasks", `{"title":"no actions"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400 for missing actions, got %d", resp.StatusCode)
	}
}

func TestHTTPCreateAndRunTask(t *testing.T) {
	server := newTestServer(t)
	client := httptest.NewServer(server.Router())
	defer client.Close()

	resp := postJSON(t, client.URL+"/tasks", `{"title":"hello","actions":[{"type":"shell","params":{"cmd":"echo hello"}}]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.StatusCode)
	}
	task := decodeTask(t, resp)
	if task.ID == "" || task.Status != schemas.TaskStatusPending {
		t.Fatalf("unexpected task: %+v", task)
	}

	getResp, err := http.Get(client.URL + "/tasks/" + task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got := decodeTask(t, getResp)
	if got.ID != task.ID {
		t.Fatalf("expected task %s, got %s", task.ID, got.ID)
	}

	runResp := postJSON(t, client.URL+"/tasks/"+task.ID+"/run", "{}")
	defer runResp.Body.Close()
	if runResp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", runResp.StatusCode)
	}
	var runPayload struct {
		Runs []schemas.RunOut `json:"runs"`
	}
	if err := json.NewDecoder(runResp.Body).Decode(&runPayload); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runPayload.Runs) != 1 || runPayload.Runs[0].Status != schemas.RunStatusSucceeded {
		t.Fatalf("expected one succeeded run, got %+v", runPayload.Runs)
	}

	auditResp, err := http.Get(client.URL + "/tasks/" + task.ID + "/audit")
	if err != nil {
		t.Fatalf("get audit: %v", err)
	}
	defer auditResp.Body.Close()
	if auditResp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", auditResp.StatusCode)
	}
	var auditPayload struct {
		Events []schemas.AuditOut `json:"events"`
	}
	if err := json.NewDecoder(auditResp.Body).Decode(&auditPayload); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if len(auditPayload.Events) == 0 {
		t.Fatalf("expected audit events")
	}
	if auditPayload.Events[0].Event != "task_created" {
		t.Fatalf("expected task_created first, got %s", auditPayload.Events[0].Event)
	}
}

func TestHTTPApprovalFlow(t *testing.T) {
	server := newTestServer(t)
	client := httptest.NewServer(server.Router())
	defer client.Close()

	resp := postJSON(t, client.URL+"/tasks", `{"title":"guarded","require_approval":true,"actions":[{"type":"shell","params":{"cmd":"echo hi"}}]}`)
	task := decodeTask(t, resp)
	if task.Status != schemas.TaskStatusWaitingApproval || len(task.Approvals) != 1 {
		t.Fatalf("unexpected task: %+v", task)
	}

	runResp := postJSON(t, client.URL+"/tasks/"+task.ID+"/run", "{}")
	runResp.Body.Close()
	if runResp.StatusCode != http.StatusConflict {
		t.Fatalf("expected status 409 before approval, got %d", runResp.StatusCode)
	}

	approveBody := `{"token":"` + task.Approvals[0].Token + `","decision":"APPROVE","decided_by":"alice"}`
	approveResp := postJSON(t, client.URL+"/tasks/"+task.ID+"/approve", approveBody)
	if approveResp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", approveResp.StatusCode)
	}
	approved := decodeTask(t, approveResp)
	if approved.Status != schemas.TaskStatusApproved {
		t.Fatalf("expected APPROVED, got %s", approved.Status)
	}

	// The token is single use.
	againResp := postJSON(t, client.URL+"/tasks/"+task.ID+"/approve", approveBody)
	againResp.Body.Close()
	if againResp.StatusCode != http.StatusConflict {
		t.Fatalf("expected status 409 for reused token, got %d", againResp.StatusCode)
	}

	runResp = postJSON(t, client.URL+"/tasks/"+task.ID+"/run", "{}")
	runResp.Body.Close()
	if runResp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200 after approval, got %d", runResp.StatusCode)
	}
}

func TestHTTPPolicyRejected(t *testing.T) {
	server := newTestServer(t)
	client := httptest.NewServer(server.Router())
	defer client.Close()

	resp := postJSON(t, client.URL+"/tasks", `{"title":"bad","actions":[{"type":"shell","params":{"cmd":"rm -rf / --no-preserve-root"}}]}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}
	var payload ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Code != JsonResponseErrorCodePolicyRejected {
		t.Fatalf("expected policy_rejected, got %s", payload.Code)
	}
}

func TestHTTPTaskNotFound(t *testing.T) {
	server := newTestServer(t)
	client := httptest.NewServer(server.Router())
	defer client.Close()

	resp, err := http.Get(client.URL + "/tasks/unknown")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.StatusCode)
	}
}

func TestHTTPQuickRun(t *testing.T) {
	server := newTestServer(t)
	client := httptest.NewServer(server.Router())
	defer client.Close()

	resp := postJSON(t, client.URL+"/tasks/quick-run", `{"title":"quick","actions":[{"type":"shell","params":{"cmd":"echo quick"}}]}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	var payload schemas.QuickRunOut
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Task.Status != schemas.TaskStatusSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s", payload.Task.Status)
	}
	if len(payload.Runs) != 1 || len(payload.Audit) == 0 {
		t.Fatalf("expected runs and audit, got %+v", payload)
	}
}

func TestHTTPAgentShell(t *testing.T) {
	server := newTestServer(t)
	client := httptest.NewServer(server.Router())
	defer client.Close()

	resp := postJSON(t, client.URL+"/agent/shell", `{"cmd":"echo from-agent"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	var payload schemas.QuickRunOut
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Task.Status != schemas.TaskStatusSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s", payload.Task.Status)
	}

	missing := postJSON(t, client.URL+"/agent/shell", `{}`)
	missing.Body.Close()
	if missing.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400 for missing cmd, got %d", missing.StatusCode)
	}
}

func TestHTTPAuth(t *testing.T) {
	server := newTestServer(t)
	server.Base.Env.API_KEY = "secret"
	client := httptest.NewServer(server.Router())
	defer client.Close()

	resp, err := http.Get(client.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without key, got %d", resp.StatusCode)
	}

	request, err := http.NewRequest(http.MethodGet, client.URL+"/health", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	request.Header.Set("X-Api-Key", "secret")
	resp, err = http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200 with header key, got %d", resp.StatusCode)
	}

	resp, err = http.Get(client.URL + "/health?apikey=secret")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200 with query key, got %d", resp.StatusCode)
	}
}

func TestHTTPStreamTerminalTask(t *testing.T) {
	server := newTestServer(t)
	client := httptest.NewServer(server.Router())
	defer client.Close()

	resp := postJSON(t, client.URL+"/tasks/quick-run", `{"actions":[{"type":"shell","params":{"cmd":"echo done"}}]}`)
	var payload schemas.QuickRunOut
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()

	// The task is terminal, so the stream closes right after started+done.
	streamResp, err := http.Get(client.URL + "/stream/tasks/" + payload.Task.ID)
	if err != nil {
		t.Fatalf("get stream: %v", err)
	}
	defer streamResp.Body.Close()
	if contentType := streamResp.Header.Get("Content-Type"); contentType != "text/event-stream" {
		t.Fatalf("expected event-stream, got %q", contentType)
	}
	body, err := io.ReadAll(streamResp.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	text := string(body)
	if !strings.Contains(text, "event: started") {
		t.Fatalf("expected started event, got %q", text)
	}
	if !strings.Contains(text, "event: done") {
		t.Fatalf("expected done event, got %q", text)
	}

	// Every frame carries task_id and an RFC3339 timestamp.
	for _, line := range strings.Split(text, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err != nil {
			t.Fatalf("bad frame %q: %v", line, err)
		}
		if frame["task_id"] != payload.Task.ID {
			t.Fatalf("expected task_id in frame %q", line)
		}
		ts, _ := frame["ts"].(string)
		if _, err := time.Parse(time.RFC3339, ts); err != nil {
			t.Fatalf("expected RFC3339 ts in frame %q: %v", line, err)
		}
	}
}

func TestHTTPStreamUnknownTask(t *testing.T) {
	server := newTestServer(t)
	client := httptest.NewServer(server.Router())
	defer client.Close()

	resp, err := http.Get(client.URL + "/stream/tasks/unknown")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.StatusCode)
	}
}

func TestRenderCoreErrorRateLimited(t *testing.T) {
	server := newTestServer(t)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/tasks", nil)
	server.renderCoreError(recorder, request, core.ErrRateLimited)

	if recorder.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", recorder.Code)
	}
	var payload ErrorResponse
	if err := json.NewDecoder(recorder.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Code != JsonResponseErrorCodeRateLimited {
		t.Fatalf("expected rate_limited, got %s", payload.Code)
	}
}
