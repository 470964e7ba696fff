package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sessionscribe/sessionscribe/domain"
	"github.com/sessionscribe/sessionscribe/engine"
	"github.com/sessionscribe/sessionscribe/events"
	"github.com/sessionscribe/sessionscribe/pipeline"
	"github.com/sessionscribe/sessionscribe/queue"
	"github.com/sessionscribe/sessionscribe/store"
	"github.com/sessionscribe/sessionscribe/workers"
)

// staticEngine returns a fixed result for every audio file.
type staticEngine struct {
	result engine.Result
}

func (e *staticEngine) Transcribe(ctx context.Context, audioRef string) (engine.Result, error) {
	return e.result, nil
}

type fixture struct {
	app    *fiber.App
	store  *store.Store
	broker *queue.Broker
	pool   *workers.Pool
}

// newFixture stands up the full stack behind an in-memory HTTP app. When
// withPool is set a worker pool drains the broker so triggered jobs
// actually complete.
func newFixture(t *testing.T, withPool bool) *fixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	broker := queue.NewBroker(queue.Config{
		ClaimLease:   time.Second,
		PollInterval: 2 * time.Millisecond,
	})
	bus := events.NewBus(100)
	eng := &staticEngine{result: engine.Result{
		Text:       "we discussed coping strategies",
		Language:   "en",
		Duration:   2 * time.Second,
		Confidence: 0.9,
	}}
	orch := pipeline.New(st, st, broker, eng, bus, pipeline.Config{
		MaxAttempts: 3,
		BackoffBase: 2 * time.Millisecond,
		TimeoutMin:  time.Second,
		TimeoutMax:  time.Second,
	})

	f := &fixture{
		app:    New(st, orch, broker, bus),
		store:  st,
		broker: broker,
	}
	if withPool {
		f.pool = workers.NewPool(2, broker, orch, workers.NewSlidingWindow(100, time.Minute))
		f.pool.Start()
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			f.pool.Stop(ctx)
		})
	}
	return f
}

func (f *fixture) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-Customer-ID", "cust-1")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func (f *fixture) createClient(t *testing.T) string {
	t.Helper()
	resp := f.request(t, http.MethodPost, "/clients", fiber.Map{
		"name":  "Alex Doe",
		"email": "alex@example.com",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create client status = %d", resp.StatusCode)
	}
	var client domain.Client
	decode(t, resp, &client)
	return client.ClientID
}

func (f *fixture) createSession(t *testing.T, audioPath string) string {
	t.Helper()
	resp := f.request(t, http.MethodPost, "/sessions", fiber.Map{
		"client_id":        f.createClient(t),
		"title":            "weekly session",
		"duration_seconds": 60,
		"audio_path":       audioPath,
		"audio_format":     "wav",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d", resp.StatusCode)
	}
	var sess domain.Session
	decode(t, resp, &sess)
	return sess.SessionID
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	f := newFixture(t, false)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, err := f.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestMissingCustomerHeaderRejected(t *testing.T) {
	f := newFixture(t, false)
	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	resp, err := f.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestSessionCRUD(t *testing.T) {
	f := newFixture(t, false)
	id := f.createSession(t, "/audio/a.wav")

	resp := f.request(t, http.MethodGet, "/sessions/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var got domain.Session
	decode(t, resp, &got)
	if got.Title != "weekly session" || got.Status != domain.StatusPending {
		t.Fatalf("session = %+v", got)
	}

	resp = f.request(t, http.MethodPut, "/sessions/"+id, fiber.Map{"title": "renamed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}

	// Status transcribing is pipeline-owned and rejected here.
	resp = f.request(t, http.MethodPut, "/sessions/"+id, fiber.Map{"status": "transcribing"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("transcribing update status = %d, want 400", resp.StatusCode)
	}

	resp = f.request(t, http.MethodGet, "/sessions", nil)
	var list []domain.Session
	decode(t, resp, &list)
	if len(list) != 1 || list[0].Title != "renamed" {
		t.Fatalf("list = %+v", list)
	}

	resp = f.request(t, http.MethodDelete, "/sessions/"+id, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp = f.request(t, http.MethodGet, "/sessions/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	f := newFixture(t, false)
	resp := f.request(t, http.MethodPost, "/sessions", fiber.Map{"title": "no client"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	// A client_id that does not belong to the customer is rejected too.
	resp = f.request(t, http.MethodPost, "/sessions", fiber.Map{"client_id": "not-a-client"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown client status = %d, want 400", resp.StatusCode)
	}
}

func TestClientEndpoints(t *testing.T) {
	f := newFixture(t, false)

	resp := f.request(t, http.MethodPost, "/clients", fiber.Map{"email": "x@example.com"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("nameless client status = %d, want 400", resp.StatusCode)
	}

	id := f.createClient(t)

	resp = f.request(t, http.MethodGet, "/clients/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get client status = %d", resp.StatusCode)
	}
	var client domain.Client
	decode(t, resp, &client)
	if client.Name != "Alex Doe" {
		t.Fatalf("client = %+v", client)
	}

	resp = f.request(t, http.MethodPut, "/clients/"+id, fiber.Map{"phone": "555-0199"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update client status = %d", resp.StatusCode)
	}
	decode(t, resp, &client)
	if client.Phone != "555-0199" || client.Name != "Alex Doe" {
		t.Fatalf("updated client = %+v", client)
	}

	resp = f.request(t, http.MethodGet, "/clients", nil)
	var clients []domain.Client
	decode(t, resp, &clients)
	if len(clients) != 1 {
		t.Fatalf("clients = %d, want 1", len(clients))
	}

	// Another tenant sees none of this.
	req := httptest.NewRequest(http.MethodGet, "/clients/"+id, nil)
	req.Header.Set("X-Customer-ID", "cust-2")
	other, err := f.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("cross-tenant get: %v", err)
	}
	if other.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-tenant get status = %d, want 404", other.StatusCode)
	}

	resp = f.request(t, http.MethodDelete, "/clients/"+id, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete client status = %d", resp.StatusCode)
	}
	resp = f.request(t, http.MethodGet, "/clients/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestTriggerStatusCodes(t *testing.T) {
	f := newFixture(t, false)

	resp := f.request(t, http.MethodPost, "/sessions/nope/transcribe", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown session status = %d, want 404", resp.StatusCode)
	}

	noAudio := f.createSession(t, "")
	resp = f.request(t, http.MethodPost, "/sessions/"+noAudio+"/transcribe", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("no-audio status = %d, want 404", resp.StatusCode)
	}

	id := f.createSession(t, "/audio/a.wav")
	resp = f.request(t, http.MethodPost, "/sessions/"+id+"/transcribe", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("trigger status = %d, want 202", resp.StatusCode)
	}
	var accepted struct {
		JobID   string `json:"job_id"`
		Message string `json:"message"`
	}
	decode(t, resp, &accepted)
	if accepted.JobID == "" || accepted.Message != "transcription job queued" {
		t.Fatalf("accepted = %+v", accepted)
	}

	// No pool is draining the broker, so the session stays transcribing.
	resp = f.request(t, http.MethodPost, "/sessions/"+id+"/transcribe", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second trigger status = %d, want 409", resp.StatusCode)
	}
}

func TestTriggerQueueUnavailable(t *testing.T) {
	f := newFixture(t, false)
	id := f.createSession(t, "/audio/a.wav")
	f.broker.Close()

	resp := f.request(t, http.MethodPost, "/sessions/"+id+"/transcribe", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

// TestTranscriptionEndToEnd drives trigger -> worker -> transcript through
// the HTTP surface.
func TestTranscriptionEndToEnd(t *testing.T) {
	f := newFixture(t, true)
	id := f.createSession(t, "/audio/a.wav")

	resp := f.request(t, http.MethodPost, "/sessions/"+id+"/transcribe", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("trigger status = %d, want 202", resp.StatusCode)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		status, err := f.store.SessionStatus(id)
		if err != nil {
			t.Fatalf("session status: %v", err)
		}
		if status == domain.StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session stuck in %s", status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp = f.request(t, http.MethodGet, "/sessions/"+id+"/transcript", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get transcript status = %d", resp.StatusCode)
	}
	var transcript domain.Transcript
	decode(t, resp, &transcript)
	if transcript.Content != "we discussed coping strategies" || transcript.Language != "en" {
		t.Fatalf("transcript = %+v", transcript)
	}

	resp = f.request(t, http.MethodPut, "/sessions/"+id+"/transcript", fiber.Map{"content": "edited text"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update transcript status = %d", resp.StatusCode)
	}
	resp = f.request(t, http.MethodGet, "/sessions/"+id+"/transcript", nil)
	decode(t, resp, &transcript)
	if transcript.Content != "edited text" {
		t.Fatalf("content = %q after edit", transcript.Content)
	}
}

func TestTranscriptNotFoundBeforeTranscription(t *testing.T) {
	f := newFixture(t, false)
	id := f.createSession(t, "/audio/a.wav")

	resp := f.request(t, http.MethodGet, "/sessions/"+id+"/transcript", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRecordsEndpoints(t *testing.T) {
	f := newFixture(t, false)
	id := f.createSession(t, "/audio/a.wav")

	resp := f.request(t, http.MethodPost, "/sessions/"+id+"/notes", fiber.Map{"content": "good progress"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create note status = %d", resp.StatusCode)
	}
	resp = f.request(t, http.MethodPost, "/sessions/"+id+"/issues", fiber.Map{"title": "sleep disruption", "severity": "high"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create issue status = %d", resp.StatusCode)
	}
	resp = f.request(t, http.MethodPost, "/sessions/"+id+"/followups", fiber.Map{"description": "book next appointment"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create followup status = %d", resp.StatusCode)
	}
	var fu domain.FollowUp
	decode(t, resp, &fu)

	resp = f.request(t, http.MethodPut, "/followups/"+fu.FollowUpID+"/complete", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete followup status = %d", resp.StatusCode)
	}

	var followups []domain.FollowUp
	resp = f.request(t, http.MethodGet, "/sessions/"+id+"/followups", nil)
	decode(t, resp, &followups)
	if len(followups) != 1 || !followups[0].Completed {
		t.Fatalf("followups = %+v", followups)
	}

	// Records endpoints 404 on another tenant's session.
	req := httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/notes", nil)
	req.Header.Set("X-Customer-ID", "cust-2")
	resp, err := f.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("cross-tenant notes: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-tenant notes status = %d, want 404", resp.StatusCode)
	}
}

func TestJobsEndpoint(t *testing.T) {
	f := newFixture(t, false)
	id := f.createSession(t, "/audio/a.wav")
	if resp := f.request(t, http.MethodPost, "/sessions/"+id+"/transcribe", nil); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("trigger status = %d", resp.StatusCode)
	}

	resp := f.request(t, http.MethodGet, "/jobs", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("jobs status = %d", resp.StatusCode)
	}
	var jobs struct {
		Active   []queue.Job `json:"active"`
		Terminal []queue.Job `json:"terminal"`
	}
	decode(t, resp, &jobs)
	if len(jobs.Active) != 1 || len(jobs.Terminal) != 0 {
		t.Fatalf("jobs = %+v", jobs)
	}
}
