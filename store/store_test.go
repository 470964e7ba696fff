package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sessionscribe/sessionscribe/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func seedSession(t *testing.T, st *Store, customerID string) *domain.Session {
	t.Helper()
	sess := &domain.Session{
		CustomerID:      customerID,
		ClientID:        "client-1",
		Title:           "intake session",
		SessionDate:     time.Date(2026, 8, 20, 14, 0, 0, 0, time.UTC),
		DurationSeconds: 1800,
		AudioPath:       "/audio/intake.wav",
		AudioFormat:     "wav",
	}
	if err := st.CreateSession(sess); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

func TestClientCRUD(t *testing.T) {
	st := openTestStore(t)

	client := &domain.Client{
		CustomerID:       "cust-1",
		Name:             "Alex Doe",
		Email:            "alex@example.com",
		Phone:            "555-0100",
		UniqueIdentifier: "AD-01",
	}
	if err := st.CreateClient(client); err != nil {
		t.Fatalf("create client: %v", err)
	}
	if client.ClientID == "" {
		t.Fatal("expected a generated client id")
	}

	if _, err := st.GetClient(client.ClientID, "cust-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cross-tenant get error = %v, want ErrNotFound", err)
	}
	got, err := st.GetClient(client.ClientID, "cust-1")
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	if got.Name != "Alex Doe" || got.UniqueIdentifier != "AD-01" {
		t.Fatalf("client = %+v", got)
	}

	name := "Alex D."
	updated, err := st.UpdateClient(client.ClientID, "cust-1", ClientUpdate{Name: &name})
	if err != nil {
		t.Fatalf("update client: %v", err)
	}
	if updated.Name != "Alex D." || updated.Email != "alex@example.com" {
		t.Fatalf("updated = %+v", updated)
	}

	clients, err := st.ListClients("cust-1")
	if err != nil {
		t.Fatalf("list clients: %v", err)
	}
	if len(clients) != 1 {
		t.Fatalf("clients = %d, want 1", len(clients))
	}
	if others, _ := st.ListClients("cust-2"); len(others) != 0 {
		t.Fatalf("cross-tenant list = %d, want 0", len(others))
	}

	if err := st.DeleteClient(client.ClientID, "cust-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cross-tenant delete error = %v, want ErrNotFound", err)
	}
	if err := st.DeleteClient(client.ClientID, "cust-1"); err != nil {
		t.Fatalf("delete client: %v", err)
	}
	if _, err := st.GetClient(client.ClientID, "cust-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get after delete error = %v, want ErrNotFound", err)
	}
}

func TestClientOwned(t *testing.T) {
	st := openTestStore(t)
	client := &domain.Client{CustomerID: "cust-1", Name: "Alex Doe"}
	if err := st.CreateClient(client); err != nil {
		t.Fatalf("create client: %v", err)
	}

	if err := st.ClientOwned(client.ClientID, "cust-1"); err != nil {
		t.Fatalf("owned check: %v", err)
	}
	if err := st.ClientOwned(client.ClientID, "cust-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cross-tenant owned error = %v, want ErrNotFound", err)
	}
	if err := st.ClientOwned("nope", "cust-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown client owned error = %v, want ErrNotFound", err)
	}
}

func TestCreateAndGetSession(t *testing.T) {
	st := openTestStore(t)
	sess := seedSession(t, st, "cust-1")

	if sess.SessionID == "" {
		t.Fatal("expected a generated session id")
	}
	if sess.Status != domain.StatusPending {
		t.Fatalf("status = %s, want pending", sess.Status)
	}

	got, err := st.GetSession(sess.SessionID, "cust-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Title != "intake session" || got.AudioPath != "/audio/intake.wav" {
		t.Fatalf("got = %+v", got)
	}
}

func TestGetSessionScopedByCustomer(t *testing.T) {
	st := openTestStore(t)
	sess := seedSession(t, st, "cust-1")

	if _, err := st.GetSession(sess.SessionID, "cust-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cross-tenant get error = %v, want ErrNotFound", err)
	}
}

func TestListSessionsFilters(t *testing.T) {
	st := openTestStore(t)
	a := seedSession(t, st, "cust-1")
	seedSession(t, st, "cust-1")
	seedSession(t, st, "cust-2")

	all, err := st.ListSessions("cust-1", "", "", 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("listed %d sessions, want 2", len(all))
	}

	if err := st.SetSessionStatus(a.SessionID, domain.StatusCompleted); err != nil {
		t.Fatalf("set status: %v", err)
	}
	completed, err := st.ListSessions("cust-1", "", domain.StatusCompleted, 10, 0)
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if len(completed) != 1 || completed[0].SessionID != a.SessionID {
		t.Fatalf("completed = %+v", completed)
	}
}

func TestUpdateSessionRefusesTranscribing(t *testing.T) {
	st := openTestStore(t)
	sess := seedSession(t, st, "cust-1")

	transcribing := domain.StatusTranscribing
	_, err := st.UpdateSession(sess.SessionID, "cust-1", SessionUpdate{Status: &transcribing})
	if !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("error = %v, want ErrInvalidStatus", err)
	}

	title := "renamed"
	updated, err := st.UpdateSession(sess.SessionID, "cust-1", SessionUpdate{Title: &title})
	if err != nil {
		t.Fatalf("update title: %v", err)
	}
	if updated.Title != "renamed" {
		t.Fatalf("title = %q", updated.Title)
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	st := openTestStore(t)
	sess := seedSession(t, st, "cust-1")
	if err := st.UpsertTranscript(&domain.Transcript{SessionID: sess.SessionID, Content: "text"}); err != nil {
		t.Fatalf("upsert transcript: %v", err)
	}

	if err := st.DeleteSession(sess.SessionID, "cust-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cross-tenant delete error = %v, want ErrNotFound", err)
	}
	if err := st.DeleteSession(sess.SessionID, "cust-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	ok, err := st.HasTranscript(sess.SessionID)
	if err != nil {
		t.Fatalf("has transcript: %v", err)
	}
	if ok {
		t.Fatal("transcript survived session deletion")
	}
}

func TestCompareAndSwapStatus(t *testing.T) {
	st := openTestStore(t)
	sess := seedSession(t, st, "cust-1")

	swapped, err := st.CompareAndSwapStatus(sess.SessionID,
		[]domain.SessionStatus{domain.StatusPending, domain.StatusCompleted},
		domain.StatusTranscribing)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if !swapped {
		t.Fatal("pending -> transcribing swap should succeed")
	}

	// Second swap loses: the session is already transcribing.
	swapped, err = st.CompareAndSwapStatus(sess.SessionID,
		[]domain.SessionStatus{domain.StatusPending, domain.StatusCompleted},
		domain.StatusTranscribing)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if swapped {
		t.Fatal("transcribing session must not be swapped again")
	}

	// Unknown session also reports no swap, not an error.
	swapped, err = st.CompareAndSwapStatus("nope",
		[]domain.SessionStatus{domain.StatusPending}, domain.StatusTranscribing)
	if err != nil {
		t.Fatalf("cas unknown: %v", err)
	}
	if swapped {
		t.Fatal("unknown session must not swap")
	}
}

func TestUpsertTranscriptOverwrites(t *testing.T) {
	st := openTestStore(t)
	sess := seedSession(t, st, "cust-1")

	first := &domain.Transcript{SessionID: sess.SessionID, Content: "draft", Language: "en", ConfidenceScore: 0.9}
	if err := st.UpsertTranscript(first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second := &domain.Transcript{SessionID: sess.SessionID, Content: "final", Language: "de", ConfidenceScore: 0.95}
	if err := st.UpsertTranscript(second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := st.GetTranscript(sess.SessionID, "cust-1")
	if err != nil {
		t.Fatalf("get transcript: %v", err)
	}
	if got.Content != "final" || got.Language != "de" || got.ConfidenceScore != 0.95 {
		t.Fatalf("transcript = %+v", got)
	}
}

func TestUpdateTranscriptContent(t *testing.T) {
	st := openTestStore(t)
	sess := seedSession(t, st, "cust-1")
	if err := st.UpsertTranscript(&domain.Transcript{SessionID: sess.SessionID, Content: "orig"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if _, err := st.UpdateTranscriptContent(sess.SessionID, "cust-2", "hacked"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cross-tenant update error = %v, want ErrNotFound", err)
	}

	got, err := st.UpdateTranscriptContent(sess.SessionID, "cust-1", "edited")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Content != "edited" {
		t.Fatalf("content = %q", got.Content)
	}
}

func TestNotesLifecycle(t *testing.T) {
	st := openTestStore(t)
	sess := seedSession(t, st, "cust-1")

	if _, err := st.CreateNote(sess.SessionID, "cust-2", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cross-tenant note error = %v, want ErrNotFound", err)
	}
	if _, err := st.CreateNote(sess.SessionID, "cust-1", "made good progress"); err != nil {
		t.Fatalf("create note: %v", err)
	}

	notes, err := st.ListNotes(sess.SessionID, "cust-1")
	if err != nil {
		t.Fatalf("list notes: %v", err)
	}
	if len(notes) != 1 || notes[0].Content != "made good progress" {
		t.Fatalf("notes = %+v", notes)
	}
}

func TestIssuesDefaultSeverity(t *testing.T) {
	st := openTestStore(t)
	sess := seedSession(t, st, "cust-1")

	issue, err := st.CreateIssue(sess.SessionID, "cust-1", "sleep disruption", "")
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}
	if issue.Severity != "medium" || issue.Status != "open" {
		t.Fatalf("issue = %+v", issue)
	}

	issues, err := st.ListIssues(sess.SessionID, "cust-1")
	if err != nil {
		t.Fatalf("list issues: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("issues = %d, want 1", len(issues))
	}
}

func TestFollowUpCompletion(t *testing.T) {
	st := openTestStore(t)
	sess := seedSession(t, st, "cust-1")

	due := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	fu, err := st.CreateFollowUp(sess.SessionID, "cust-1", "schedule next appointment", &due)
	if err != nil {
		t.Fatalf("create followup: %v", err)
	}

	if err := st.CompleteFollowUp(fu.FollowUpID, "cust-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cross-tenant complete error = %v, want ErrNotFound", err)
	}
	if err := st.CompleteFollowUp(fu.FollowUpID, "cust-1"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	followups, err := st.ListFollowUps(sess.SessionID, "cust-1")
	if err != nil {
		t.Fatalf("list followups: %v", err)
	}
	if len(followups) != 1 || !followups[0].Completed {
		t.Fatalf("followups = %+v", followups)
	}
	if followups[0].DueDate == nil || !followups[0].DueDate.Equal(due) {
		t.Fatalf("due date = %v, want %v", followups[0].DueDate, due)
	}
}
