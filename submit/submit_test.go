package submit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/tbxark/formviewer/types"
)

type fakeStore struct {
	mu       sync.Mutex
	failures int
	saved    []*Request
	formIDs  []string
}

func (s *fakeStore) SaveConversation(ctx context.Context, formID string, req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("persistence unavailable")
	}
	s.saved = append(s.saved, req)
	s.formIDs = append(s.formIDs, formID)
	return nil
}

type recordingNotifier struct {
	started   int
	succeeded int
	failed    int
}

func (n *recordingNotifier) SubmissionStarted()         { n.started++ }
func (n *recordingNotifier) SubmissionSucceeded()       { n.succeeded++ }
func (n *recordingNotifier) SubmissionFailed(err error) { n.failed++ }

func history(contents ...string) []*types.Turn {
	turns := make([]*types.Turn, 0, len(contents))
	for i, content := range contents {
		if i%2 == 0 {
			turns = append(turns, types.NewUserTurn(content))
		} else {
			turns = append(turns, types.NewAssistantTurn(content))
		}
	}
	return turns
}

func TestCommitAppendsSyntheticFinishTurn(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	mgr, err := NewManager(store)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	hist := history("hello", "q1? [q1]", "answer")
	if err := mgr.Commit(context.Background(), "form-1", hist); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if len(store.saved) != 1 {
		t.Fatalf("saved %d requests, want 1", len(store.saved))
	}
	req := store.saved[0]
	if len(req.Messages) != 4 {
		t.Fatalf("payload has %d turns, want 4 (history + finish)", len(req.Messages))
	}
	last := req.Messages[3]
	if last.Content != types.SentinelField || last.Role != types.RoleUser || last.ID != types.FinishTurnID {
		t.Errorf("closing turn = %+v", last)
	}
	if !req.FormSubmitted {
		t.Error("payload not marked as submitted")
	}
	if store.formIDs[0] != "form-1" {
		t.Errorf("form ID = %q", store.formIDs[0])
	}
	if len(hist) != 3 {
		t.Error("Commit mutated the caller's history slice header")
	}
}

func TestCommitFailureThenManualRetry(t *testing.T) {
	t.Parallel()
	store := &fakeStore{failures: 1}
	notifier := &recordingNotifier{}
	mgr, err := NewManager(store, WithNotifier(notifier))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	if err := mgr.Commit(ctx, "form-1", history("hello", "bye [finish]")); err == nil {
		t.Fatal("Commit succeeded, want failure")
	}
	if !mgr.Submitted() {
		t.Error("Submitted false after failed commit, want true (optimistic)")
	}
	if notifier.failed != 1 || notifier.succeeded != 0 {
		t.Errorf("after failure: failed=%d succeeded=%d", notifier.failed, notifier.succeeded)
	}

	if err := mgr.Retry(ctx); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if notifier.succeeded != 1 {
		t.Errorf("succeeded notifications = %d, want exactly 1", notifier.succeeded)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved %d requests, want 1", len(store.saved))
	}
	if !mgr.Submitted() {
		t.Error("Submitted false after retry")
	}

	// The replay is the identical request, not a rebuilt one.
	if got := len(store.saved[0].Messages); got != 3 {
		t.Errorf("replayed payload has %d turns, want 3", got)
	}
	if err := mgr.Retry(ctx); !errors.Is(err, ErrNothingToRetry) {
		t.Errorf("Retry after success = %v, want ErrNothingToRetry", err)
	}
}

func TestRetryWithoutFailure(t *testing.T) {
	t.Parallel()
	mgr, err := NewManager(&fakeStore{})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := mgr.Retry(context.Background()); !errors.Is(err, ErrNothingToRetry) {
		t.Errorf("Retry = %v, want ErrNothingToRetry", err)
	}
}

type blockingStore struct {
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) SaveConversation(ctx context.Context, formID string, req *Request) error {
	close(s.entered)
	<-s.release
	return nil
}

func TestCommitRejectsConcurrentAttempt(t *testing.T) {
	t.Parallel()
	store := &blockingStore{entered: make(chan struct{}), release: make(chan struct{})}
	mgr, err := NewManager(store)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		done <- mgr.Commit(ctx, "form-1", history("hello"))
	}()
	<-store.entered

	if !mgr.InFlight() {
		t.Error("InFlight false while write outstanding")
	}
	if err := mgr.Commit(ctx, "form-1", history("hello")); !errors.Is(err, ErrInFlight) {
		t.Errorf("second Commit = %v, want ErrInFlight", err)
	}

	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("first Commit: %v", err)
	}
	if mgr.InFlight() {
		t.Error("InFlight true after write finished")
	}
}

func TestManagerReset(t *testing.T) {
	t.Parallel()
	store := &fakeStore{failures: 1}
	mgr, err := NewManager(store)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	_ = mgr.Commit(ctx, "form-1", history("hello"))
	mgr.Reset()
	if mgr.Submitted() {
		t.Error("Submitted true after Reset")
	}
	if err := mgr.Retry(ctx); !errors.Is(err, ErrNothingToRetry) {
		t.Errorf("Retry after Reset = %v, want ErrNothingToRetry", err)
	}
}

func TestHTTPStoreSaveConversation(t *testing.T) {
	t.Parallel()
	var gotPath string
	var gotBody Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := NewHTTPStore(server.URL)
	req := &Request{
		Messages:      history("hello", "bye [finish]"),
		FormSubmitted: true,
	}
	if err := store.SaveConversation(context.Background(), "form-9", req); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}
	if gotPath != "/form/form-9/conversation" {
		t.Errorf("path = %q", gotPath)
	}
	if len(gotBody.Messages) != 2 || !gotBody.FormSubmitted {
		t.Errorf("decoded body = %+v", gotBody)
	}
}

func TestHTTPStoreNonSuccessStatus(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	store := NewHTTPStore(server.URL)
	err := store.SaveConversation(context.Background(), "form-9", &Request{})
	if err == nil {
		t.Fatal("SaveConversation succeeded on 500")
	}
}
