// Package submit commits the finished dialogue to the persistence
// collaborator. A commit packages the full turn history plus one synthetic
// closing turn; a failed commit is kept verbatim so a user-triggered retry
// replays the identical request.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/tbxark/formviewer/types"
)

var (
	// ErrInFlight is returned when a commit is attempted while another one
	// is still outstanding.
	ErrInFlight = errors.New("submit: submission already in flight")
	// ErrNothingToRetry is returned by Retry when no commit has failed.
	ErrNothingToRetry = errors.New("submit: no failed submission to retry")
)

// Request is the write sent to the persistence collaborator. The
// collaborator is expected to be idempotent-safe: receiving the same
// finalized history twice must not corrupt stored state.
type Request struct {
	Messages      []*types.Turn `json:"messages"`
	FormSubmitted bool          `json:"isFormSubmitted"`
	Preview       bool          `json:"isPreview"`
}

// Store is the persistence boundary, keyed by form identifier.
type Store interface {
	SaveConversation(ctx context.Context, formID string, req *Request) error
}

// Notifier receives the user-facing submission events. All three are
// emitted synchronously from Commit/Retry.
type Notifier interface {
	SubmissionStarted()
	SubmissionSucceeded()
	SubmissionFailed(err error)
}

type nopNotifier struct{}

func (nopNotifier) SubmissionStarted()         {}
func (nopNotifier) SubmissionSucceeded()       {}
func (nopNotifier) SubmissionFailed(err error) {}

type commitRequest struct {
	formID  string
	payload *Request
}

// Manager serializes submissions with a single-slot in-flight token.
// Acquiring the token is the only way to start a write, so concurrent
// double-submission is structurally impossible.
type Manager struct {
	store    Store
	notifier Notifier
	preview  bool

	mu         sync.Mutex
	inFlight   bool
	submitted  bool
	lastFailed *commitRequest
}

type managerOptions struct {
	notifier Notifier
	preview  bool
}

type ManagerOption func(*managerOptions)

// WithNotifier routes submission events to the presentation collaborator.
func WithNotifier(notifier Notifier) ManagerOption {
	return func(o *managerOptions) {
		o.notifier = notifier
	}
}

// WithPreview marks every commit from this manager as a preview-mode write.
func WithPreview(preview bool) ManagerOption {
	return func(o *managerOptions) {
		o.preview = preview
	}
}

func NewManager(store Store, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("submit: store is required")
	}
	options := managerOptions{notifier: nopNotifier{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.notifier == nil {
		options.notifier = nopNotifier{}
	}
	return &Manager{
		store:    store,
		notifier: options.notifier,
		preview:  options.preview,
	}, nil
}

// Commit builds the submission payload from the full history plus the
// synthetic closing turn and writes it. Submitted is set before the write:
// a later retry replays the stored payload rather than in-memory progress.
func (m *Manager) Commit(ctx context.Context, formID string, history []*types.Turn) error {
	payload := &Request{
		Messages:      append(slices.Clone(history), types.FinishTurn()),
		FormSubmitted: true,
		Preview:       m.preview,
	}
	return m.run(ctx, &commitRequest{formID: formID, payload: payload})
}

// Retry re-issues the last failed commit with the identical payload. It is
// purely user-triggered; the manager never retries on its own.
func (m *Manager) Retry(ctx context.Context) error {
	m.mu.Lock()
	req := m.lastFailed
	m.mu.Unlock()
	if req == nil {
		return ErrNothingToRetry
	}
	return m.run(ctx, req)
}

func (m *Manager) run(ctx context.Context, req *commitRequest) error {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return ErrInFlight
	}
	m.inFlight = true
	m.submitted = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inFlight = false
		m.mu.Unlock()
	}()

	slog.Debug("submitting conversation", "form_id", req.formID, "turns", len(req.payload.Messages))
	m.notifier.SubmissionStarted()
	if err := m.store.SaveConversation(ctx, req.formID, req.payload); err != nil {
		m.mu.Lock()
		m.lastFailed = req
		m.mu.Unlock()
		m.notifier.SubmissionFailed(err)
		return fmt.Errorf("save conversation: %w", err)
	}
	m.mu.Lock()
	m.lastFailed = nil
	m.mu.Unlock()
	m.notifier.SubmissionSucceeded()
	return nil
}

// Submitted reports whether a commit has been attempted this session.
func (m *Manager) Submitted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitted
}

// InFlight reports whether a write is currently outstanding.
func (m *Manager) InFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

// Reset clears the submitted flag and any stored failed commit. Used when
// the session restarts.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.submitted = false
	m.lastFailed = nil
	m.mu.Unlock()
}
