// Package formviewer drives a chat-style form-filling session: a
// three-stage state machine (welcome, fields, end), a tracker mapping each
// finalized agent turn onto the form's field list, completion detection on
// the reserved "finish" marker, and submission of the collected dialogue
// with a user-triggered retry.
package formviewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tbxark/formviewer/chat"
	"github.com/tbxark/formviewer/store"
	"github.com/tbxark/formviewer/submit"
	"github.com/tbxark/formviewer/tracker"
	"github.com/tbxark/formviewer/types"
)

// ErrBusy is returned when a send is attempted while a chat round-trip is
// already outstanding. Hosts typically disable input instead of hitting it.
var ErrBusy = errors.New("formviewer: chat round-trip already in flight")

// Viewer orchestrates one form-filling session. It owns the session state
// exclusively; a Viewer must not be shared across concurrent sessions.
type Viewer struct {
	formID    string
	fields    tracker.FieldList
	adapter   *chat.Adapter
	submitter *submit.Manager

	mu    sync.Mutex
	state State
}

type viewerOptions struct {
	preview     bool
	notifier    submit.Notifier
	historyCore store.Cache[[]*types.Turn]
	onDelta     func(delta string)
	onFinished  func(turn *types.Turn)
}

type Option func(*viewerOptions)

// WithPreview marks the whole session as a preview: chat round-trips and
// the final write both carry the preview flag.
func WithPreview(preview bool) Option {
	return func(o *viewerOptions) {
		o.preview = preview
	}
}

// WithNotifier routes the submission progress/success/failure events to the
// presentation collaborator.
func WithNotifier(notifier submit.Notifier) Option {
	return func(o *viewerOptions) {
		o.notifier = notifier
	}
}

// WithHistoryCache overrides the history storage backend.
func WithHistoryCache(core store.Cache[[]*types.Turn]) Option {
	return func(o *viewerOptions) {
		o.historyCore = core
	}
}

// WithTurnDeltaHook fires for each streamed chunk of an agent response, for
// incremental rendering.
func WithTurnDeltaHook(fn func(delta string)) Option {
	return func(o *viewerOptions) {
		o.onDelta = fn
	}
}

// WithTurnFinishedHook fires once per round-trip with the finalized agent
// turn, before the viewer runs field tracking on it.
func WithTurnFinishedHook(fn func(turn *types.Turn)) Option {
	return func(o *viewerOptions) {
		o.onFinished = fn
	}
}

// NewViewer wires a session for the given form. The transport and the
// persistence store are the two external collaborators; everything else is
// owned by the viewer.
func NewViewer(formID string, fields []types.FieldDescriptor, transport chat.Transport, persistence submit.Store, opts ...Option) (*Viewer, error) {
	if formID == "" {
		return nil, errors.New("formviewer: form ID is required")
	}
	options := viewerOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	var history *chat.HistoryStore
	if options.historyCore != nil {
		history = chat.NewHistoryStore(options.historyCore)
	} else {
		history = chat.NewMemoryHistoryStore()
	}

	adapterOpts := []chat.AdapterOption{
		chat.WithPreview(options.preview),
		chat.WithAnnotator(tracker.Annotate),
	}
	if options.onDelta != nil {
		adapterOpts = append(adapterOpts, chat.WithTurnDeltaHook(options.onDelta))
	}
	if options.onFinished != nil {
		adapterOpts = append(adapterOpts, chat.WithTurnFinishedHook(options.onFinished))
	}
	adapter, err := chat.NewAdapter(transport, history, adapterOpts...)
	if err != nil {
		return nil, fmt.Errorf("formviewer: %w", err)
	}

	submitOpts := []submit.ManagerOption{submit.WithPreview(options.preview)}
	if options.notifier != nil {
		submitOpts = append(submitOpts, submit.WithNotifier(options.notifier))
	}
	submitter, err := submit.NewManager(persistence, submitOpts...)
	if err != nil {
		return nil, fmt.Errorf("formviewer: %w", err)
	}

	return &Viewer{
		formID:    formID,
		fields:    fields,
		adapter:   adapter,
		submitter: submitter,
		state:     NewState(),
	}, nil
}

// Begin advances the session from the welcome stage and sends the fixed
// greeting to prompt the first question. Invoking it again is a no-op:
// exactly one greeting is ever sent per session. If the greeting round-trip
// fails the stage stays at fields and the caller decides whether to retry
// by sending input.
func (v *Viewer) Begin(ctx context.Context) error {
	v.mu.Lock()
	next, ok := v.state.begin()
	if !ok || v.state.Busy {
		v.mu.Unlock()
		return nil
	}
	v.state = next.withBusy(true)
	v.mu.Unlock()

	slog.Debug("session begun", "form_id", v.formID)
	turn, err := v.adapter.SendTurn(ctx, types.GreetingTurn(), false)
	v.setBusy(false)
	if err != nil {
		return fmt.Errorf("send greeting: %w", err)
	}
	return v.handleTurnFinished(ctx, turn)
}

// Send forwards one user answer through the chat adapter and processes the
// finalized agent turn. It is a no-op returning ErrBusy while a round-trip
// is outstanding, and only valid during the fields stage.
func (v *Viewer) Send(ctx context.Context, content string) (*types.Turn, error) {
	v.mu.Lock()
	if v.state.Busy {
		v.mu.Unlock()
		return nil, ErrBusy
	}
	if v.state.Stage != types.StageFields {
		v.mu.Unlock()
		return nil, fmt.Errorf("formviewer: cannot send during stage %q", v.state.Stage)
	}
	submitted := v.state.Submitted
	v.state = v.state.withBusy(true)
	v.mu.Unlock()

	turn, err := v.adapter.Send(ctx, content, submitted)
	v.setBusy(false)
	if err != nil {
		return nil, err
	}
	if err := v.handleTurnFinished(ctx, turn); err != nil {
		return turn, err
	}
	return turn, nil
}

// handleTurnFinished is the tracker/completion hook, run synchronously
// against every finalized agent turn in finalization order. It consumes
// the turn's parsed annotation rather than re-parsing the content.
func (v *Viewer) handleTurnFinished(ctx context.Context, turn *types.Turn) error {
	if turn.Annotation == nil {
		// Small talk; progress unchanged.
		return nil
	}
	fieldName := turn.Annotation.AnsweredField
	fieldIndex := v.fields.IndexOf(fieldName)
	if fieldIndex < 0 && !tracker.IsSentinel(fieldName) {
		slog.Debug("marker does not match a declared field", "form_id", v.formID, "marker", fieldName)
	}

	v.mu.Lock()
	v.state = v.state.withProgress(fieldName, fieldIndex)
	fire := tracker.IsSentinel(v.state.CurrentFieldName) && !v.state.Submitted
	if fire {
		v.state = v.state.withSubmitted(true)
	}
	v.mu.Unlock()

	if !fire {
		return nil
	}
	return v.finishSession(ctx)
}

// finishSession runs the one-shot completion sequence: commit the dialogue,
// then close the stage. A failed commit still ends the session; the
// notifier has offered the manual retry by then.
func (v *Viewer) finishSession(ctx context.Context) error {
	hist, err := v.adapter.History(ctx)
	if err != nil {
		return fmt.Errorf("load history for submission: %w", err)
	}
	if cErr := v.submitter.Commit(ctx, v.formID, hist); cErr != nil {
		slog.Warn("conversation commit failed", "form_id", v.formID, "error", cErr)
	}
	v.Complete()
	return nil
}

// Complete advances the stage from fields to end. Idempotent; unreachable
// from welcome.
func (v *Viewer) Complete() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if next, ok := v.state.complete(); ok {
		v.state = next
	}
}

// Retry re-attempts the last failed commit with the identical payload.
func (v *Viewer) Retry(ctx context.Context) error {
	return v.submitter.Retry(ctx)
}

// Reset returns the session to the welcome stage and drops all collected
// turns. Hosts call it when the session is explicitly restarted, e.g. on
// re-entering preview mode.
func (v *Viewer) Reset(ctx context.Context) error {
	v.mu.Lock()
	v.state = v.state.reset()
	v.mu.Unlock()
	v.submitter.Reset()
	if err := v.adapter.ClearHistory(ctx); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	slog.Debug("session reset", "form_id", v.formID)
	return nil
}

// State returns a snapshot of the session state.
func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// CurrentQuestion returns the content of the latest agent turn, for the
// rendering collaborator.
func (v *Viewer) CurrentQuestion(ctx context.Context) (string, error) {
	return v.adapter.CurrentQuestion(ctx)
}

// History returns the session's turn history in insertion order.
func (v *Viewer) History(ctx context.Context) ([]*types.Turn, error) {
	return v.adapter.History(ctx)
}

func (v *Viewer) setBusy(busy bool) {
	v.mu.Lock()
	v.state = v.state.withBusy(busy)
	v.mu.Unlock()
}
