package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/tbxark/formviewer/types"
)

// Adapter drives one chat round-trip at a time against a Transport and owns
// the session's turn history. It appends the user turn before the
// round-trip and the finalized agent turn after it; a transport error
// appends nothing and is surfaced to the caller. The adapter does not gate
// concurrent sends, that is the caller's busy flag.
type Adapter struct {
	transport  Transport
	history    *HistoryStore
	preview    bool
	annotate   func(content string) *types.Annotation
	onDelta    func(delta string)
	onFinished func(turn *types.Turn)
}

type adapterOptions struct {
	preview    bool
	annotate   func(content string) *types.Annotation
	onDelta    func(delta string)
	onFinished func(turn *types.Turn)
}

type AdapterOption func(*adapterOptions)

// WithPreview marks every request from this adapter as a preview-mode
// round-trip.
func WithPreview(preview bool) AdapterOption {
	return func(o *adapterOptions) {
		o.preview = preview
	}
}

// WithAnnotator tags each finalized agent turn with the structured
// annotation parsed from its content, before the turn is appended.
func WithAnnotator(fn func(content string) *types.Annotation) AdapterOption {
	return func(o *adapterOptions) {
		o.annotate = fn
	}
}

// WithTurnDeltaHook fires for each streamed chunk of the agent response.
func WithTurnDeltaHook(fn func(delta string)) AdapterOption {
	return func(o *adapterOptions) {
		o.onDelta = fn
	}
}

// WithTurnFinishedHook fires exactly once per round-trip with the finalized
// agent turn, after it has been appended to the history.
func WithTurnFinishedHook(fn func(turn *types.Turn)) AdapterOption {
	return func(o *adapterOptions) {
		o.onFinished = fn
	}
}

func NewAdapter(transport Transport, history *HistoryStore, opts ...AdapterOption) (*Adapter, error) {
	if transport == nil {
		return nil, errors.New("chat: transport is required")
	}
	if history == nil {
		history = NewMemoryHistoryStore()
	}
	options := adapterOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return &Adapter{
		transport:  transport,
		history:    history,
		preview:    options.preview,
		annotate:   options.annotate,
		onDelta:    options.onDelta,
		onFinished: options.onFinished,
	}, nil
}

// Send appends a user turn with the given content and runs one round-trip.
func (a *Adapter) Send(ctx context.Context, content string, formSubmitted bool) (*types.Turn, error) {
	return a.SendTurn(ctx, types.NewUserTurn(content), formSubmitted)
}

// SendTurn appends the given user turn and runs one round-trip, returning
// the finalized agent turn. Hooks run synchronously, so by the time
// SendTurn returns the turn-finished hook has already observed the turn.
func (a *Adapter) SendTurn(ctx context.Context, turn *types.Turn, formSubmitted bool) (*types.Turn, error) {
	hist, err := a.history.Append(ctx, turn)
	if err != nil {
		return nil, fmt.Errorf("append user turn: %w", err)
	}
	stream, err := a.transport.Stream(ctx, &Request{
		Turns:         hist,
		FormSubmitted: formSubmitted,
		Preview:       a.preview,
	})
	if err != nil {
		return nil, fmt.Errorf("open agent stream: %w", err)
	}
	defer stream.Close()

	var content strings.Builder
	for {
		delta, rErr := stream.Recv()
		if rErr == io.EOF {
			break
		}
		if rErr != nil {
			return nil, fmt.Errorf("agent stream: %w", rErr)
		}
		content.WriteString(delta)
		if a.onDelta != nil {
			a.onDelta(delta)
		}
	}

	agentTurn := types.NewAssistantTurn(content.String())
	if a.annotate != nil {
		agentTurn.Annotation = a.annotate(agentTurn.Content)
	}
	if _, err := a.history.Append(ctx, agentTurn); err != nil {
		return nil, fmt.Errorf("append agent turn: %w", err)
	}
	slog.Debug("agent turn finalized", "id", agentTurn.ID, "content", agentTurn.Content)
	if a.onFinished != nil {
		a.onFinished(agentTurn)
	}
	return agentTurn, nil
}

// History returns the session's turn history in insertion order.
func (a *Adapter) History(ctx context.Context) ([]*types.Turn, error) {
	return a.history.Load(ctx)
}

// CurrentQuestion returns the content of the most recent agent turn, or ""
// when the agent has not spoken yet.
func (a *Adapter) CurrentQuestion(ctx context.Context) (string, error) {
	hist, err := a.history.Load(ctx)
	if err != nil {
		return "", err
	}
	for i := len(hist) - 1; i >= 0; i-- {
		if hist[i] != nil && hist[i].Role == types.RoleAssistant {
			return hist[i].Content, nil
		}
	}
	return "", nil
}

// ClearHistory drops the session's history. Used on session reset.
func (a *Adapter) ClearHistory(ctx context.Context) error {
	return a.history.Clear(ctx)
}
