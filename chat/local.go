package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// ScriptTransport replays a fixed sequence of agent responses, one per
// round-trip, streamed in small chunks. It backs offline tests and demos
// the same way the rest of the module runs against a live model.
type ScriptTransport struct {
	mu        sync.Mutex
	responses []string
	errs      map[int]error
	calls     int
	next      int
	requests  []*Request
}

func NewScriptTransport(responses ...string) *ScriptTransport {
	return &ScriptTransport{
		responses: responses,
		errs:      map[int]error{},
	}
}

// FailCall makes the n-th round-trip (zero-based) fail with err instead of
// streaming a response. The scripted response for that slot is not consumed.
func (t *ScriptTransport) FailCall(n int, err error) {
	t.mu.Lock()
	t.errs[n] = err
	t.mu.Unlock()
}

// Calls reports how many round-trips have been issued.
func (t *ScriptTransport) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// LastRequest returns the most recent request, or nil before the first call.
func (t *ScriptTransport) LastRequest() *Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.requests) == 0 {
		return nil
	}
	return t.requests[len(t.requests)-1]
}

func (t *ScriptTransport) Stream(ctx context.Context, req *Request) (*schema.StreamReader[string], error) {
	t.mu.Lock()
	call := t.calls
	t.calls++
	t.requests = append(t.requests, req)
	err, failed := t.errs[call]
	var response string
	if !failed {
		if t.next >= len(t.responses) {
			t.mu.Unlock()
			return nil, fmt.Errorf("script exhausted after %d responses", len(t.responses))
		}
		response = t.responses[t.next]
		t.next++
	}
	t.mu.Unlock()

	if failed {
		return nil, err
	}
	chunks := strings.SplitAfter(response, " ")
	return schema.StreamReaderFromArray(chunks), nil
}
