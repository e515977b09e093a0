// Package chat wraps the streaming transport to the answering agent. The
// Adapter owns the growing turn history and fires hooks as the agent's
// response streams in and when a turn finalizes.
package chat

import (
	"context"

	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/formviewer/types"
)

// Request is one round-trip to the answering agent. Turns is the full
// ordered history including the user turn that triggered the round-trip.
type Request struct {
	Turns         []*types.Turn `json:"messages"`
	FormSubmitted bool          `json:"isFormSubmitted"`
	Preview       bool          `json:"isPreview"`
}

// Transport streams back the agent's next turn as content deltas,
// terminated by io.EOF on the reader.
type Transport interface {
	Stream(ctx context.Context, req *Request) (*schema.StreamReader[string], error)
}
