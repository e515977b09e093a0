package types

import "github.com/google/uuid"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Stage string

const (
	StageWelcome Stage = "welcome"
	StageFields  Stage = "fields"
	StageEnd     Stage = "end"
)

// SentinelField is the reserved marker value an agent turn carries when the
// dialogue has covered every field. Matched case-insensitively.
const SentinelField = "finish"

// Well-known turn IDs kept wire-compatible with existing clients. Organic
// turns get random UUIDs instead.
const (
	GreetingTurnID = "1"
	FinishTurnID   = "2"
)

const GreetingContent = "hello, i want to fill the form"

// Annotation is the structured tag attached to a finalized agent turn,
// parsed once from the trailing bracket marker so consumers never re-parse
// the free text.
type Annotation struct {
	AnsweredField string `json:"answered_field"`
}

// Turn is one message in the dialogue. Immutable once created; the history
// it belongs to is append-only.
type Turn struct {
	ID         string      `json:"id"`
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	Annotation *Annotation `json:"annotation,omitempty"`
}

func NewUserTurn(content string) *Turn {
	return &Turn{ID: uuid.NewString(), Role: RoleUser, Content: content}
}

func NewAssistantTurn(content string) *Turn {
	return &Turn{ID: uuid.NewString(), Role: RoleAssistant, Content: content}
}

// GreetingTurn is the fixed user turn that opens the field-answering stage.
func GreetingTurn() *Turn {
	return &Turn{ID: GreetingTurnID, Role: RoleUser, Content: GreetingContent}
}

// FinishTurn is the synthetic user turn appended to the history at
// submission time.
func FinishTurn() *Turn {
	return &Turn{ID: FinishTurnID, Role: RoleUser, Content: SentinelField}
}

// FieldDescriptor is the static definition of one form field. The ordered
// list of descriptors is owned by the form definition; this core never
// mutates it.
type FieldDescriptor struct {
	Name  string `json:"field_name"`
	Order int    `json:"order"`
}
