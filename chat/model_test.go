package chat

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/formviewer/types"
)

// stubChatModel captures the prompt and streams a canned reply.
type stubChatModel struct {
	prompt []*schema.Message
	reply  string
}

func (m *stubChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.prompt = input
	return &schema.Message{Role: schema.Assistant, Content: m.reply}, nil
}

func (m *stubChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.prompt = input
	return schema.StreamReaderFromArray([]*schema.Message{
		{Role: schema.Assistant, Content: m.reply},
	}), nil
}

func TestModelTransportPrompt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	stub := &stubChatModel{reply: "What is your name? [name]"}
	fields := []types.FieldDescriptor{
		{Name: "name", Order: 0},
		{Name: "email", Order: 1},
	}
	transport := NewModelTransport(stub, fields)

	stream, err := transport.Stream(ctx, &Request{
		Turns: []*types.Turn{
			types.GreetingTurn(),
			types.NewAssistantTurn("Hi there! [name]"),
			types.NewUserTurn("Alice"),
		},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	if len(stub.prompt) != 4 {
		t.Fatalf("prompt has %d messages, want 4 (system + 3 turns)", len(stub.prompt))
	}
	system := stub.prompt[0]
	if system.Role != schema.System {
		t.Errorf("first message role = %q", system.Role)
	}
	if !strings.Contains(system.Content, "name") || !strings.Contains(system.Content, "email") {
		t.Error("system prompt does not list the fields")
	}
	if !strings.Contains(system.Content, "[finish]") {
		t.Error("system prompt does not mention the completion marker")
	}
	if stub.prompt[1].Role != schema.User || stub.prompt[2].Role != schema.Assistant || stub.prompt[3].Role != schema.User {
		t.Errorf("turn roles mapped wrong: %v %v %v", stub.prompt[1].Role, stub.prompt[2].Role, stub.prompt[3].Role)
	}

	delta, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if delta != "What is your name? [name]" {
		t.Errorf("delta = %q", delta)
	}
}

func TestModelTransportSystemPromptOverride(t *testing.T) {
	t.Parallel()
	stub := &stubChatModel{reply: "ok"}
	transport := NewModelTransport(stub, nil, WithSystemPrompt("you are a test"))

	stream, err := transport.Stream(context.Background(), &Request{})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()
	if stub.prompt[0].Content != "you are a test" {
		t.Errorf("system prompt = %q", stub.prompt[0].Content)
	}
}

// TestModelTransportLive exercises a real model end to end. Off by default.
func TestModelTransportLive(t *testing.T) {
	if os.Getenv("FORMVIEWER_RUN_LIVE_TESTS") != "1" {
		t.Skip("set FORMVIEWER_RUN_LIVE_TESTS=1 to run live LLM tests")
	}
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY is empty")
	}
	modelName := os.Getenv("OPENAI_MODEL")
	if modelName == "" {
		modelName = "gpt-4o"
	}

	ctx := context.Background()
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  apiKey,
		Model:   modelName,
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
	})
	if err != nil {
		t.Fatalf("init chat model: %v", err)
	}

	fields := []types.FieldDescriptor{{Name: "name", Order: 0}}
	adapter, err := NewAdapter(NewModelTransport(cm, fields), NewMemoryHistoryStore())
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	turn, err := adapter.SendTurn(ctx, types.GreetingTurn(), false)
	if err != nil {
		t.Fatalf("SendTurn: %v", err)
	}
	if turn.Content == "" {
		t.Error("live model returned empty turn")
	}
	t.Logf("live agent turn: %s", turn.Content)
}
