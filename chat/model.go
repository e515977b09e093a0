package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/formviewer/types"
)

// DefaultSystemPromptTemplate is the default system prompt used by
// ModelTransport. The template contains a single "%s" placeholder for the
// rendered field table.
const DefaultSystemPromptTemplate = `You are a friendly assistant guiding a respondent through a form, one question at a time.

Rules:
- Ask exactly one question per turn, in the declared field order.
- End every question with the field marker in square brackets, e.g. "What is your name? [name]". The marker must be the exact field name.
- If the respondent chats without answering, reply briefly and re-ask the current question with its marker.
- After the last field has been answered, thank the respondent and end your reply with [finish].

Fields to collect, in order:
%s`

// ModelTransport answers each round-trip with an eino chat model. It is the
// production Transport when the host talks to the model directly instead of
// going through a conversation endpoint.
type ModelTransport struct {
	systemPrompt string
	chatModel    model.BaseChatModel
}

type modelTransportOptions struct {
	systemPrompt         string
	systemPromptTemplate string
}

type ModelTransportOption func(*modelTransportOptions)

// WithSystemPrompt overrides the system prompt entirely.
func WithSystemPrompt(systemPrompt string) ModelTransportOption {
	return func(o *modelTransportOptions) {
		o.systemPrompt = systemPrompt
	}
}

// WithSystemPromptTemplate overrides the system prompt template. If the
// template contains "%s", it is formatted with the rendered field table.
func WithSystemPromptTemplate(systemPromptTemplate string) ModelTransportOption {
	return func(o *modelTransportOptions) {
		o.systemPromptTemplate = systemPromptTemplate
	}
}

func NewModelTransport(chatModel model.BaseChatModel, fields []types.FieldDescriptor, opts ...ModelTransportOption) *ModelTransport {
	options := modelTransportOptions{
		systemPromptTemplate: DefaultSystemPromptTemplate,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	systemPrompt := options.systemPrompt
	if systemPrompt == "" {
		tpl := options.systemPromptTemplate
		if tpl == "" {
			tpl = DefaultSystemPromptTemplate
		}
		if strings.Contains(tpl, "%s") {
			systemPrompt = fmt.Sprintf(tpl, types.FormatFields(fields))
		} else {
			systemPrompt = tpl
		}
	}
	return &ModelTransport{
		systemPrompt: systemPrompt,
		chatModel:    chatModel,
	}
}

func (t *ModelTransport) Stream(ctx context.Context, req *Request) (*schema.StreamReader[string], error) {
	messages := t.buildPrompt(req)
	stream, err := t.chatModel.Stream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("LLM stream call failed: %w", err)
	}
	textStream := schema.StreamReaderWithConvert[*schema.Message, string](stream, func(message *schema.Message) (string, error) {
		return message.Content, nil
	})
	return textStream, nil
}

func (t *ModelTransport) buildPrompt(req *Request) []*schema.Message {
	messages := make([]*schema.Message, 0, len(req.Turns)+1)
	messages = append(messages, &schema.Message{
		Role:    schema.System,
		Content: t.systemPrompt,
	})
	for _, turn := range req.Turns {
		if turn == nil {
			continue
		}
		role := schema.User
		if turn.Role == types.RoleAssistant {
			role = schema.Assistant
		}
		messages = append(messages, &schema.Message{
			Role:    role,
			Content: turn.Content,
		})
	}
	return messages
}
