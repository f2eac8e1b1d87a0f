package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"marquee/internal/config"
	"marquee/internal/logging"
	"marquee/internal/requests"
	"marquee/internal/services"
	"marquee/internal/services/llm"
)

// Dispatcher runs the bounded tool-calling loop for one inbound message at a
// time. Conversations for different phone numbers run independently; within
// one turn the loop is strictly sequential.
type Dispatcher struct {
	oracle   llm.Oracle
	registry *Registry
	store    *requests.Store
	logger   *slog.Logger

	maxIterations int
	historyLimit  int
	fallback      string
}

// NewDispatcher wires the agent loop.
func NewDispatcher(cfg *config.Config, oracle llm.Oracle, registry *Registry, store *requests.Store, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	maxIterations := cfg.Agent.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 6
	}
	historyLimit := cfg.Agent.HistoryLimit
	if historyLimit < 0 {
		historyLimit = 0
	}
	fallback := strings.TrimSpace(cfg.Agent.FallbackMessage)
	if fallback == "" {
		fallback = "Sorry, I couldn't work out what to do with that. Try texting a movie title."
	}
	return &Dispatcher{
		oracle:        oracle,
		registry:      registry,
		store:         store,
		logger:        logging.NewComponentLogger(logger, "agent"),
		maxIterations: maxIterations,
		historyLimit:  historyLimit,
		fallback:      fallback,
	}
}

// HandleMessage processes one inbound SMS and returns the reply to send.
// The loop consults the oracle, executes at most one validly selected action
// per iteration, and terminates on a final message or the iteration cap.
// Free text from the oracle is never treated as a command.
func (d *Dispatcher) HandleMessage(ctx context.Context, phone, body string) (string, error) {
	phone = strings.TrimSpace(phone)
	body = strings.TrimSpace(body)
	if phone == "" {
		return "", services.Wrap(services.ErrValidation, "agent", "handle", "sender phone required", nil)
	}
	if body == "" {
		return "", services.Wrap(services.ErrValidation, "agent", "handle", "message body required", nil)
	}
	ctx = services.WithPhone(ctx, phone)
	logger := d.logger.With(logging.String(logging.FieldPhone, phone))

	messages, err := d.buildConversation(ctx, phone, body)
	if err != nil {
		return "", err
	}
	if err := d.store.AppendMessage(ctx, phone, requests.RoleUser, body); err != nil {
		return "", err
	}

	tools := d.registry.Tools()
	for iteration := 1; iteration <= d.maxIterations; iteration++ {
		turn, err := d.oracle.Complete(ctx, messages, tools)
		if err != nil {
			return "", err
		}

		if turn.ToolCall == nil {
			reply := strings.TrimSpace(turn.Content)
			if reply == "" {
				break
			}
			if err := d.store.AppendMessage(ctx, phone, requests.RoleAssistant, reply); err != nil {
				logger.Warn("record reply failed", logging.Error(err))
			}
			return reply, nil
		}

		call := turn.ToolCall
		logger.Info("oracle selected action",
			logging.String("action", call.Name),
			logging.Int("iteration", iteration))

		messages = append(messages, llm.Message{
			Role:      "assistant",
			ToolCalls: []llm.ToolCall{*call},
		})
		messages = append(messages, llm.Message{
			Role:       "tool",
			ToolCallID: call.ID,
			Content:    d.executeCall(ctx, logger, call),
		})
	}

	logger.Warn("iteration cap reached, sending fallback")
	if err := d.store.AppendMessage(ctx, phone, requests.RoleAssistant, d.fallback); err != nil {
		logger.Warn("record reply failed", logging.Error(err))
	}
	return d.fallback, nil
}

// executeCall runs one selected action and renders its outcome as the tool
// result fed back to the oracle. Failures become structured feedback on the
// same turn, never an aborted conversation.
func (d *Dispatcher) executeCall(ctx context.Context, logger *slog.Logger, call *llm.ToolCall) string {
	action, ok := d.registry.Lookup(call.Name)
	if !ok {
		logger.Warn("oracle selected unknown action", logging.String("action", call.Name))
		return toolError("unknown action " + call.Name + "; choose one of the provided tools")
	}

	result, err := action.Handle(ctx, json.RawMessage(call.Arguments))
	if err == nil {
		return result
	}

	switch {
	case errors.Is(err, services.ErrValidation):
		logger.Warn("action arguments invalid",
			logging.String("action", call.Name),
			logging.Error(err))
		return toolError("invalid arguments: " + err.Error())
	case errors.Is(err, services.ErrNotFound):
		return toolError("not found: " + err.Error())
	default:
		logger.Error("action failed",
			logging.String("action", call.Name),
			logging.Error(err))
		return toolError("the action failed: " + err.Error())
	}
}

func (d *Dispatcher) buildConversation(ctx context.Context, phone, body string) ([]llm.Message, error) {
	messages := []llm.Message{{Role: "system", Content: systemPrompt}}

	if d.historyLimit > 0 {
		history, err := d.store.History(ctx, phone, d.historyLimit)
		if err != nil {
			return nil, err
		}
		for _, msg := range history {
			messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Body})
		}
	}
	return append(messages, llm.Message{Role: "user", Content: body}), nil
}

func toolError(message string) string {
	encoded, err := json.Marshal(map[string]any{"success": false, "error": message})
	if err != nil {
		return `{"success":false,"error":"internal error"}`
	}
	return string(encoded)
}
