package guide

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/vanba/spiritchat/backend/internal/analysis/emotion"
	"github.com/vanba/spiritchat/backend/internal/config"
	"github.com/vanba/spiritchat/backend/internal/model/chat"
	"github.com/vanba/spiritchat/backend/internal/model/profile"
	"github.com/vanba/spiritchat/backend/internal/store"
)

// Reply is one generated assistant turn.
type Reply struct {
	Content            string
	ScriptureReference string
}

// Service produces assistant replies. By default it picks from the
// knowledge base offline — a deterministic stand-in with no retry path.
// When Ark credentials are configured the reply comes from the chat model
// instead; a real model integration needs its own retry and backoff,
// which this service deliberately does not have.
type Service struct {
	knowledge store.KnowledgeStore
	chain     compose.Runnable[map[string]any, *schema.Message]
	pick      func(n int) int
}

// NewService wires the generator. When cfg is not enabled the model path
// stays off and replies come from the knowledge base only.
func NewService(ctx context.Context, knowledgeStore store.KnowledgeStore, cfg config.AIConfig) (*Service, error) {
	svc := &Service{
		knowledge: knowledgeStore,
		pick:      rand.IntN,
	}

	if !cfg.Enabled() {
		return svc, nil
	}

	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile guidance chain: %w", err)
	}
	svc.chain = runnable

	return svc, nil
}

// ModelBacked reports whether replies come from the chat model.
func (s *Service) ModelBacked() bool { return s.chain != nil }

// GenerateReply produces the assistant turn for a user message. The model
// path falls back to the offline picker on failure rather than surfacing
// an error to the conversation.
func (s *Service) GenerateReply(ctx context.Context, userMessage string, detected emotion.Label, tradition profile.Tradition, history []chat.Message) Reply {
	if s.chain != nil {
		reply, err := s.generateWithModel(ctx, userMessage, detected, tradition, history)
		if err == nil {
			return reply
		}
		slog.Warn("model reply failed, falling back to knowledge base", "error", err)
	}

	return s.generateOffline(ctx, detected, tradition)
}

func (s *Service) generateWithModel(ctx context.Context, userMessage string, detected emotion.Label, tradition profile.Tradition, history []chat.Message) (Reply, error) {
	input := map[string]any{
		"system":  systemPrompt(detected, tradition),
		"history": historyMessages(history),
		"query":   userMessage,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to run guidance chain: %w", err)
	}
	return Reply{Content: response.Content}, nil
}

func (s *Service) generateOffline(ctx context.Context, detected emotion.Label, tradition profile.Tradition) Reply {
	entries, err := s.knowledge.Query(ctx, tradition, string(detected), 5)
	if err != nil {
		slog.Warn("knowledge query failed, using built-in responses", "error", err)
	}
	if len(entries) == 0 && tradition != profile.TraditionUniversal {
		entries, _ = s.knowledge.Query(ctx, profile.TraditionUniversal, string(detected), 5)
	}

	if len(entries) > 0 {
		entry := entries[s.pick(len(entries))]
		return Reply{
			Content:            leadIn(detected) + " " + entry.TranslationText,
			ScriptureReference: entry.ScriptureReference,
		}
	}

	canned := builtinResponses()
	chosen := canned[s.pick(len(canned))]
	return chosen
}

func leadIn(detected emotion.Label) string {
	switch detected {
	case emotion.Grief:
		return "I hear the weight you are carrying, and you do not carry it alone."
	case emotion.Anxiety:
		return "Let your breath slow for a moment; the wisdom traditions speak to this very fear."
	case emotion.Anger:
		return "Your anger is heard. Sit with these words before answering it."
	case emotion.Gratitude:
		return "What a gift to meet you in gratitude. Receive this in the same spirit."
	case emotion.Peace:
		return "May this deepen the stillness you have found."
	case emotion.Seeking:
		return "You ask a seeker's question. Consider this teaching."
	default:
		return "I sense you're seeking guidance. Hold these words close."
	}
}

// builtinResponses is the last-resort response set, kept from the first
// prototype of the assistant.
func builtinResponses() []Reply {
	return []Reply{
		{
			Content:            "I sense you're seeking guidance. Remember, every challenge is an opportunity for spiritual growth. The divine plan unfolds in perfect timing, even when we cannot see the path clearly.",
			ScriptureReference: "Bhagavad Gita 2:47",
		},
		{
			Content:            "Your feelings are valid and understood. In moments of uncertainty, turn inward and connect with your inner wisdom. The answers you seek already reside within your heart.",
			ScriptureReference: "Quran 2:286",
		},
		{
			Content:            "Peace be with you. When the storms of life feel overwhelming, remember that you are held and supported by infinite love. Breathe deeply and trust in the process.",
			ScriptureReference: "Bible - Matthew 11:28",
		},
	}
}

func systemPrompt(detected emotion.Label, tradition profile.Tradition) string {
	base := "You are a compassionate spiritual companion. You offer guidance drawn from ancient wisdom traditions including the Bhagavad Gita, Quran, Bible, and other sacred texts. Always respond with warmth, cite the scripture you draw on, and never claim authority over the seeker's own path."
	if tradition != "" && tradition != profile.TraditionAll {
		base += fmt.Sprintf(" The seeker leans toward the %s tradition; prefer its texts when they fit.", tradition)
	}
	if detected != "" {
		base += fmt.Sprintf(" The seeker's message carries %s; acknowledge that feeling before teaching.", detected)
	}
	return base
}

func historyMessages(history []chat.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		switch msg.MessageType {
		case chat.MessageUser:
			out = append(out, schema.UserMessage(msg.Content))
		case chat.MessageAssistant:
			out = append(out, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return out
}
