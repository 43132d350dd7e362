package guide_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/vanba/spiritchat/backend/internal/analysis/emotion"
	"github.com/vanba/spiritchat/backend/internal/config"
	knowledgeModel "github.com/vanba/spiritchat/backend/internal/model/knowledge"
	profileModel "github.com/vanba/spiritchat/backend/internal/model/profile"
	"github.com/vanba/spiritchat/backend/internal/service/guide"
)

type stubKnowledge struct {
	entries map[profileModel.Tradition][]knowledgeModel.Entry
	err     error
}

func (s stubKnowledge) Query(_ context.Context, tradition profileModel.Tradition, _ string, _ int) ([]knowledgeModel.Entry, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.entries[tradition], nil
}

func (s stubKnowledge) Search(context.Context, string, profileModel.Tradition, string, int) ([]knowledgeModel.Entry, error) {
	return nil, nil
}

func newOfflineService(t *testing.T, knowledge stubKnowledge) *guide.Service {
	t.Helper()
	svc, err := guide.NewService(context.Background(), knowledge, config.AIConfig{})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	if svc.ModelBacked() {
		t.Fatal("service unexpectedly model-backed")
	}
	return svc
}

func TestGenerateReplyUsesKnowledgeBase(t *testing.T) {
	knowledge := stubKnowledge{entries: map[profileModel.Tradition][]knowledgeModel.Entry{
		profileModel.TraditionBuddhism: {{
			ID:                 uuid.New(),
			Tradition:          profileModel.TraditionBuddhism,
			TranslationText:    "Peace comes from within. Do not seek it without.",
			ScriptureReference: "Dhammapada",
		}},
	}}
	svc := newOfflineService(t, knowledge)

	reply := svc.GenerateReply(context.Background(), "I feel restless", emotion.Anxiety, profileModel.TraditionBuddhism, nil)
	if reply.ScriptureReference != "Dhammapada" {
		t.Fatalf("unexpected scripture: %q", reply.ScriptureReference)
	}
	if reply.Content == "" {
		t.Fatal("empty reply content")
	}
}

func TestGenerateReplyFallsBackToUniversal(t *testing.T) {
	knowledge := stubKnowledge{entries: map[profileModel.Tradition][]knowledgeModel.Entry{
		profileModel.TraditionUniversal: {{
			ID:                 uuid.New(),
			Tradition:          profileModel.TraditionUniversal,
			TranslationText:    "This too shall pass.",
			ScriptureReference: "Universal wisdom",
		}},
	}}
	svc := newOfflineService(t, knowledge)

	// Nothing tagged for Jainism; the universal pool serves instead.
	reply := svc.GenerateReply(context.Background(), "why me", emotion.Seeking, profileModel.TraditionJainism, nil)
	if reply.ScriptureReference != "Universal wisdom" {
		t.Fatalf("unexpected scripture: %q", reply.ScriptureReference)
	}
}

func TestGenerateReplySurvivesEmptyKnowledgeBase(t *testing.T) {
	svc := newOfflineService(t, stubKnowledge{})

	reply := svc.GenerateReply(context.Background(), "hello", emotion.Hope, profileModel.TraditionUniversal, nil)
	if reply.Content == "" {
		t.Fatal("built-in responses should always produce content")
	}
	if reply.ScriptureReference == "" {
		t.Fatal("built-in responses carry a scripture reference")
	}
}

func TestGenerateReplySurvivesQueryFailure(t *testing.T) {
	svc := newOfflineService(t, stubKnowledge{err: errors.New("connection refused")})

	reply := svc.GenerateReply(context.Background(), "hello", emotion.Grief, profileModel.TraditionIslam, nil)
	if reply.Content == "" {
		t.Fatal("reply generation must not fail when the knowledge base is down")
	}
}
