package emotion_test

import (
	"testing"

	"github.com/vanba/spiritchat/backend/internal/analysis/emotion"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		name string
		text string
		want emotion.Label
	}{
		{"empty defaults to hope", "", emotion.Hope},
		{"unmatched defaults to hope", "the weather is fine", emotion.Hope},
		{"grief", "I lost my mother and I keep crying", emotion.Grief},
		{"anxiety", "I am so worried I can't sleep at night", emotion.Anxiety},
		{"anger", "I am furious, it is so unfair", emotion.Anger},
		{"gratitude", "thank you, I feel so blessed", emotion.Gratitude},
		{"peace", "after meditation I feel calm and centered", emotion.Peace},
		{"seeking", "what is the meaning and purpose of my life", emotion.Seeking},
		{"hindi grief", "मेरे मन में बहुत दुख है", emotion.Grief},
		{"hindi anxiety", "मुझे बहुत चिंता हो रही है", emotion.Anxiety},
		{"repeated questions lean seeking", "why me? why now? why always?", emotion.Seeking},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := emotion.Detect(tc.text)
			if got.Emotion != tc.want {
				t.Fatalf("Detect(%q) = %s (score %d), want %s", tc.text, got.Emotion, got.Score, tc.want)
			}
		})
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	// "lost" and "worried" tie; the result must not depend on map order.
	text := "I feel lost and worried"
	first := emotion.Detect(text)
	for i := 0; i < 50; i++ {
		if got := emotion.Detect(text); got.Emotion != first.Emotion {
			t.Fatalf("tie-break is unstable: %s then %s", first.Emotion, got.Emotion)
		}
	}
}
