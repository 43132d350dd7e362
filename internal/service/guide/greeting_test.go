package guide_test

import (
	"strings"
	"testing"
	"time"

	"github.com/vanba/spiritchat/backend/internal/service/guide"
)

func at(hour int) time.Time {
	return time.Date(2025, 3, 10, hour, 0, 0, 0, time.UTC)
}

func TestGreetingFollowsTimeOfDay(t *testing.T) {
	morning := guide.Greeting("Asha", "en", at(8))
	if !strings.HasPrefix(morning, "Good morning") {
		t.Fatalf("8am greeting: %q", morning)
	}

	afternoon := guide.Greeting("Asha", "en", at(14))
	if !strings.HasPrefix(afternoon, "Good afternoon") {
		t.Fatalf("2pm greeting: %q", afternoon)
	}

	evening := guide.Greeting("Asha", "en", at(20))
	if !strings.HasPrefix(evening, "Good evening") {
		t.Fatalf("8pm greeting: %q", evening)
	}
}

func TestGreetingIncludesName(t *testing.T) {
	got := guide.Greeting("Asha", "en", at(8))
	if !strings.Contains(got, "Asha") {
		t.Fatalf("greeting does not address the user: %q", got)
	}
}

func TestGreetingWithoutNameUsesSeeker(t *testing.T) {
	got := guide.Greeting("  ", "en", at(8))
	if !strings.Contains(got, "dear seeker") {
		t.Fatalf("anonymous greeting: %q", got)
	}
}

func TestGreetingLocalization(t *testing.T) {
	hindi := guide.Greeting("", "hi", at(8))
	if !strings.HasPrefix(hindi, "सुप्रभात") {
		t.Fatalf("hindi morning greeting: %q", hindi)
	}

	spanish := guide.Greeting("", "es", at(20))
	if !strings.HasPrefix(spanish, "Buenas noches") {
		t.Fatalf("spanish evening greeting: %q", spanish)
	}

	// Region subtags fall back to the base language.
	french := guide.Greeting("", "fr-CA", at(14))
	if !strings.HasPrefix(french, "Bon après-midi") {
		t.Fatalf("fr-CA greeting: %q", french)
	}
}

func TestGreetingUnknownLanguageFallsBackToEnglish(t *testing.T) {
	got := guide.Greeting("Asha", "tlh", at(8))
	if !strings.HasPrefix(got, "Good morning") {
		t.Fatalf("unknown language greeting: %q", got)
	}
}
