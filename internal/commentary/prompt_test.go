package commentary

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func promptEngine() *Engine {
	venue := Venue{
		EventID:  "e1",
		Name:     "Roof Bar",
		Address:  "12 High St",
		Message:  "come thirsty",
		HostName: "Ada",
	}
	return newEngine(testLogger(), venue, nil, &fakeOut{}, Config{})
}

func TestSystemPromptCarriesVenueContext(t *testing.T) {
	eng := promptEngine()
	eng.Admit("g1", "Dana", false)
	eng.Admit("g2", "Eli", false)

	system := eng.systemPrompt()
	require.Contains(t, system, "Roof Bar")
	require.Contains(t, system, "12 High St")
	require.Contains(t, system, "Ada")
	require.Contains(t, system, `"come thirsty"`)
	require.Contains(t, system, "Dana")
	require.Contains(t, system, "Eli")
	require.Contains(t, system, "No emojis")
}

func TestSystemPromptWithNobodyHere(t *testing.T) {
	system := promptEngine().systemPrompt()
	require.Contains(t, system, "none yet")
}

func TestEventPromptShapes(t *testing.T) {
	eng := promptEngine()
	eng.Admit("g1", "Dana", false)

	join := eng.eventPrompt(DomainEvent{Kind: KindJoined, Name: "Dana"})
	require.Contains(t, join, "Dana just joined")
	require.Contains(t, join, "1 people")

	left := eng.eventPrompt(DomainEvent{Kind: KindLeft, Name: "Eli"})
	require.Contains(t, left, "Eli left")

	chat := eng.eventPrompt(DomainEvent{Kind: KindChat, Sender: "Dana", Text: "on my way"})
	require.Contains(t, chat, `Dana said: "on my way"`)

	arrived := eng.eventPrompt(DomainEvent{Kind: KindLocation, Name: "Dana", Arrived: true})
	require.Contains(t, arrived, "just arrived at the venue")
}

func TestEventPromptIncludesRecentChatOnly(t *testing.T) {
	eng := promptEngine()
	for i := 0; i < 12; i++ {
		eng.AddChat("Dana", text(i), false)
	}
	prompt := eng.eventPrompt(DomainEvent{Kind: KindChat, Sender: "Dana", Text: "x"})
	require.Contains(t, prompt, "Recent chat:")
	require.Contains(t, prompt, text(11))
	require.NotContains(t, prompt, text(2), "only the last few lines feed the prompt")
}

func TestIdlePromptReportsDistances(t *testing.T) {
	eng := promptEngine()
	eng.Admit("g1", "Dana", false)
	prompt := eng.eventPrompt(DomainEvent{Kind: KindIdle})
	require.Contains(t, prompt, "No location data")

	eng.ObserveLocation("g1", "Dana", 0.001, 0)
	prompt = eng.eventPrompt(DomainEvent{Kind: KindIdle})
	require.Contains(t, prompt, "Dana is")
	require.Contains(t, prompt, "m away")
}

func text(i int) string {
	return string(rune('a'+i)) + "-line"
}
