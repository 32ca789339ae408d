package commentary

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

const promptChatLines = 8

// systemPrompt sets the commentator's voice and the bounded context it is
// allowed to draw on: venue, host, and current attendee names.
func (e *Engine) systemPrompt() string {
	names := e.attendeeNames()

	var b strings.Builder
	b.WriteString("You are a witty, warm running commentator for a live group meetup called a Bounce. ")
	b.WriteString("The venue is " + orDefault(e.venue.Name, "the venue"))
	if e.venue.Address != "" {
		b.WriteString(" at " + e.venue.Address)
	}
	b.WriteString(". Host: " + orDefault(e.venue.HostName, "the host") + ".")
	if e.venue.Message != "" {
		fmt.Fprintf(&b, " Host says: %q.", e.venue.Message)
	}
	attendeeList := "none yet"
	if len(names) > 0 {
		attendeeList = strings.Join(names, ", ")
	}
	b.WriteString(" Current attendees: " + attendeeList + ".")
	b.WriteString(" Keep responses to 1-2 short sentences max. Be fun, dry, witty, like a sports " +
		"commentator providing colour on a night out. Not every message needs a reply. " +
		"No emojis. No hashtags. Refer to people by name.")
	return b.String()
}

// eventPrompt phrases the triggering event, with the last few chat lines for
// context.
func (e *Engine) eventPrompt(ev DomainEvent) string {
	recent := e.History()
	if len(recent) > promptChatLines {
		recent = recent[len(recent)-promptChatLines:]
	}
	chatContext := ""
	if len(recent) > 0 {
		lines := lo.Map(recent, func(entry ChatEntry, _ int) string {
			return entry.Sender + ": " + entry.Text
		})
		chatContext = "\nRecent chat:\n" + strings.Join(lines, "\n")
	}

	switch ev.Kind {
	case KindJoined:
		e.mu.Lock()
		count := len(e.attendees)
		e.mu.Unlock()
		return fmt.Sprintf("%s just joined the bounce. There are now %d people.%s", ev.Name, count, chatContext)
	case KindLeft:
		return fmt.Sprintf("%s left the bounce.%s", ev.Name, chatContext)
	case KindChat:
		return fmt.Sprintf("%s said: %q%s", ev.Sender, ev.Text, chatContext)
	case KindLocation:
		return fmt.Sprintf("%s just arrived at the venue!%s", ev.Name, chatContext)
	case KindIdle:
		distInfo := e.distanceReport()
		return fmt.Sprintf("It's been quiet. %s.%s", distInfo, chatContext)
	default:
		return "Something happened in the bounce." + chatContext
	}
}

func (e *Engine) attendeeNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return lo.Map(lo.Values(e.attendees), func(a *attendee, _ int) string {
		return a.name
	})
}

// distanceReport summarizes how far each located attendee is from the venue.
func (e *Engine) distanceReport() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var parts []string
	for _, a := range e.attendees {
		if !a.hasLocation {
			continue
		}
		d := haversineMeters(a.lat, a.lng, e.venue.Latitude, e.venue.Longitude)
		parts = append(parts, fmt.Sprintf("%s is %dm away", a.name, int(d)))
	}
	if len(parts) == 0 {
		return "No location data"
	}
	return strings.Join(parts, ". ")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
