package event

import (
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/karibu/core"
)

// Phase is a named moment in an event's timeline triggering a distinct
// announcement.
type Phase string

const (
	PhasePre   Phase = "pre"
	PhaseStart Phase = "start"
	PhaseEnd   Phase = "end"
)

// AllPhases is the announcement order.
var AllPhases = []Phase{PhasePre, PhaseStart, PhaseEnd}

var ErrUnknownPhase = errors.New("unknown announcement phase")

func ParsePhase(s string) (Phase, error) {
	switch p := Phase(core.CleanString(s, true /* lower */)); p {
	case PhasePre, PhaseStart, PhaseEnd:
		return p, nil
	}
	return "", ErrUnknownPhase
}

// Offset is the phase's target time relative to the event start.
func (p Phase) Offset() time.Duration {
	switch p {
	case PhasePre:
		return -time.Hour
	case PhaseEnd:
		return 3 * time.Hour
	}
	return 0
}

// AnnouncementKey is the registry token claimed when a phase announcement is
// sent. Varying the event date keeps keys from colliding across events.
func AnnouncementKey(p Phase, eventDate string) string {
	return string(p) + ":" + eventDate
}

// Message is the fixed announcement payload for each phase.
func (p Phase) Message() core.WebhookMessage {
	switch p {
	case PhasePre:
		return core.WebhookMessage{
			Content: "@here T minus one hour! 🕐",
			Embeds: []core.Embed{{
				Title:       "Almost time!",
				Description: "Doors open in one hour. Grab your friends and head over!",
				Color:       0xF1C40F,
			}},
		}
	case PhaseEnd:
		return core.WebhookMessage{
			Content: "That's a wrap! 🎬",
			Embeds: []core.Embed{{
				Title:       "Thanks for coming out!",
				Description: "Hope you had a blast. Keep an eye out for photos and our next event!",
				Color:       0x9B59B6,
			}},
		}
	}
	return core.WebhookMessage{
		Content: "@here We're live! 🎉",
		Embeds: []core.Embed{{
			Title:       "It's happening!",
			Description: "Doors are open, come through! Food and music are waiting.",
			Color:       0x2ECC71,
		}},
	}
}
