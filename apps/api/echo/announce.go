package echoapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/karibu/core"
	"github.com/trezcool/karibu/core/event"
	"github.com/trezcool/karibu/core/registry"
)

var (
	errBadPhase    = "unknown announcement phase"
	errAlreadySent = "announcement already sent"

	// standalone afternoon announcements; no idempotency, callers own dedup
	afternoonMessages = map[string]core.WebhookMessage{
		"2pm": {
			Content: "@here Kicking off at 2pm sharp! 🏁",
			Embeds:  []core.Embed{{Title: "See you there!", Color: 0xE74C3C}},
		},
		"3pm": {
			Content: "One hour in, the vibes are immaculate 🔥",
			Embeds:  []core.Embed{{Title: "Still going strong", Color: 0xE67E22}},
		},
		"5pm": {
			Content: "Last call! We wrap up soon 🌅",
			Embeds:  []core.Embed{{Title: "Come say bye", Color: 0x95A5A6}},
		},
	}
)

type announceApi struct {
	conf        *core.Config
	logger      core.Logger
	regSvc      *registry.Service
	webhookSvc  core.WebhookService
	dispatchSvc core.DispatchService
}

func registerAnnounceAPI(g *echo.Group, deps ServerDeps) {
	api := announceApi{
		conf:        deps.Conf,
		logger:      deps.Logger,
		regSvc:      deps.RegistrySvc,
		webhookSvc:  deps.WebhookSvc,
		dispatchSvc: deps.DispatchSvc,
	}

	g.GET("/announce", api.announce)
	g.GET("/announce-sequence", api.announceSequence)
	g.GET("/announce-2pm", api.announceSlot("2pm"))
	g.GET("/announce-3pm", api.announceSlot("3pm"))
	g.GET("/announce-5pm", api.announceSlot("5pm"))
}

// Handlers

// announce sends one phase announcement at most once per event date. The
// phase is validated before any idempotency check or forward attempt.
func (api *announceApi) announce(ctx echo.Context) error {
	phase, err := event.ParsePhase(ctx.QueryParam("phase"))
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "phase", Error: errBadPhase})
	}

	reqCtx := ctx.Request().Context()
	key := event.AnnouncementKey(phase, api.conf.Announce.EventDate)

	sent, err := api.regSvc.HasKey(reqCtx, registry.CategoryAnnouncement, key)
	if err != nil {
		return errors.Wrap(err, "checking announcement claim")
	}
	if sent {
		return core.NewConflictError(errAlreadySent)
	}
	if err = api.regSvc.ClaimKey(reqCtx, registry.CategoryAnnouncement, key); err != nil {
		return errors.Wrap(err, "claiming announcement")
	}

	if err = api.forward(ctx, phase.Message()); err != nil {
		api.logger.Warn(fmt.Sprintf("announce: phase %q claimed but notification failed", phase))
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": "sent", "phase": phase})
}

// announceSequence forwards one message immediately, then schedules the start
// and end phase calls at +1h and +3h through the delayed-dispatch service.
// The immediate send failing aborts before anything is scheduled; a
// scheduling failure is reported without undoing the sent message.
func (api *announceApi) announceSequence(ctx echo.Context) error {
	msg := core.WebhookMessage{
		Content: "@here It's event day! Festivities start now 🎊",
		Embeds:  []core.Embed{{Title: "Day-of schedule", Description: "Kickoff now, main event in 1 hour, wrap-up in 3.", Color: 0x1ABC9C}},
	}
	if err := api.forward(ctx, msg); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	for _, step := range []struct {
		phase event.Phase
		delay time.Duration
	}{
		{event.PhaseStart, time.Hour},
		{event.PhaseEnd, 3 * time.Hour},
	} {
		if err := api.dispatchSvc.Schedule(reqCtx, api.phaseURL(step.phase), step.delay); err != nil {
			// the immediate message is already out; report failure, no undo
			if core.IsConfigError(err) || core.IsForwardError(err) {
				return err
			}
			return core.NewForwardError(fmt.Sprintf("scheduling %q: %v", step.phase, err), 0)
		}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": "scheduled"})
}

func (api *announceApi) announceSlot(slot string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if err := api.forward(ctx, afternoonMessages[slot]); err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, echo.Map{"status": "sent", "slot": slot})
	}
}

// helpers

func (api *announceApi) forward(ctx echo.Context, msg core.WebhookMessage) error {
	webhookURL := api.conf.Webhooks.Announce
	if webhookURL == "" {
		return core.NewConfigError("announce webhook URL not configured")
	}
	res, err := api.webhookSvc.Post(ctx.Request().Context(), webhookURL, msg)
	if err != nil {
		return core.NewForwardError(fmt.Sprintf("announce webhook unreachable: %v", err), 0)
	}
	if !res.OK() {
		return core.NewForwardError(fmt.Sprintf("announce webhook: status %d", res.StatusCode), res.StatusCode)
	}
	return nil
}

// phaseURL is the deferred GET target for a phase; deliveries may repeat, the
// phase endpoint dedupes server-side.
func (api *announceApi) phaseURL(phase event.Phase) string {
	q := make(url.Values)
	q.Set("phase", string(phase))
	return strings.TrimRight(api.conf.Announce.SelfBaseURL, "/") + "/api/announce?" + q.Encode()
}
