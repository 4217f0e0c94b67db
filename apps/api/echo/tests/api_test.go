package tests

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/trezcool/karibu/core"
)

func Test_home(t *testing.T) {
	setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "Karibu") {
		t.Errorf("failed! data = %v", rec.Body.String())
	}
}

func Test_formsApi_officerApplication(t *testing.T) {
	setup(t)

	body := func(name, email string) []byte {
		return marshallObj(t, map[string]interface{}{
			"name": name, "email": email, "major": "CS", "grad_year": "2026",
			"position": "Treasurer", "motivation": "I love spreadsheets",
		})
	}

	t.Run("valid application forwards and confirms", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/officer-application", body("Amani", "amani@test.cd"))
		app.ServeHTTP(rec, req)
		checkSubmission(t, rec)

		posted := webhookMock.Posted()
		if len(posted) != 1 {
			t.Fatalf("webhook posted %d times; want 1", len(posted))
		}
		if posted[0].WebhookURL != conf.Webhooks.Officer {
			t.Errorf("posted to %q; want officer webhook", posted[0].WebhookURL)
		}
		if title := posted[0].Message.Embeds[0].Title; title != "New Officer Application" {
			t.Errorf("embed title = %q", title)
		}
		if sent := mailMock.Sent(); len(sent) != 1 || sent[0].To[0].Address != "amani@test.cd" {
			t.Errorf("confirmation email = %+v; want 1 to amani@test.cd", sent)
		}
	})

	t.Run("validation", func(t *testing.T) {
		tests := []httpTest{
			{
				name:     "empty body",
				body:     marshallObj(t, map[string]interface{}{}),
				wantCode: http.StatusBadRequest,
				wantData: marshallObj(t, map[string]string{
					"name": "this field is required", "email": "this field is required",
					"major": "this field is required", "grad_year": "this field is required",
					"position": "this field is required", "motivation": "this field is required",
				}),
			},
			{
				name:     "bad email",
				body:     body("Amani", "not-an-email"),
				wantCode: http.StatusBadRequest,
				wantData: marshallObj(t, map[string]string{"email": "enter a valid email address"}),
			},
			{
				name:     "whitespace only is empty",
				body:     body("   ", "amani@test.cd"),
				wantCode: http.StatusBadRequest,
				wantData: marshallObj(t, map[string]string{"name": "this field is required"}),
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req, rec := newRequest(http.MethodPost, "/api/officer-application", tt.body)
				app.ServeHTTP(rec, req)
				checkCodeAndData(t, tt, rec)
			})
		}
	})

	t.Run("webhook failure", func(t *testing.T) {
		mailMock.Reset()
		webhookMock.FailNext = true

		req, rec := newRequest(http.MethodPost, "/api/officer-application", body("Neema", "neema@test.cd"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadGateway, wantData: marshallObj(t, errDelivery)}, rec)
		if sent := mailMock.Sent(); len(sent) != 0 {
			t.Errorf("confirmation sent despite failed forward: %+v", sent)
		}
	})

	t.Run("webhook URL not configured", func(t *testing.T) {
		conf.Webhooks.Officer = ""
		defer func() { conf.Webhooks.Officer = testConfig().Webhooks.Officer }()

		req, rec := newRequest(http.MethodPost, "/api/officer-application", body("Zawadi", "zawadi@test.cd"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusInternalServerError, wantData: marshallObj(t, errServer)}, rec)
	})
}

func Test_formsApi_memberRegistration(t *testing.T) {
	setup(t)

	req, rec := newRequest(http.MethodPost, "/api/member-registration", marshallObj(t, map[string]interface{}{
		"name": "Baraka", "email": "Baraka@Test.CD", "major": "EE", "grad_year": "2027", "phone": "+15550001111",
	}))
	app.ServeHTTP(rec, req)
	checkSubmission(t, rec)

	posted := webhookMock.Posted()
	if len(posted) != 1 || posted[0].WebhookURL != conf.Webhooks.Member {
		t.Fatalf("posted = %+v; want 1 post to member webhook", posted)
	}
	// email is lowercased before forwarding
	for _, fld := range posted[0].Message.Embeds[0].Fields {
		if fld.Name == "Email" && fld.Value != "baraka@test.cd" {
			t.Errorf("forwarded email = %q; want lowercased", fld.Value)
		}
	}
}

func Test_formsApi_eventRSVP(t *testing.T) {
	setup(t)

	body := func(guests int) []byte {
		return marshallObj(t, map[string]interface{}{
			"event": "Karaoke Night", "name": "Imani", "email": "imani@test.cd", "guests": guests,
		})
	}

	req, rec := newRequest(http.MethodPost, "/api/event-rsvp", body(2))
	app.ServeHTTP(rec, req)
	checkSubmission(t, rec)

	// repeat submissions are not deduplicated on this form
	req, rec = newRequest(http.MethodPost, "/api/event-rsvp", body(2))
	app.ServeHTTP(rec, req)
	checkSubmission(t, rec)

	req, rec = newRequest(http.MethodPost, "/api/event-rsvp", body(11))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marshallObj(t, map[string]string{"guests": "guests must be 10 or less"}),
	}, rec)
}

func Test_formsApi_claimedRSVP(t *testing.T) {
	setup(t)

	body := func(name, email string) []byte {
		return marshallObj(t, map[string]interface{}{"name": name, "email": email, "guests": 1})
	}
	dup := marshallObj(t, errDuplicate)

	t.Run("fresh rsvp claims the email", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/fifa-night-rsvp", body("Fan", "fan@test.cd"))
		app.ServeHTTP(rec, req)
		checkSubmission(t, rec)
	})

	t.Run("same email is rejected", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/fifa-night-rsvp", body("Fan", "fan@test.cd"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: dup}, rec)
	})

	t.Run("matching is case and whitespace insensitive", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/fifa-night-rsvp", body("Fan", "  FAN@Test.CD "))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: dup}, rec)
	})

	t.Run("claims are shared across rsvp forms", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/friendsgiving-rsvp", body("Fan", "fan@test.cd"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: dup}, rec)

		req, rec = newRequest(http.MethodPost, "/api/friendsgiving-rsvp", body("Guest", "guest@test.cd"))
		app.ServeHTTP(rec, req)
		checkSubmission(t, rec)
	})

	t.Run("failed forward leaves the email claimed", func(t *testing.T) {
		webhookMock.FailNext = true
		req, rec := newRequest(http.MethodPost, "/api/fifa-night-rsvp", body("Pole", "pole@test.cd"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadGateway, wantData: marshallObj(t, errDelivery)}, rec)

		req, rec = newRequest(http.MethodPost, "/api/fifa-night-rsvp", body("Pole", "pole@test.cd"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: dup}, rec)
	})
}

func Test_formsApi_hotChocolateRSVP(t *testing.T) {
	setup(t)

	body := marshallObj(t, map[string]interface{}{"name": "Tamu", "email": "tamu@test.cd"})

	// no dedup on this form: the same email can rsvp twice
	for i := 0; i < 2; i++ {
		req, rec := newRequest(http.MethodPost, "/api/rsvp/hot-chocolate-social", body)
		app.ServeHTTP(rec, req)
		checkSubmission(t, rec)
	}
	if posted := webhookMock.Posted(); len(posted) != 2 {
		t.Errorf("webhook posted %d times; want 2", len(posted))
	}
}

func Test_announceApi_announce(t *testing.T) {
	setup(t)

	sent := func(phase string) []byte {
		return marshallObj(t, map[string]string{"status": "sent", "phase": phase})
	}

	tests := []httpTest{
		{name: "pre phase sends", path: "/api/announce?phase=pre", wantCode: http.StatusOK, wantData: sent("pre")},
		{name: "pre phase again conflicts", path: "/api/announce?phase=pre", wantCode: http.StatusConflict, wantData: marshallObj(t, errAlreadySent)},
		{name: "phases claim independently", path: "/api/announce?phase=start", wantCode: http.StatusOK, wantData: sent("start")},
		{name: "phase is normalized", path: "/api/announce?phase=%20START%20", wantCode: http.StatusConflict, wantData: marshallObj(t, errAlreadySent)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodGet, tt.path)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("unknown phase fails before any registry access", func(t *testing.T) {
		reads := store.Reads
		req, rec := newRequest(http.MethodGet, "/api/announce?phase=flashmob")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"phase": "unknown announcement phase"}),
		}, rec)
		if store.Reads != reads {
			t.Errorf("registry read for an invalid phase")
		}
	})

	t.Run("failed forward leaves the phase claimed", func(t *testing.T) {
		webhookMock.FailNext = true
		req, rec := newRequest(http.MethodGet, "/api/announce?phase=end")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadGateway, wantData: marshallObj(t, errDelivery)}, rec)

		req, rec = newRequest(http.MethodGet, "/api/announce?phase=end")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marshallObj(t, errAlreadySent)}, rec)
	})
}

func Test_announceApi_announceSequence(t *testing.T) {
	setup(t)

	t.Run("sends now and schedules the rest", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/announce-sequence")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marshallObj(t, map[string]string{"status": "scheduled"}),
		}, rec)

		if posted := webhookMock.Posted(); len(posted) != 1 || posted[0].WebhookURL != conf.Webhooks.Announce {
			t.Fatalf("posted = %+v; want 1 post to announce webhook", posted)
		}

		scheduled := dispatchMock.Scheduled()
		if len(scheduled) != 2 {
			t.Fatalf("scheduled %d calls; want 2", len(scheduled))
		}
		base := conf.Announce.SelfBaseURL + "/api/announce?phase="
		if scheduled[0].TargetURL != base+"start" || scheduled[0].Delay != time.Hour {
			t.Errorf("first call = %+v; want %q at +1h", scheduled[0], base+"start")
		}
		if scheduled[1].TargetURL != base+"end" || scheduled[1].Delay != 3*time.Hour {
			t.Errorf("second call = %+v; want %q at +3h", scheduled[1], base+"end")
		}
	})

	t.Run("immediate send failing aborts scheduling", func(t *testing.T) {
		dispatchMock.Reset()
		webhookMock.FailNext = true

		req, rec := newRequest(http.MethodGet, "/api/announce-sequence")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadGateway, wantData: marshallObj(t, errDelivery)}, rec)
		if scheduled := dispatchMock.Scheduled(); len(scheduled) != 0 {
			t.Errorf("scheduled %d calls after a failed send; want 0", len(scheduled))
		}
	})

	t.Run("scheduling failure is reported, message stays sent", func(t *testing.T) {
		webhookMock.Reset()
		dispatchMock.Reset()
		dispatchMock.Err = core.NewForwardError("dispatch: status 401", http.StatusUnauthorized)
		defer func() { dispatchMock.Err = nil }()

		req, rec := newRequest(http.MethodGet, "/api/announce-sequence")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadGateway, wantData: marshallObj(t, errDelivery)}, rec)
		if posted := webhookMock.Posted(); len(posted) != 1 {
			t.Errorf("posted %d messages; want the immediate send to stand", len(posted))
		}
	})
}

func Test_announceApi_announceSlot(t *testing.T) {
	setup(t)

	// slot announcements are unconditional: no dedup between calls
	for i := 0; i < 2; i++ {
		req, rec := newRequest(http.MethodGet, "/api/announce-2pm")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marshallObj(t, map[string]string{"status": "sent", "slot": "2pm"}),
		}, rec)
	}
	if posted := webhookMock.Posted(); len(posted) != 2 {
		t.Errorf("webhook posted %d times; want 2", len(posted))
	}

	for _, path := range []string{"/api/announce-3pm", "/api/announce-5pm"} {
		req, rec := newRequest(http.MethodGet, path)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s code = %v; wantCode %v", path, rec.Code, http.StatusOK)
		}
	}
}
