package echoapi

import (
	"fmt"
	"net/http"
	"net/mail"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/karibu/core"
	"github.com/trezcool/karibu/core/registry"
)

// embed colors per form
const (
	colorOfficer      = 0x3498DB
	colorMember       = 0x2ECC71
	colorRSVP         = 0xE67E22
	colorHotChocolate = 0x8B4513
)

var errDuplicateRegistration = "this email is already registered"

type formsApi struct {
	conf       *core.Config
	logger     core.Logger
	regSvc     *registry.Service
	webhookSvc core.WebhookService
	emailSvc   core.EmailService
	validate   *validator.Validate
}

func registerFormsAPI(g *echo.Group, deps ServerDeps) {
	api := formsApi{
		conf:       deps.Conf,
		logger:     deps.Logger,
		regSvc:     deps.RegistrySvc,
		webhookSvc: deps.WebhookSvc,
		emailSvc:   deps.EmailSvc,
		validate:   deps.Validate,
	}

	g.POST("/officer-application", api.officerApplication)
	g.POST("/member-registration", api.memberRegistration)
	g.POST("/event-rsvp", api.eventRSVP)
	g.POST("/fifa-night-rsvp", api.fifaNightRSVP)
	g.POST("/friendsgiving-rsvp", api.friendsgivingRSVP)
	g.POST("/rsvp/hot-chocolate-social", api.hotChocolateRSVP)
}

// Handlers

func (api *formsApi) officerApplication(ctx echo.Context) error {
	var data OfficerApplicationRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to OfficerApplicationRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ref := uuid.NewString()
	msg := newSubmissionMessage("New Officer Application", colorOfficer, ref,
		core.EmbedField{Name: "Name", Value: data.Name, Inline: true},
		core.EmbedField{Name: "Email", Value: data.Email, Inline: true},
		core.EmbedField{Name: "Major", Value: data.Major, Inline: true},
		core.EmbedField{Name: "Graduation Year", Value: data.GradYear, Inline: true},
		core.EmbedField{Name: "Position", Value: data.Position, Inline: true},
		core.EmbedField{Name: "Motivation", Value: data.Motivation},
	)
	if err := api.forward(ctx, api.conf.Webhooks.Officer, "officer", msg); err != nil {
		return err
	}

	api.sendConfirmation(data.Name, data.Email,
		"We received your officer application",
		fmt.Sprintf("Hey %s,\n\nThanks for applying for the %s position! We will reach out soon.\n\nReference: %s", data.Name, data.Position, ref),
	)
	return ctx.JSON(http.StatusOK, SubmissionResponse{Status: "ok", Reference: ref})
}

func (api *formsApi) memberRegistration(ctx echo.Context) error {
	var data MemberRegistrationRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MemberRegistrationRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ref := uuid.NewString()
	fields := []core.EmbedField{
		{Name: "Name", Value: data.Name, Inline: true},
		{Name: "Email", Value: data.Email, Inline: true},
		{Name: "Major", Value: data.Major, Inline: true},
		{Name: "Graduation Year", Value: data.GradYear, Inline: true},
	}
	if data.Phone != "" {
		fields = append(fields, core.EmbedField{Name: "Phone", Value: data.Phone, Inline: true})
	}
	msg := newSubmissionMessage("New Member Registration", colorMember, ref, fields...)
	if err := api.forward(ctx, api.conf.Webhooks.Member, "member", msg); err != nil {
		return err
	}

	api.sendConfirmation(data.Name, data.Email,
		"Welcome aboard!",
		fmt.Sprintf("Hey %s,\n\nYour membership registration went through. Karibu!\n\nReference: %s", data.Name, ref),
	)
	return ctx.JSON(http.StatusOK, SubmissionResponse{Status: "ok", Reference: ref})
}

func (api *formsApi) eventRSVP(ctx echo.Context) error {
	var data EventRSVPRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EventRSVPRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ref := uuid.NewString()
	msg := newSubmissionMessage("New Event RSVP", colorRSVP, ref,
		core.EmbedField{Name: "Event", Value: data.Event, Inline: true},
		core.EmbedField{Name: "Name", Value: data.Name, Inline: true},
		core.EmbedField{Name: "Email", Value: data.Email, Inline: true},
		core.EmbedField{Name: "Guests", Value: strconv.Itoa(data.Guests), Inline: true},
	)
	if err := api.forward(ctx, api.conf.Webhooks.RSVP, "rsvp", msg); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SubmissionResponse{Status: "ok", Reference: ref})
}

func (api *formsApi) fifaNightRSVP(ctx echo.Context) error {
	return api.claimedRSVP(ctx, "FIFA Night")
}

func (api *formsApi) friendsgivingRSVP(ctx echo.Context) error {
	return api.claimedRSVP(ctx, "Friendsgiving")
}

// claimedRSVP handles the RSVP forms that deduplicate by email: the claim is
// recorded before forwarding, so a failed forward leaves the email claimed
// with no notification ever delivered (known gap, preserved as observed).
func (api *formsApi) claimedRSVP(ctx echo.Context, eventName string) error {
	var data NightRSVPRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NightRSVPRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	claimed, err := api.regSvc.HasKey(reqCtx, registry.CategoryRSVP, data.Email)
	if err != nil {
		return errors.Wrap(err, "checking rsvp claim")
	}
	if claimed {
		return core.NewConflictError(errDuplicateRegistration)
	}
	if err = api.regSvc.ClaimKey(reqCtx, registry.CategoryRSVP, data.Email); err != nil {
		return errors.Wrap(err, "claiming rsvp email")
	}

	ref := uuid.NewString()
	msg := newSubmissionMessage("New "+eventName+" RSVP", colorRSVP, ref,
		core.EmbedField{Name: "Name", Value: data.Name, Inline: true},
		core.EmbedField{Name: "Email", Value: data.Email, Inline: true},
		core.EmbedField{Name: "Guests", Value: strconv.Itoa(data.Guests), Inline: true},
	)
	if err = api.forward(ctx, api.conf.Webhooks.RSVP, "rsvp", msg); err != nil {
		api.logger.Warn(fmt.Sprintf("rsvp: %s claimed for %q but notification failed", data.Email, eventName))
		return err
	}
	return ctx.JSON(http.StatusOK, SubmissionResponse{Status: "ok", Reference: ref})
}

func (api *formsApi) hotChocolateRSVP(ctx echo.Context) error {
	var data HotChocolateRSVPRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to HotChocolateRSVPRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ref := uuid.NewString()
	msg := newSubmissionMessage("New Hot Chocolate Social RSVP", colorHotChocolate, ref,
		core.EmbedField{Name: "Name", Value: data.Name, Inline: true},
		core.EmbedField{Name: "Email", Value: data.Email, Inline: true},
	)
	if err := api.forward(ctx, api.conf.Webhooks.RSVP, "rsvp", msg); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SubmissionResponse{Status: "ok", Reference: ref})
}

// helpers

func (api *formsApi) forward(ctx echo.Context, webhookURL, channel string, msg core.WebhookMessage) error {
	if webhookURL == "" {
		return core.NewConfigError(channel + " webhook URL not configured")
	}
	res, err := api.webhookSvc.Post(ctx.Request().Context(), webhookURL, msg)
	if err != nil {
		return core.NewForwardError(fmt.Sprintf("%s webhook unreachable: %v", channel, err), 0)
	}
	if !res.OK() {
		return core.NewForwardError(fmt.Sprintf("%s webhook: status %d", channel, res.StatusCode), res.StatusCode)
	}
	return nil
}

func (api *formsApi) sendConfirmation(name, email, subject, body string) {
	if api.emailSvc == nil {
		return
	}
	api.emailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: name, Address: email}},
		Subject: subject,
		BodyStr: body,
	})
}

func newSubmissionMessage(title string, color int, ref string, fields ...core.EmbedField) core.WebhookMessage {
	return core.WebhookMessage{
		Embeds: []core.Embed{{
			Title:     title,
			Color:     color,
			Fields:    fields,
			Footer:    &core.EmbedFooter{Text: "ref: " + ref},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}},
	}
}

// Requests

type (
	SubmissionResponse struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
	}

	OfficerApplicationRequest struct {
		Name       string `json:"name" validate:"required"`
		Email      string `json:"email" validate:"required,email"`
		Major      string `json:"major" validate:"required"`
		GradYear   string `json:"grad_year" validate:"required"`
		Position   string `json:"position" validate:"required"`
		Motivation string `json:"motivation" validate:"required"`
	}

	MemberRegistrationRequest struct {
		Name     string `json:"name" validate:"required"`
		Email    string `json:"email" validate:"required,email"`
		Major    string `json:"major" validate:"required"`
		GradYear string `json:"grad_year" validate:"required"`
		Phone    string `json:"phone" validate:"omitempty,e164"`
	}

	EventRSVPRequest struct {
		Event  string `json:"event" validate:"required"`
		Name   string `json:"name" validate:"required"`
		Email  string `json:"email" validate:"required,email"`
		Guests int    `json:"guests" validate:"min=0,max=10"`
	}

	NightRSVPRequest struct {
		Name   string `json:"name" validate:"required"`
		Email  string `json:"email" validate:"required,email"`
		Guests int    `json:"guests" validate:"min=0,max=10"`
	}

	HotChocolateRSVPRequest struct {
		Name  string `json:"name" validate:"required"`
		Email string `json:"email" validate:"required,email"`
	}
)

func (r *OfficerApplicationRequest) Validate(validate *validator.Validate) error {
	r.Name = core.CleanString(r.Name)
	r.Email = core.CleanString(r.Email, true /* lower */)
	r.Major = core.CleanString(r.Major)
	r.GradYear = core.CleanString(r.GradYear)
	r.Position = core.CleanString(r.Position)
	r.Motivation = core.CleanString(r.Motivation)
	return validate.Struct(r)
}

func (r *MemberRegistrationRequest) Validate(validate *validator.Validate) error {
	r.Name = core.CleanString(r.Name)
	r.Email = core.CleanString(r.Email, true /* lower */)
	r.Major = core.CleanString(r.Major)
	r.GradYear = core.CleanString(r.GradYear)
	r.Phone = core.CleanString(r.Phone)
	return validate.Struct(r)
}

func (r *EventRSVPRequest) Validate(validate *validator.Validate) error {
	r.Event = core.CleanString(r.Event)
	r.Name = core.CleanString(r.Name)
	r.Email = core.CleanString(r.Email, true /* lower */)
	return validate.Struct(r)
}

func (r *NightRSVPRequest) Validate(validate *validator.Validate) error {
	r.Name = core.CleanString(r.Name)
	r.Email = core.CleanString(r.Email, true /* lower */)
	return validate.Struct(r)
}

func (r *HotChocolateRSVPRequest) Validate(validate *validator.Validate) error {
	r.Name = core.CleanString(r.Name)
	r.Email = core.CleanString(r.Email, true /* lower */)
	return validate.Struct(r)
}
