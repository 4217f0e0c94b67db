package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/karibu/apps/api/echo"
	"github.com/trezcool/karibu/core"
	"github.com/trezcool/karibu/core/registry"
	dispatchsvc "github.com/trezcool/karibu/services/dispatch"
	emailsvc "github.com/trezcool/karibu/services/email"
	logsvc "github.com/trezcool/karibu/services/logger"
	webhooksvc "github.com/trezcool/karibu/services/webhook"
	dummystore "github.com/trezcool/karibu/storage/registry/dummy"
)

var (
	app   Server
	conf  = testConfig()
	store = dummystore.Open()

	webhookMock  = webhooksvc.NewServiceMock()
	dispatchMock = dispatchsvc.NewServiceMock()
	mailMock     = emailsvc.NewServiceMock(conf)

	errDuplicate   = httpErr{Error: "this email is already registered"}
	errAlreadySent = httpErr{Error: "announcement already sent"}
	errDelivery    = httpErr{Error: "message delivery failed, please try again"}
	errServer      = httpErr{Error: http.StatusText(http.StatusInternalServerError)}
)

// setup rebuilds the server with fresh state; call it at the top of each test.
func setup(t *testing.T) {
	t.Helper()

	conf = testConfig()
	store = dummystore.Open()
	webhookMock = webhooksvc.NewServiceMock()
	dispatchMock = dispatchsvc.NewServiceMock()
	mailMock = emailsvc.NewServiceMock(conf)

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)

	app = NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		RegistrySvc:    registry.NewService(store),
		WebhookSvc:     webhookMock,
		DispatchSvc:    dispatchMock,
		EmailSvc:       mailMock,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
}

func testConfig() *core.Config {
	conf := &core.Config{
		AppName:  "Karibu",
		Env:      "TEST",
		TestMode: true,
	}
	conf.Webhooks.Officer = "https://hooks.test/officer"
	conf.Webhooks.Member = "https://hooks.test/member"
	conf.Webhooks.RSVP = "https://hooks.test/rsvp"
	conf.Webhooks.Announce = "https://hooks.test/announce"
	conf.Announce.EventDate = "2024-11-22"
	conf.Announce.SelfBaseURL = "https://karibu.test"
	return conf
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
	extra    interface{}
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// checkSubmission verifies an accepted form response: status ok and a valid
// uuid reference (the reference is random so it cannot be compared verbatim).
func checkSubmission(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Errorf("failed! code = %v; wantCode %v; data = %v", rec.Code, http.StatusOK, rec.Body.String())
	}
	var res SubmissionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshalling SubmissionResponse failed: %v", err)
	}
	if res.Status != "ok" {
		t.Errorf("failed! status = %q; want %q", res.Status, "ok")
	}
	if _, err := uuid.Parse(res.Reference); err != nil {
		t.Errorf("failed! reference %q is not a valid uuid: %v", res.Reference, err)
	}
}
