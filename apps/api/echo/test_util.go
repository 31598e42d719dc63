package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/edulab/publication/core"
	"github.com/edulab/publication/core/publication"
	emailsvc "github.com/edulab/publication/services/email"
	dummydb "github.com/edulab/publication/storage/database/dummy"
)

var (
	testConf = &core.Config{
		Debug:            true,
		TestMode:         true,
		Env:              "TEST",
		AppName:          "Publication",
		SecretKey:        "secret",
		FrontendBaseURL:  "http://localhost:8080",
		DefaultFromEmail: mail.Address{Name: "Publication", Address: "noreply@localhost"},
		Server: core.ServerConfig{
			Host:               "localhost",
			Port:               "8000",
			JWTExpirationDelta: 10 * time.Minute,
		},
	}

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

// nopLogger silences the error handler during tests.
type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type testApp struct {
	server Server
	svc    *publication.Service
	db     *dummydb.DB
}

func initApp() *testApp {
	db, _ := dummydb.Open()

	validate := validator.New()
	enLoc := en.New()
	translator, _ := ut.New(enLoc, enLoc).GetTranslator("en")
	core.InitValidators(validate, translator)
	publication.InitValidators(validate, translator)

	svc := publication.NewService(
		dummydb.NewPublicationRepository(db),
		dummydb.NewFileRepository(db),
		dummydb.NewOverrideRepository(db),
		dummydb.NewMembershipProvider(db),
		dummydb.NewImportSource(db),
		dummydb.NewCompletionTracker(db),
		emailsvc.NewConsoleServiceMock(testConf),
		nopLogger{},
		testConf,
	)

	server := NewServer(ServerDeps{
		Conf:           testConf,
		Logger:         nopLogger{},
		PublicationSvc: svc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	return &testApp{server: server, svc: svc, db: db}
}

func (a *testApp) createInstance(t *testing.T, ni publication.NewInstance) publication.Instance {
	inst, err := a.svc.Create(context.Background(), ni)
	if err != nil {
		t.Fatalf("createInstance() failed: %v", err)
	}
	return inst
}

func (a *testApp) seedFile(t *testing.T, f publication.SubmissionFile) publication.SubmissionFile {
	f, err := dummydb.NewFileRepository(a.db).UpsertFile(context.Background(), f)
	if err != nil {
		t.Fatalf("seedFile() failed: %v", err)
	}
	return f
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getStudentToken(t *testing.T, userID int) string {
	return getToken(t, GetActorClaims(testConf, userID, "Student", "student@test.local", false, false))
}

func getTeacherToken(t *testing.T, userID int) string {
	return getToken(t, GetActorClaims(testConf, userID, "Teacher", "teacher@test.local", true, false))
}

func getToken(t *testing.T, claims *Claims) string {
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
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
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
