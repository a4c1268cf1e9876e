package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/feature"
	"github.com/trezcool/darasa/core/tenant"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
	"github.com/trezcool/darasa/tests"
)

var testConf = &core.Config{
	AppName:   "Darasa",
	Env:       "TEST",
	TestMode:  true,
	SecretKey: []byte("secret"),

	PasswordResetTimeoutDelta: 3 * 24 * time.Hour,

	Server: core.ServerConfig{
		JWTExpirationDelta:        10 * time.Minute,
		JWTRefreshExpirationDelta: 4 * time.Hour,
		AppHost:                   "app.darasa.academy",
		BaseDomain:                "darasa.academy",
	},
}

type fakeFeatureClient struct {
	mu    sync.Mutex
	snap  feature.Snapshot
	err   error
	calls []feature.Context
}

func (c *fakeFeatureClient) FetchResolved(_ context.Context, fctx feature.Context) (feature.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, fctx)
	return c.snap, c.err
}

type testApp struct {
	server     *Server
	usrRepo    user.Repository
	tenantRepo tenant.Repository
	featClient *fakeFeatureClient
}

func setupServer(t *testing.T) *testApp {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setupServer() failed: %v", err)
	}
	usrRepo := dummydb.NewUserRepository(db)
	tenantRepo := dummydb.NewTenantRepository(db)

	validate := validator.New()
	translator := newTestTranslator(t)
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	usrSvc := user.NewService(usrRepo, emailsvc.NewConsoleService(testConf), validate, testConf)
	tenantSvc := tenant.NewService(tenantRepo, validate)

	featClient := &fakeFeatureClient{snap: feature.Snapshot{
		Features: map[string]bool{feature.CodeTeacherRosterGroups: true},
		Plan:     "pro",
		Version:  3,
	}}

	server := NewServer(ServerDeps{
		Conf:       testConf,
		Logger:     testutil.NewLogger(),
		UserSvc:    usrSvc,
		TenantSvc:  tenantSvc,
		Features:   feature.NewRegistry(featClient, testutil.NewLogger()),
		Hosts:      tenant.NewHosts(testConf),
		Validate:   validate,
		Translator: translator,
	})
	return &testApp{server: server, usrRepo: usrRepo, tenantRepo: tenantRepo, featClient: featClient}
}

func newTestTranslator(t *testing.T) ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, ok := uni.GetTranslator("en")
	if !ok {
		t.Fatalf("newTestTranslator() failed")
	}
	return translator
}

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
	extra    interface{}
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

func getToken(t *testing.T, usr user.User) string {
	token, err := generateToken(getUserClaims(usr, testConf), testConf)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
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
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %s; wantData %s", rec.Body.Bytes(), tt.wantData)
	}
}
