package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/showcase/internal/backend"
	"github.com/MarcoPoloResearchLab/showcase/internal/profiles"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testAvatarBaseURL = "https://api.dicebear.com/7.x/avataaars/svg"

type fakeClient struct {
	user              backend.User
	getUserErr        error
	deleteProfileErr  error
	deleteIdentityErr error
	signOutErr        error
	session           backend.Session
	exchangeErr       error
	existingProfile   bool
	selectErr         error
	insertErr         error
	panicOn           string

	calls    map[string]int
	codes    []string
	inserted []profiles.Profile
}

func newFakeClient() *fakeClient {
	return &fakeClient{calls: map[string]int{}}
}

func (f *fakeClient) record(op string) {
	f.calls[op]++
	if f.panicOn == op {
		panic("boom in " + op)
	}
}

func (f *fakeClient) GetUser(context.Context) (backend.User, error) {
	f.record(backend.OpGetUser)
	return f.user, f.getUserErr
}

func (f *fakeClient) SignOut(context.Context) error {
	f.record(backend.OpSignOut)
	return f.signOutErr
}

func (f *fakeClient) ExchangeCodeForSession(_ context.Context, code string) (backend.Session, error) {
	f.record(backend.OpExchangeCode)
	f.codes = append(f.codes, code)
	return f.session, f.exchangeErr
}

func (f *fakeClient) DeleteIdentity(context.Context, string) error {
	f.record(backend.OpDeleteIdentity)
	return f.deleteIdentityErr
}

func (f *fakeClient) SelectProfile(_ context.Context, userID string) (profiles.Profile, bool, error) {
	f.record(backend.OpSelectProfile)
	if f.existingProfile {
		return profiles.Profile{UserID: userID, Username: "existing"}, true, nil
	}
	return profiles.Profile{}, false, f.selectErr
}

func (f *fakeClient) InsertProfile(_ context.Context, profile profiles.Profile) error {
	f.record(backend.OpInsertProfile)
	f.inserted = append(f.inserted, profile)
	return f.insertErr
}

func (f *fakeClient) DeleteProfile(context.Context, string) error {
	f.record(backend.OpDeleteProfile)
	return f.deleteProfileErr
}

type fakeFactory struct {
	client *fakeClient
	err    error
}

func (f fakeFactory) ForRequest(backend.Credentials) (backend.Client, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

type recordingReporter struct {
	operations []string
}

func (r *recordingReporter) Report(_ error, operation string) {
	r.operations = append(r.operations, operation)
}

type handlerFixture struct {
	handler  *httpHandler
	logs     *observer.ObservedLogs
	reporter *recordingReporter
}

func newHandlerFixture(factory backend.ClientFactory) *handlerFixture {
	core, logs := observer.New(zapcore.DebugLevel)
	reporter := &recordingReporter{}
	return &handlerFixture{
		handler: &httpHandler{
			clients:       factory,
			avatarBaseURL: testAvatarBaseURL,
			metrics:       NewMetrics(),
			reporter:      reporter,
			clock: func() time.Time {
				return time.UnixMilli(1717171717171)
			},
			logger: zap.New(core),
		},
		logs:     logs,
		reporter: reporter,
	}
}

func newTestContext(t *testing.T, method, target string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(method, target, http.NoBody)
	return ctx, recorder
}
