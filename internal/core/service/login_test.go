// Package service provides the session store, view router and login form.
package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/tokpass/internal/core/domain"
	"github.com/yndnr/tokpass/internal/infra/securestore"
	"github.com/yndnr/tokpass/internal/telemetry/logger"
	"github.com/yndnr/tokpass/internal/telemetry/metric"
)

// fakeAuth returns a canned response and counts calls.
type fakeAuth struct {
	status int
	body   string
	err    error
	calls  atomic.Int32
	gotID  atomic.Value
}

func (a *fakeAuth) Authenticate(ctx context.Context, email, password string) (*domain.AuthResponse, error) {
	a.calls.Add(1)
	a.gotID.Store(logger.RequestIDFromContext(ctx))
	if a.err != nil {
		return nil, a.err
	}
	return &domain.AuthResponse{StatusCode: a.status, Body: []byte(a.body)}, nil
}

func newTestForm(t *testing.T, auth Authenticator, opts ...LoginOption) (*LoginForm, *SessionStore, *securestore.Memory) {
	t.Helper()
	mem := securestore.NewMemory()
	store := newTestStore(t, mem)
	opts = append([]LoginOption{WithLoginLogger(logger.Discard())}, opts...)
	return NewLoginForm(store, auth, opts...), store, mem
}

func TestLoginForm_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		err         error
		wantErrors  domain.FormErrors
		wantSession domain.Session
		wantKind    domain.Kind
	}{
		{
			name:        "A: success",
			status:      200,
			body:        `{"access":"X","refresh":"Y"}`,
			wantErrors:  domain.FormErrors{},
			wantSession: domain.Session{Access: "X", Refresh: "Y"},
			wantKind:    domain.KindNone,
		},
		{
			name:       "B: field errors",
			status:     400,
			body:       `{"email":["Invalid email"]}`,
			wantErrors: domain.FormErrors{"email": {"Invalid email"}},
			wantKind:   domain.KindValidation,
		},
		{
			name:       "C: detail",
			status:     401,
			body:       `{"detail":"Invalid credentials"}`,
			wantErrors: domain.FormErrors{domain.NonFieldKey: {"Invalid credentials"}},
			wantKind:   domain.KindAuth,
		},
		{
			name:       "D: connection error",
			err:        errors.New("dial tcp: connection refused"),
			wantErrors: domain.FormErrors{domain.NonFieldKey: {domain.MsgConnectionError}},
			wantKind:   domain.KindConnection,
		},
		{
			name:       "legacy message",
			status:     403,
			body:       `{"message":"Account locked"}`,
			wantErrors: domain.FormErrors{domain.NonFieldKey: {"Account locked"}},
			wantKind:   domain.KindAuth,
		},
		{
			name:   "field errors with mixed values",
			status: 400,
			body:   `{"password":"Too short","email":["a","b"],"code":42}`,
			wantErrors: domain.FormErrors{
				"password": {"Too short"},
				"email":    {"a", "b"},
				"code":     {"42"},
			},
			wantKind: domain.KindValidation,
		},
		{
			name:       "success status without tokens",
			status:     200,
			body:       `{"access":"X"}`,
			wantErrors: domain.FormErrors{domain.NonFieldKey: {domain.MsgLoginError}},
			wantKind:   domain.KindAuth,
		},
		{
			name:       "tokens on error status",
			status:     500,
			body:       `{"access":"X","refresh":"Y"}`,
			wantErrors: domain.FormErrors{"access": {"X"}, "refresh": {"Y"}},
			wantKind:   domain.KindValidation,
		},
		{
			name:       "list body",
			status:     400,
			body:       `["nope"]`,
			wantErrors: domain.FormErrors{domain.NonFieldKey: {domain.MsgLoginError}},
			wantKind:   domain.KindAuth,
		},
		{
			name:       "empty object",
			status:     400,
			body:       `{}`,
			wantErrors: domain.FormErrors{domain.NonFieldKey: {domain.MsgLoginError}},
			wantKind:   domain.KindAuth,
		},
		{
			name:       "non-string detail",
			status:     400,
			body:       `{"detail":["x"]}`,
			wantErrors: domain.FormErrors{"detail": {"x"}},
			wantKind:   domain.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &fakeAuth{status: tt.status, body: tt.body, err: tt.err}
			form, store, _ := newTestForm(t, auth)

			got := form.Submit(context.Background(), "user@example.com", "pw")

			if !reflect.DeepEqual(got, tt.wantErrors) {
				t.Errorf("Submit() = %v, want %v", got, tt.wantErrors)
			}
			if !reflect.DeepEqual(form.Errors(), tt.wantErrors) {
				t.Errorf("Errors() = %v, want %v", form.Errors(), tt.wantErrors)
			}
			if store.Current() != tt.wantSession {
				t.Errorf("session = %v, want %v", store.Current(), tt.wantSession)
			}
			if k := domain.KindOf(form.LastError()); k != tt.wantKind {
				t.Errorf("KindOf(LastError()) = %s, want %s", k, tt.wantKind)
			}
			if n := auth.calls.Load(); n != 1 {
				t.Errorf("network calls = %d, want 1", n)
			}
			if form.Submitting() {
				t.Error("Submitting() = true after Submit returned")
			}
		})
	}
}

func TestLoginForm_UnexpectedResponse(t *testing.T) {
	auth := &fakeAuth{status: 500, body: "<html>Server Error</html>"}
	form, store, _ := newTestForm(t, auth)

	got := form.Submit(context.Background(), "user@example.com", "pw")

	msgs := got.Messages(domain.NonFieldKey)
	if len(msgs) != 1 || !strings.Contains(msgs[0], "<html>Server Error</html>") {
		t.Errorf("non_field = %v, want the raw body", msgs)
	}
	if !strings.HasPrefix(msgs[0], domain.MsgUnexpectedResponse) {
		t.Errorf("non_field = %q, want %q prefix", msgs[0], domain.MsgUnexpectedResponse)
	}
	if !store.Current().IsZero() {
		t.Error("session should be unchanged")
	}
}

func TestLoginForm_ConnectionErrorNotShownVerbatim(t *testing.T) {
	auth := &fakeAuth{err: errors.New("secret-internal-hostname:443")}
	form, _, _ := newTestForm(t, auth)

	got := form.Submit(context.Background(), "user@example.com", "pw")
	for _, msgs := range got {
		for _, m := range msgs {
			if strings.Contains(m, "secret-internal-hostname") {
				t.Errorf("transport error leaked to the user: %q", m)
			}
		}
	}
	if !errors.Is(form.LastError(), domain.ErrConnection) {
		t.Errorf("LastError() = %v, want ErrConnection", form.LastError())
	}
}

func TestLoginForm_LocalValidation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		want     domain.FormErrors
	}{
		{"both empty", "", "", domain.FormErrors{
			domain.FieldEmail:    {domain.MsgFieldRequired},
			domain.FieldPassword: {domain.MsgFieldRequired},
		}},
		{"bad email", "not-an-email", "pw", domain.FormErrors{
			domain.FieldEmail: {domain.MsgInvalidEmail},
		}},
		{"blank email", "   ", "pw", domain.FormErrors{
			domain.FieldEmail: {domain.MsgFieldRequired},
		}},
		{"missing password", "user@example.com", "", domain.FormErrors{
			domain.FieldPassword: {domain.MsgFieldRequired},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &fakeAuth{status: 200, body: `{"access":"a","refresh":"r"}`}
			form, _, _ := newTestForm(t, auth, WithLocalValidation())

			got := form.Submit(context.Background(), tt.email, tt.password)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Submit() = %v, want %v", got, tt.want)
			}
			if n := auth.calls.Load(); n != 0 {
				t.Errorf("network calls = %d, want 0", n)
			}
		})
	}
}

func TestLoginForm_ServerValidatesByDefault(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		status   int
		body     string
		want     domain.FormErrors
	}{
		{"malformed email", "bob", "pw", 400, `{"email":["Invalid email"]}`,
			domain.FormErrors{"email": {"Invalid email"}}},
		{"empty fields", "", "", 400, `{"email":["This field may not be blank."],"password":["This field may not be blank."]}`,
			domain.FormErrors{
				"email":    {"This field may not be blank."},
				"password": {"This field may not be blank."},
			}},
		{"accepted as sent", "bob", "pw", 200, `{"access":"a","refresh":"r"}`, domain.FormErrors{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &fakeAuth{status: tt.status, body: tt.body}
			form, _, _ := newTestForm(t, auth)

			got := form.Submit(context.Background(), tt.email, tt.password)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Submit() = %v, want %v", got, tt.want)
			}
			if n := auth.calls.Load(); n != 1 {
				t.Errorf("network calls = %d, want 1", n)
			}
		})
	}
}

func TestLoginForm_ClearsErrorsOnSubmit(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	attempt := 0
	auth := AuthenticatorFunc(func(ctx context.Context, _, _ string) (*domain.AuthResponse, error) {
		attempt++
		if attempt == 1 {
			return &domain.AuthResponse{StatusCode: 401, Body: []byte(`{"detail":"nope"}`)}, nil
		}
		started <- struct{}{}
		<-release
		return &domain.AuthResponse{StatusCode: 200, Body: []byte(`{"access":"a","refresh":"r"}`)}, nil
	})
	form, _, _ := newTestForm(t, auth)

	if errs := form.Submit(context.Background(), "user@example.com", "pw"); errs.Empty() {
		t.Fatal("first submit should fail")
	}

	done := make(chan domain.FormErrors, 1)
	go func() { done <- form.Submit(context.Background(), "user@example.com", "pw") }()
	<-started

	if !form.Errors().Empty() {
		t.Errorf("Errors() during submit = %v, want cleared", form.Errors())
	}
	close(release)
	if errs := <-done; !errs.Empty() {
		t.Errorf("second submit = %v", errs)
	}
}

func TestLoginForm_InFlightGuard(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32
	auth := AuthenticatorFunc(func(context.Context, string, string) (*domain.AuthResponse, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return &domain.AuthResponse{StatusCode: 200, Body: []byte(`{"access":"a","refresh":"r"}`)}, nil
	})
	m := metric.NewRegistry()
	form, store, _ := newTestForm(t, auth, WithLoginMetrics(m))

	done := make(chan struct{})
	go func() {
		form.Submit(context.Background(), "user@example.com", "pw")
		close(done)
	}()
	<-started

	if !form.Submitting() {
		t.Error("Submitting() = false while a request is in flight")
	}
	form.Submit(context.Background(), "user@example.com", "pw")
	if !errors.Is(form.LastError(), domain.ErrSubmitInFlight) {
		t.Errorf("LastError() = %v, want ErrSubmitInFlight", form.LastError())
	}

	close(release)
	<-done

	if n := calls.Load(); n != 1 {
		t.Errorf("network calls = %d, want 1", n)
	}
	if store.State() != domain.StateLoggedIn {
		t.Error("first submit should have logged in")
	}
	if got := testutil.ToFloat64(m.LoginAttempts.WithLabelValues(metric.OutcomeInFlight)); got != 1 {
		t.Errorf("in_flight count = %v, want 1", got)
	}
}

func TestLoginForm_CloseDiscardsResult(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	auth := AuthenticatorFunc(func(context.Context, string, string) (*domain.AuthResponse, error) {
		close(started)
		<-release
		return &domain.AuthResponse{StatusCode: 200, Body: []byte(`{"access":"a","refresh":"r"}`)}, nil
	})
	form, store, mem := newTestForm(t, auth)

	done := make(chan domain.FormErrors, 1)
	go func() { done <- form.Submit(context.Background(), "user@example.com", "pw") }()
	<-started

	form.Close()
	close(release)
	if errs := <-done; !errs.Empty() {
		t.Errorf("Submit() = %v, want empty", errs)
	}

	if !store.Current().IsZero() {
		t.Errorf("session = %v, want untouched", store.Current())
	}
	if len(mem.Snapshot()) != 0 {
		t.Error("storage should be untouched")
	}
	if !form.Errors().Empty() {
		t.Error("error state should be untouched")
	}
	if form.Submitting() {
		t.Error("Submitting() = true after discard")
	}
}

func TestLoginForm_SubmitAfterClose(t *testing.T) {
	auth := &fakeAuth{status: 200, body: `{"access":"a","refresh":"r"}`}
	form, _, _ := newTestForm(t, auth)
	form.Close()

	form.Submit(context.Background(), "user@example.com", "pw")
	if n := auth.calls.Load(); n != 0 {
		t.Errorf("network calls = %d, want 0", n)
	}
}

func TestLoginForm_PersistenceFailureNotShown(t *testing.T) {
	auth := &fakeAuth{status: 200, body: `{"access":"a","refresh":"r"}`}
	form, store, mem := newTestForm(t, auth)
	mem.SetHooks(nil, func(string, string) error { return errors.New("disk full") }, nil)

	got := form.Submit(context.Background(), "user@example.com", "pw")
	if !got.Empty() {
		t.Errorf("Submit() = %v, want no user-facing error", got)
	}
	if store.State() != domain.StateLoggedIn {
		t.Error("session should be live despite the storage failure")
	}
	if !errors.Is(form.LastError(), domain.ErrPersistence) {
		t.Errorf("LastError() = %v, want ErrPersistence", form.LastError())
	}
}

func TestLoginForm_RateLimit(t *testing.T) {
	auth := &fakeAuth{status: 401, body: `{"detail":"nope"}`}
	form, _, _ := newTestForm(t, auth, WithRateLimit(0.001, 1))

	form.Submit(context.Background(), "user@example.com", "pw")
	got := form.Submit(context.Background(), "user@example.com", "pw")

	want := domain.FormErrors{domain.NonFieldKey: {domain.MsgThrottled}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Submit() = %v, want %v", got, want)
	}
	if n := auth.calls.Load(); n != 1 {
		t.Errorf("network calls = %d, want 1", n)
	}
}

func TestLoginForm_RequestID(t *testing.T) {
	auth := &fakeAuth{status: 401, body: `{"detail":"nope"}`}
	form, _, _ := newTestForm(t, auth)

	form.Submit(context.Background(), "user@example.com", "pw")
	first, _ := auth.gotID.Load().(string)
	form.Submit(context.Background(), "user@example.com", "pw")
	second, _ := auth.gotID.Load().(string)

	if len(first) != 26 {
		t.Errorf("request id = %q, want a 26-char ULID", first)
	}
	if first == second {
		t.Error("request ids should differ per submit")
	}
}

func TestLoginForm_Timeout(t *testing.T) {
	auth := AuthenticatorFunc(func(ctx context.Context, _, _ string) (*domain.AuthResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	form, _, _ := newTestForm(t, auth, WithLoginTimeout(10*time.Millisecond))

	got := form.Submit(context.Background(), "user@example.com", "pw")
	want := domain.FormErrors{domain.NonFieldKey: {domain.MsgConnectionError}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Submit() = %v, want %v", got, want)
	}
}

func TestLoginForm_RoutesAfterSuccess(t *testing.T) {
	auth := &fakeAuth{status: 200, body: `{"access":"X","refresh":"Y"}`}
	form, store, _ := newTestForm(t, auth)

	rec := &recordingRenderer{}
	r := NewRouter(store, rec)
	r.Start()
	defer r.Stop()

	form.Submit(context.Background(), "user@example.com", "pw")

	views := rec.Views()
	if views[len(views)-1] != ViewProfile {
		t.Errorf("last view = %s, want profile", views[len(views)-1])
	}
}
