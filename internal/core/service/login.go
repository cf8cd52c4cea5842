// Package service provides the session store, view router and login form.
//
// LoginForm submits credentials and maps responses to form errors.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/tokpass/internal/core/domain"
	"github.com/yndnr/tokpass/internal/telemetry/logger"
	"github.com/yndnr/tokpass/internal/telemetry/metric"
)

// Authenticator performs the login request.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*domain.AuthResponse, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, email, password string) (*domain.AuthResponse, error)

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, email, password string) (*domain.AuthResponse, error) {
	return f(ctx, email, password)
}

// LoginForm collects credentials, submits them and either starts a session
// or records form errors. Every failure stops here.
type LoginForm struct {
	store    *SessionStore
	auth     Authenticator
	logger   logger.Logger
	metrics  *metric.Registry
	limiter  *rate.Limiter
	timeout  time.Duration
	validate *validator.Validate

	mu         sync.Mutex
	errors     domain.FormErrors
	lastErr    error
	submitting bool
	closed     bool
}

// LoginOption configures a LoginForm.
type LoginOption func(*LoginForm)

// WithLoginLogger sets the logger.
func WithLoginLogger(l logger.Logger) LoginOption {
	return func(f *LoginForm) {
		f.logger = l
	}
}

// WithLoginMetrics sets the metrics registry.
func WithLoginMetrics(m *metric.Registry) LoginOption {
	return func(f *LoginForm) {
		f.metrics = m
	}
}

// WithRateLimit throttles submissions to r per second with the given burst.
// A non-positive rate disables throttling.
func WithRateLimit(r float64, burst int) LoginOption {
	return func(f *LoginForm) {
		if r <= 0 {
			f.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// WithLoginTimeout bounds each request. Zero means no bound beyond ctx.
func WithLoginTimeout(d time.Duration) LoginOption {
	return func(f *LoginForm) {
		f.timeout = d
	}
}

// WithLocalValidation rejects empty fields and malformed email addresses
// without a request. Off by default, so every submit reaches the server.
func WithLocalValidation() LoginOption {
	return func(f *LoginForm) {
		f.validate = newValidator()
	}
}

// NewLoginForm creates a mounted form bound to store and auth.
func NewLoginForm(store *SessionStore, auth Authenticator, opts ...LoginOption) *LoginForm {
	f := &LoginForm{
		store:    store,
		auth:     auth,
		logger: logger.Default(),
		errors: domain.FormErrors{},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "login")
	return f
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Submit runs one login attempt and returns the resulting form errors.
// An empty result means the session was started.
//
// While a submission is in flight further calls return the current errors
// without touching the network; LastError then reports ErrSubmitInFlight.
// If the form is closed before the response arrives the result is dropped.
func (f *LoginForm) Submit(ctx context.Context, email, password string) domain.FormErrors {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return domain.FormErrors{}
	}
	if f.submitting {
		f.lastErr = domain.ErrSubmitInFlight
		errs := f.errors.Clone()
		f.mu.Unlock()
		f.metrics.ObserveLogin(metric.OutcomeInFlight)
		f.logger.Debug("submit ignored, another submission is in flight")
		return errs
	}
	f.submitting = true
	f.errors = domain.FormErrors{}
	f.lastErr = nil
	f.mu.Unlock()

	creds := domain.Credentials{Email: strings.TrimSpace(email), Password: password}
	if f.validate != nil {
		if errs := f.validateLocal(creds); errs != nil {
			return f.finish(errs, domain.ErrValidation, metric.OutcomeValidation)
		}
	}

	if f.limiter != nil && !f.limiter.Allow() {
		f.logger.Warn("login throttled")
		return f.finish(domain.NonField(domain.MsgThrottled), domain.ErrAuth.WithDetails("throttled"), metric.OutcomeThrottled)
	}

	ctx = logger.WithRequestID(logger.WithLogger(ctx, f.logger), ulid.Make().String())
	log := logger.L(ctx)
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	log.Debug("submitting login", "email", creds.Email)
	resp, err := f.auth.Authenticate(ctx, creds.Email, creds.Password)
	res := interpret(resp, err)

	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		log.Debug("form closed while request was in flight, discarding result")
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
		return domain.FormErrors{}
	}

	switch {
	case res.cause != nil:
		log.Warn("login request failed", "error", res.cause)
	case res.outcome != metric.OutcomeSuccess:
		log.Info("login rejected", "status", statusOf(resp), "outcome", res.outcome)
	}

	if res.session != nil {
		if err := f.store.Login(ctx, res.session.Access, res.session.Refresh); err != nil {
			// The session is live in memory; storage trouble is for operators.
			log.Error("session started but not persisted", "error", err)
			return f.finish(domain.FormErrors{}, err, metric.OutcomeSuccess)
		}
		log.Info("login succeeded")
	}
	return f.finish(res.errors, res.err, res.outcome)
}

func (f *LoginForm) finish(errs domain.FormErrors, err error, outcome string) domain.FormErrors {
	f.metrics.ObserveLogin(outcome)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if f.closed {
		return domain.FormErrors{}
	}
	f.errors = errs
	f.lastErr = err
	return errs.Clone()
}

func (f *LoginForm) validateLocal(creds domain.Credentials) domain.FormErrors {
	err := f.validate.Struct(creds)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.NonField(domain.MsgLoginError)
	}
	errs := domain.FormErrors{}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			errs.Add(fe.Field(), domain.MsgFieldRequired)
		case "email":
			errs.Add(fe.Field(), domain.MsgInvalidEmail)
		default:
			errs.Add(fe.Field(), fe.Error())
		}
	}
	return errs
}

// Errors returns a copy of the current form errors.
func (f *LoginForm) Errors() domain.FormErrors {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errors.Clone()
}

// Submitting reports whether a submission is in flight.
func (f *LoginForm) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// LastError returns the classified error of the last submit, or nil.
func (f *LoginForm) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Close unmounts the form. Results of in-flight submissions are discarded.
func (f *LoginForm) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// result is one interpreted response.
type result struct {
	errors  domain.FormErrors
	session *domain.Session
	err     error
	cause   error
	outcome string
}

// interpret maps a response to form errors. Order matters: transport
// failure, unparseable body, success, detail message, field-keyed object,
// then the generic message.
func interpret(resp *domain.AuthResponse, err error) result {
	if err != nil || resp == nil {
		if err == nil {
			err = errors.New("no response")
		}
		return result{
			errors:  domain.NonField(domain.MsgConnectionError),
			err:     domain.ErrConnection.WithCause(err),
			cause:   err,
			outcome: metric.OutcomeConnection,
		}
	}

	var body any
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return result{
			errors:  domain.NonField(domain.MsgUnexpectedResponse + ": " + string(resp.Body)),
			err:     domain.ErrAuth.WithDetails("unexpected response"),
			outcome: metric.OutcomeUnexpected,
		}
	}

	obj, isObject := body.(map[string]any)

	if resp.Success() && isObject {
		access, _ := obj["access"].(string)
		refresh, _ := obj["refresh"].(string)
		if access != "" && refresh != "" {
			return result{
				errors:  domain.FormErrors{},
				session: &domain.Session{Access: access, Refresh: refresh},
				outcome: metric.OutcomeSuccess,
			}
		}
	}

	if isObject {
		for _, key := range []string{"detail", "message"} {
			if msg, ok := obj[key].(string); ok {
				return result{
					errors:  domain.NonField(msg),
					err:     domain.ErrAuth.WithDetails(msg),
					outcome: metric.OutcomeAuth,
				}
			}
		}
	}

	if isObject && len(obj) > 0 && !resp.Success() {
		return result{
			errors:  fieldErrors(obj),
			err:     domain.ErrValidation,
			outcome: metric.OutcomeValidation,
		}
	}

	return result{
		errors:  domain.NonField(domain.MsgLoginError),
		err:     domain.ErrAuth,
		outcome: metric.OutcomeAuth,
	}
}

// fieldErrors adopts a server object as field-keyed errors.
func fieldErrors(obj map[string]any) domain.FormErrors {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	errs := domain.FormErrors{}
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			errs.Add(k, v)
		case []any:
			for _, item := range v {
				errs.Add(k, text(item))
			}
		default:
			errs.Add(k, text(v))
		}
	}
	return errs
}

func text(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func statusOf(resp *domain.AuthResponse) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
