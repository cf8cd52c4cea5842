// Package connection provides the HTTP client used to reach the backend.
//
// AuthClient implements the login call: POST {BACKEND_URL}/auth/login/ with
// a JSON {"email","password"} body. It does not interpret the response; that
// is left to service.LoginForm.
package connection
