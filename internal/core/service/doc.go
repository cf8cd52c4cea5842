// Package service provides the session store, view router and login form.
//
// The three pieces are composed top-down:
//
//   - SessionStore: owns the access/refresh pair and mirrors it to a
//     securestore.Storage. It is built once per process and injected.
//   - Router: picks ViewLoading, ViewLogin or ViewProfile from a store
//     snapshot and re-renders on every committed change.
//   - LoginForm: calls an Authenticator once per submit
//     and either calls SessionStore.Login or records domain.FormErrors.
//
// Observers run synchronously on the goroutine that committed the change.
// Persistence happens after observers have seen the new session, so a
// storage failure never rolls the view back.
package service
