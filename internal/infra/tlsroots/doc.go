// Package tlsroots builds the TLS configuration used to reach the backend.
//
// The system roots are trusted by default. A PEM bundle (file or directory
// of .pem/.crt/.cer files) adds private CAs, e.g. for a staging backend
// behind a corporate proxy.
package tlsroots
