package metrics

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"
	"unicode"

	"github.com/torosent/sron/internal/runner"
)

// Transport failure labels. They become the code of the "transport" failure class in
// the summary and in the Prometheus failures counter, so keep them stable.
const (
	LabelClientTimeout     = "Client timeout"
	LabelDeadline          = "Context deadline exceeded"
	LabelDNS               = "DNS lookup failed"
	LabelRefused           = "Connection refused"
	LabelReset             = "Connection reset"
	LabelClosedEarly       = "Connection closed early"
	LabelTLS               = "TLS handshake failed"
	LabelHTTPErrorResponse = "HTTP error response"
)

// ClassifyError labels a client error by what went wrong on the wire. Errors that
// match no known cause fall back to FriendlyErrorName of the innermost error type.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	var (
		httpErr *runner.HTTPError
		dnsErr  *net.DNSError
		urlErr  *url.Error
		certErr *tls.CertificateVerificationError
		unknown x509.UnknownAuthorityError
		hostErr x509.HostnameError
		recErr  tls.RecordHeaderError
	)
	switch {
	case errors.As(err, &httpErr):
		return LabelHTTPErrorResponse
	case errors.As(err, &urlErr) && urlErr.Timeout():
		return LabelClientTimeout
	case errors.Is(err, context.DeadlineExceeded):
		return LabelDeadline
	case errors.As(err, &dnsErr):
		return LabelDNS
	case errors.Is(err, syscall.ECONNREFUSED):
		return LabelRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return LabelReset
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return LabelClosedEarly
	case errors.As(err, &certErr), errors.As(err, &unknown), errors.As(err, &hostErr), errors.As(err, &recErr):
		return LabelTLS
	}
	return FriendlyErrorName(fmt.Sprintf("%T", innermost(err)))
}

// innermost follows the Unwrap chain through single-error wrappers.
func innermost(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// FriendlyErrorName turns a Go type name such as "*net.OpError" into a readable
// label such as "Op Error (net)".
func FriendlyErrorName(typeName string) string {
	cleaned := strings.TrimPrefix(strings.TrimSpace(typeName), "*")
	if cleaned == "" {
		return "Unknown error"
	}
	if idx := strings.LastIndex(cleaned, "/"); idx != -1 {
		cleaned = cleaned[idx+1:]
	}

	pkg, name, found := strings.Cut(cleaned, ".")
	if !found {
		pkg, name = "", cleaned
	}

	switch {
	case pkg == "runner" && name == "HTTPError":
		return LabelHTTPErrorResponse
	case pkg == "url" && name == "Error":
		return "Request URL error"
	case pkg == "context" && strings.HasPrefix(name, "deadlineExceeded"):
		return LabelDeadline
	}

	pretty := humanizeTypeName(name)
	if pkg != "" && pkg != "main" {
		return fmt.Sprintf("%s (%s)", pretty, pkg)
	}
	return pretty
}

// humanizeTypeName splits a camel-case identifier into capitalized words. Acronyms
// such as "DNS" or "EOF" stay intact.
func humanizeTypeName(name string) string {
	runes := []rune(name)
	var words []string
	start := 0
	for i := 1; i <= len(runes); i++ {
		if i < len(runes) && !wordBoundary(runes, i) {
			continue
		}
		word := string(runes[start:i])
		if !isAllUpper(word) {
			word = capitalize(word)
		}
		words = append(words, word)
		start = i
	}
	return strings.Join(words, " ")
}

func wordBoundary(runes []rune, i int) bool {
	r, prev := runes[i], runes[i-1]
	nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
	switch {
	case unicode.IsUpper(r):
		return unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower)
	case unicode.IsDigit(r):
		return !unicode.IsDigit(prev)
	}
	return false
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) == 0 {
		return ""
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
