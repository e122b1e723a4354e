package llm

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Fixed user-facing messages for the failure taxonomy.
const (
	msgAuthFailed   = "Authentication failed. Please check your API key."
	msgNotFound     = "Model or endpoint not found. Please check the base URL and model name."
	msgRateLimited  = "Rate limit exceeded. Please try again later."
	msgTimeout      = "Request timed out. Please try again."
	msgDNSFailure   = "Could not resolve the server address. Please check the base URL."
	msgTLSHandshake = "TLS handshake failed. Please check the server certificate."
	msgTLSGeneric   = "A TLS error occurred while connecting to the server."
	msgConnRefused  = "Connection refused. Is the server reachable?"

	msgNoToolCalls      = "No tool calls accumulated."
	msgPartialToolCalls = "Some tool calls arrived incomplete and were discarded."
)

// APIError is a non-2xx HTTP response from the completion API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// TransportError is a network-level failure before or during a response.
type TransportError struct {
	Message string
	Inner   error
}

func (e *TransportError) Error() string {
	return e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Inner
}

// classifyStatus maps a non-2xx status to a fixed message. The well-known
// statuses win regardless of body content; anything else falls back to the
// structured error body, then to a generic message naming the code.
func classifyStatus(status int, body []byte) string {
	switch status {
	case 401:
		return msgAuthFailed
	case 404:
		return msgNotFound
	case 429:
		return msgRateLimited
	default:
		if msg := extractAPIError(body); msg != "" {
			return msg
		}
		return fmt.Sprintf("API error %d", status)
	}
}

// apiErrorBody matches the common {"error": {"message": ...}} shape; some
// servers send a bare string under "error" instead.
type apiErrorBody struct {
	Error json.RawMessage `json:"error"`
}

func extractAPIError(body []byte) string {
	var outer apiErrorBody
	if err := json.Unmarshal(body, &outer); err != nil || len(outer.Error) == 0 {
		return ""
	}

	var structured struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(outer.Error, &structured); err == nil && structured.Message != "" {
		return structured.Message
	}

	var plain string
	if err := json.Unmarshal(outer.Error, &plain); err == nil {
		return plain
	}
	return ""
}

// classifyTransportError maps a transport failure to the fixed taxonomy:
// timeout, DNS, TLS handshake, generic TLS, connection refused, generic I/O,
// or unknown.
func classifyTransportError(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return msgTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return msgTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return msgDNSFailure
	}

	var certErr *tls.CertificateVerificationError
	var hostErr x509.HostnameError
	var unknownAuthErr x509.UnknownAuthorityError
	if errors.As(err, &certErr) || errors.As(err, &hostErr) || errors.As(err, &unknownAuthErr) {
		return msgTLSHandshake
	}
	var recordErr tls.RecordHeaderError
	var alertErr tls.AlertError
	if errors.As(err, &recordErr) || errors.As(err, &alertErr) {
		return msgTLSGeneric
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return msgConnRefused
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("A network error occurred: %v", opErr.Err)
	}

	return fmt.Sprintf("Unexpected error (%T): %v", err, err)
}
