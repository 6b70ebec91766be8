package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// ConfigurationError reports a backend that cannot be selected because a
// required credential is missing.
type ConfigurationError struct {
	Provider Provider
	Message  string
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return "configuration error"
	}
	return e.Message
}

// ConnectivityError reports a transport that could not reach the backend.
type ConnectivityError struct {
	Provider Provider
	Endpoint string
	Message  string
	Err      error
}

func (e *ConnectivityError) Error() string {
	if e == nil {
		return "connectivity error"
	}
	return e.Message
}

func (e *ConnectivityError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ProviderError wraps a non-success HTTP status returned by a backend.
// Message carries the backend's own explanation when it sent one.
type ProviderError struct {
	Provider Provider
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.Message != "" {
		return fmt.Sprintf("%s error: %s", e.Provider.DisplayName(), e.Message)
	}
	return fmt.Sprintf("%s error (status=%d)", e.Provider.DisplayName(), e.Status)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsConnectivity reports whether err is a ConnectivityError.
func IsConnectivity(err error) bool {
	var connErr *ConnectivityError
	return errors.As(err, &connErr)
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

func missingKey(p Provider) *ConfigurationError {
	return &ConfigurationError{
		Provider: p,
		Message:  fmt.Sprintf("%s API key required", p.DisplayName()),
	}
}

// isTransportError reports failures that happened before any HTTP status was
// received. Caller cancellation is not a transport failure.
func isTransportError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// classifyTransport turns a transport failure into a ConnectivityError and
// passes anything else through untouched.
func classifyTransport(p Provider, endpoint string, err error) error {
	if !isTransportError(err) {
		return err
	}
	if p == ProviderOllama {
		return &ConnectivityError{
			Provider: p,
			Endpoint: endpoint,
			Message:  fmt.Sprintf("Cannot connect to Ollama. Make sure Ollama is running on %s", hostOf(endpoint)),
			Err:      err,
		}
	}
	return &ConnectivityError{
		Provider: p,
		Endpoint: endpoint,
		Message:  fmt.Sprintf("Cannot reach %s at %s. Check your network connection", p.DisplayName(), hostOf(endpoint)),
		Err:      err,
	}
}

// statusError builds a ProviderError from a failed response body. Backends
// report errors as {"error":{"message":...}} or {"error":"..."}.
func statusError(p Provider, status int, body []byte) *ProviderError {
	msg := ""
	if gjson.ValidBytes(body) {
		errField := gjson.GetBytes(body, "error")
		switch {
		case errField.Get("message").Exists():
			msg = errField.Get("message").String()
		case errField.Type == gjson.String:
			msg = errField.String()
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &ProviderError{Provider: p, Status: status, Message: msg}
}

func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(endpoint, "/")
	}
	return u.Host
}
