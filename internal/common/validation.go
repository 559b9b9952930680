package common

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

// ValidateURLLength rejects URLs longer than max bytes. Platform openers
// receive the URL as a single argv element, which is bounded by ARG_MAX.
func ValidateURLLength(u string, max int) error {
	if max > 0 && len(u) > max {
		return fmt.Errorf("%w: url is %d bytes, limit is %d", ErrTooLarge, len(u), max)
	}
	return nil
}

// ValidateBridgeURL checks that raw is an absolute http(s) URL and returns it
// with the host converted to its ASCII (punycode) form.
func ValidateBridgeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty bridge url", ErrInvalidInput)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: bridge url: %v", ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: bridge url must use http or https, got %q", ErrInvalidInput, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: bridge url has no host", ErrInvalidInput)
	}

	asciiHost, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("%w: bridge url host %q: %v", ErrInvalidInput, host, err)
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(asciiHost, port)
	} else {
		u.Host = asciiHost
	}
	return u.String(), nil
}

var openerNameRegex = regexp.MustCompile(`^[A-Za-z0-9_./\\:-]+$`)

// ValidateOpener checks the platform opener command name. It is executed
// directly, so shell syntax in the name is rejected.
func ValidateOpener(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty opener command", ErrInvalidInput)
	}
	if !openerNameRegex.MatchString(name) {
		return fmt.Errorf("%w: invalid opener command: %s", ErrInvalidInput, name)
	}
	return nil
}
