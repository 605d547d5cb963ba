// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"fmt"
	"net/url"
	"strings"
)

// Locator addresses a remote service: a base endpoint plus a service name.
// A locator without a base is relative and has to be qualified against the
// base of the stub that produced it before it can be called.
type Locator struct {
	base    string
	service string
}

// NewRelative returns a relative locator for the given service name.
func NewRelative(service string) Locator {
	return Locator{service: strings.Trim(service, "/")}
}

// Qualify builds an absolute locator from a base endpoint and a service name.
// An absolute URL passed as name is parsed and returned unchanged.
func Qualify(base, name string) (Locator, error) {
	if hasScheme(name) {
		return ParseLocator(name)
	}
	u, err := url.Parse(base)
	if err != nil {
		return Locator{}, fmt.Errorf("%w: %q: %v", ErrInvalidLocator, base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Locator{}, fmt.Errorf("%w: base %q is not an absolute URL", ErrInvalidLocator, base)
	}
	name = strings.Trim(name, "/")
	if name == "" {
		return Locator{}, fmt.Errorf("%w: empty service name", ErrInvalidLocator)
	}
	return Locator{base: strings.TrimRight(base, "/"), service: name}, nil
}

// ParseLocator parses the string form of a locator. Strings carrying a URL
// scheme are split at their last path separator into base and service name;
// anything else is a relative service name.
func ParseLocator(s string) (Locator, error) {
	s = strings.TrimSpace(s)
	if !hasScheme(s) {
		if s == "" {
			return Locator{}, fmt.Errorf("%w: empty locator", ErrInvalidLocator)
		}
		return NewRelative(s), nil
	}
	trimmed := strings.TrimRight(s, "/")
	i := strings.LastIndex(trimmed, "/")
	if i < 0 || strings.HasSuffix(trimmed[:i+1], "://") {
		return Locator{}, fmt.Errorf("%w: %q has no service name", ErrInvalidLocator, s)
	}
	return Qualify(trimmed[:i], trimmed[i+1:])
}

func hasScheme(s string) bool {
	return strings.Contains(s, "://")
}

func (l Locator) IsAbsolute() bool { return l.base != "" }

func (l Locator) IsRelative() bool { return l.base == "" }

func (l Locator) Base() string { return l.base }

func (l Locator) ServiceName() string { return l.service }

// ServiceURL joins base and service name. For a relative locator it is just
// the service name.
func (l Locator) ServiceURL() string {
	if l.base == "" {
		return l.service
	}
	return l.base + "/" + l.service
}

// Scheme returns the URL scheme of the base, lower-cased, or "" for relative
// locators.
func (l Locator) Scheme() string {
	i := strings.Index(l.base, "://")
	if i < 0 {
		return ""
	}
	return strings.ToLower(l.base[:i])
}

func (l Locator) String() string { return l.ServiceURL() }

func (l Locator) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Locator) UnmarshalText(text []byte) error {
	parsed, err := ParseLocator(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
