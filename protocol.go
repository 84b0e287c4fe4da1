package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
)

var (
	// ErrMalformedAddress marks tile addresses that do not parse into integers.
	ErrMalformedAddress = errors.New("malformed tile address")
	// ErrUnknownScheme is returned for URLs whose scheme has no handler.
	ErrUnknownScheme = errors.New("no protocol handler registered")
)

// AddressError describes a tile address that could not be parsed.
type AddressError struct {
	URL    string
	Reason string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrMalformedAddress, e.URL, e.Reason)
}

func (e *AddressError) Unwrap() error { return ErrMalformedAddress }

// ProtocolFunc serves the bytes behind a custom-scheme URL.
type ProtocolFunc func(ctx context.Context, url string) ([]byte, error)

// Registry maps URL schemes to protocol handlers, the same way a map host
// resolves custom tile URLs. Independent registries share no state.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]ProtocolFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]ProtocolFunc)}
}

// Register installs fn for scheme. It reports false and leaves the existing
// handler in place when the scheme is already taken.
func (r *Registry) Register(scheme string, fn ProtocolFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[scheme]; ok {
		return false
	}
	r.handlers[scheme] = fn
	return true
}

// Unregister removes the handler for scheme, if any.
func (r *Registry) Unregister(scheme string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, scheme)
}

// Registered reports whether scheme has a handler.
func (r *Registry) Registered(scheme string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[scheme]
	return ok
}

// Schemes lists the registered schemes.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for s := range r.handlers {
		out = append(out, s)
	}
	return out
}

// Fetch dispatches url to the handler of its scheme.
func (r *Registry) Fetch(ctx context.Context, url string) ([]byte, error) {
	scheme, _, ok := strings.Cut(url, "://")
	if !ok {
		return nil, fmt.Errorf("%w: %q has no scheme", ErrUnknownScheme, url)
	}
	r.mu.RLock()
	fn, found := r.handlers[scheme]
	r.mu.RUnlock()
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScheme, scheme)
	}
	return fn(ctx, url)
}

// ParseAddress parses scheme://{z}/{x}/{y}. Each part is a run of ASCII
// digits; y may carry a trailing ".png".
func ParseAddress(scheme, url string) (TileAddress, error) {
	prefix := scheme + "://"
	if !strings.HasPrefix(url, prefix) {
		return TileAddress{}, &AddressError{URL: url, Reason: "expected scheme " + scheme}
	}
	parts := strings.Split(strings.TrimPrefix(url, prefix), "/")
	if len(parts) != 3 {
		return TileAddress{}, &AddressError{URL: url, Reason: "expected {z}/{x}/{y}"}
	}
	parts[2] = strings.TrimSuffix(parts[2], "."+PNG)
	var v [3]int
	for i, p := range parts {
		if !isDigits(p) {
			return TileAddress{}, &AddressError{URL: url, Reason: fmt.Sprintf("%q is not a non-negative integer", p)}
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return TileAddress{}, &AddressError{URL: url, Reason: err.Error()}
		}
		v[i] = n
	}
	return TileAddress{Z: v[0], X: v[1], Y: v[2]}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// SlopeProtocol is the tile protocol handler for slope overlay tiles.
type SlopeProtocol struct {
	scheme      string
	renderer    *Renderer
	transparent []byte
	metrics     *Metrics
}

// NewSlopeProtocol creates a handler serving scheme with renderer.
func NewSlopeProtocol(scheme string, renderer *Renderer, metrics *Metrics) (*SlopeProtocol, error) {
	blank, err := transparentTile(renderer.Size())
	if err != nil {
		return nil, fmt.Errorf("encode transparent tile: %w", err)
	}
	return &SlopeProtocol{
		scheme:      scheme,
		renderer:    renderer,
		transparent: blank,
		metrics:     metrics,
	}, nil
}

// Scheme the handler answers to.
func (p *SlopeProtocol) Scheme() string { return p.scheme }

// Register installs the handler in reg. Calling it again is a no-op.
func (p *SlopeProtocol) Register(reg *Registry) {
	if reg.Register(p.scheme, p.Handle) {
		log.Infof("protocol %s:// registered", p.scheme)
	}
}

// Unregister removes the handler from reg.
func (p *SlopeProtocol) Unregister(reg *Registry) {
	if reg.Registered(p.scheme) {
		reg.Unregister(p.scheme)
		log.Infof("protocol %s:// unregistered", p.scheme)
	}
}

// Handle renders the tile addressed by url. Only malformed addresses are
// reported as errors; every other failure yields a transparent tile.
func (p *SlopeProtocol) Handle(ctx context.Context, url string) ([]byte, error) {
	addr, err := ParseAddress(p.scheme, url)
	if err != nil {
		p.count("malformed")
		return nil, err
	}
	id, _ := shortid.Generate()
	entry := log.WithFields(log.Fields{"req": id, "tile": addr.String()})
	if !addr.Valid() {
		entry.Warn("tile outside the grid, returning transparent tile")
		p.count("fallback")
		return p.transparent, nil
	}

	img, failed := p.renderer.Render(ctx, addr)
	if failed == 9 {
		entry.Warn("all elevation neighbors failed, returning transparent tile")
		p.count("fallback")
		return p.transparent, nil
	}
	if failed > 0 {
		entry.Debugf("%d of 9 elevation neighbors zero filled", failed)
	}
	data, err := encodePNG(img)
	if err != nil {
		entry.Warnf("encode slope tile error ~ %s", err)
		p.count("fallback")
		return p.transparent, nil
	}
	p.count("rendered")
	return data, nil
}

func (p *SlopeProtocol) count(outcome string) {
	if p.metrics != nil {
		p.metrics.Tiles.WithLabelValues(outcome).Inc()
	}
}
