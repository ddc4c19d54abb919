package mediarouter

import (
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/lmig/csserver/pkg/config"
)

// Type is a Feeder's channel layout.
type Type string

const (
	// TypeMono carries a single 480-byte A-law payload per datagram,
	// for Simplex and Group calls.
	TypeMono Type = "M"
	// TypeStereo carries a 960-byte interleaved A-law payload per
	// datagram, for Duplex calls.
	TypeStereo Type = "S"
)

// Feeder is one outbound voice-forwarding socket destination. Feeders are
// immutable once built from configuration; only the reservation is
// mutable, and only via the owning Pool.
type Feeder struct {
	Name   string
	Stream string
	Addr   *net.UDPAddr
	Type   Type

	reservedBy uint32
	reserved   bool
}

// Pool is the fixed-size set of configured Feeders, with free/reserved
// bookkeeping mutated only through Reserve/Release.
type Pool struct {
	mu      sync.Mutex
	feeders []*Feeder
}

// NewPool builds a Feeder Pool from configuration, resolving each
// feeder's destination address up front so a bad config key is a
// ConfigError at startup rather than a failure at first use.
func NewPool(cfgs map[string]config.FeederConfig) (*Pool, error) {
	names := make([]string, 0, len(cfgs))
	for name := range cfgs {
		names = append(names, name)
	}
	sort.Strings(names)

	feeders := make([]*Feeder, 0, len(names))
	for _, name := range names {
		c := cfgs[name]
		addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", c.IP, c.Port))
		if err != nil {
			return nil, fmt.Errorf("mediarouter: feeder %q has an invalid destination %s:%d: %w", name, c.IP, c.Port, err)
		}
		t := TypeMono
		if c.Type == string(TypeStereo) {
			t = TypeStereo
		}
		feeders = append(feeders, &Feeder{Name: name, Stream: c.Stream, Addr: addr, Type: t})
	}
	return &Pool{feeders: feeders}, nil
}

// ReservedFor returns the Feeder a call id already holds, if any.
func (p *Pool) ReservedFor(callID uint32) (*Feeder, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range p.feeders {
		if f.reserved && f.reservedBy == callID {
			return f, true
		}
	}
	return nil, false
}

// Reserve finds a free Feeder of the requested Type and assigns it to
// callID. Returns ok=false if no compatible free Feeder exists — a
// ResourceExhausted condition the caller reports synchronously as NOK.
func (p *Pool) Reserve(callID uint32, t Type) (*Feeder, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range p.feeders {
		if !f.reserved && f.Type == t {
			f.reserved = true
			f.reservedBy = callID
			return f, true
		}
	}
	return nil, false
}

// Release frees the Feeder reserved by callID, if any.
func (p *Pool) Release(callID uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range p.feeders {
		if f.reserved && f.reservedBy == callID {
			f.reserved = false
			f.reservedBy = 0
			return
		}
	}
}

// Snapshot returns every Feeder's current reservation state, for status
// reporting.
func (p *Pool) Snapshot() []Feeder {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Feeder, len(p.feeders))
	for i, f := range p.feeders {
		out[i] = *f
	}
	return out
}
