package mediarouter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lmig/csserver/pkg/childproc"
	"github.com/lmig/csserver/pkg/config"
)

// Player is one legacy (v1) playback slot: a feeder-bound child process
// that streams a materialized recording to its feeder's destination.
// Players are created at startup; their child process exists only for
// the duration of one playback.
type Player struct {
	Name       string
	Stream     string
	FeederName string

	busy      bool
	sup       *childproc.Supervisor
	callID    uint32
	callDbID  uint64
}

// PlayerPool is the fixed-size set of configured Players.
type PlayerPool struct {
	mu      sync.Mutex
	players []*Player
}

// NewPlayerPool builds a PlayerPool from configuration. An empty cfgs map
// yields an empty pool — expected when the deployment only uses v2
// (materialize-and-serve) playback.
func NewPlayerPool(cfgs map[string]config.PlayerInstanceConfig) *PlayerPool {
	names := make([]string, 0, len(cfgs))
	for name := range cfgs {
		names = append(names, name)
	}
	sort.Strings(names)

	players := make([]*Player, 0, len(names))
	for _, name := range names {
		c := cfgs[name]
		players = append(players, &Player{Name: name, Stream: c.Stream, FeederName: c.Feeder})
	}
	return &PlayerPool{players: players}
}

// Len reports the configured pool size, mostly for tests and status.
func (p *PlayerPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.players)
}

// Acquire reserves a free Player for a playback session. Returns
// ok=false if every Player is busy — a ResourceExhausted condition.
func (p *PlayerPool) Acquire(callID uint32, callDbID uint64) (*Player, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pl := range p.players {
		if !pl.busy {
			pl.busy = true
			pl.callID = callID
			pl.callDbID = callDbID
			return pl, true
		}
	}
	return nil, false
}

// ReleaseByCall frees the Player currently playing callID, if any,
// stopping its child process first.
func (p *PlayerPool) ReleaseByCall(callID uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pl := range p.players {
		if pl.busy && pl.callID == callID {
			if pl.sup != nil {
				pl.sup.Stop()
			}
			pl.busy = false
			pl.sup = nil
			pl.callID = 0
			pl.callDbID = 0
			return true
		}
	}
	return false
}

// Start launches the playback child process for an already-Acquired
// Player, substituting the materialized file path and the Player's
// feeder stream name into the two %s slots of commandTemplate.
func (pl *Player) Start(ctx context.Context, commandTemplate, filePath string) error {
	command := fmt.Sprintf(commandTemplate, filePath, pl.Stream)
	sup, err := childproc.Start(ctx, "sh", "-c", command)
	if err != nil {
		return fmt.Errorf("mediarouter: failed to launch player %q: %w", pl.Name, err)
	}
	pl.sup = sup
	return nil
}
