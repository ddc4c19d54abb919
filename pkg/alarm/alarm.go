// Package alarm wraps the external alarm CLI collaborator: a fire-and-
// forget command invoked whenever a component hits a StorageError,
// ChildProcessError, or other condition an operator needs paged on.
// The Persister and Media Router call it; it never itself blocks or
// retries — raising an alarm is a side effect, not part of the event
// loop's control flow.
package alarm

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/lmig/csserver/pkg/logger"
)

// raiseTimeout bounds how long the alarm CLI is allowed to run before
// being killed, so a hung collaborator never backs up the caller.
const raiseTimeout = 5 * time.Second

// Config configures the alarm collaborator. APLI is the alarm CLI binary
// path; HTTPDHome is passed through as HTTPD_HOME, matching the two
// environment variables the collaborator reads per its own contract.
type Config struct {
	APLI      string
	HTTPDHome string
}

// FromEnv builds a Config from the APLI and HTTPD_HOME environment
// variables, the only place in the tree that reads them.
func FromEnv() Config {
	return Config{
		APLI:      os.Getenv("APLI"),
		HTTPDHome: os.Getenv("HTTPD_HOME"),
	}
}

// Collaborator raises alarms via the external CLI. A Collaborator built
// by New with an empty APLI only logs a warning per alarm, so components
// can construct one unconditionally and skip the "is alarming configured"
// branch. The zero value has no logger and is not usable.
type Collaborator struct {
	cfg Config
	log *logger.Logger
}

// New creates a Collaborator.
func New(cfg Config, log *logger.Logger) *Collaborator {
	return &Collaborator{cfg: cfg, log: log.WithComponent("alarm")}
}

// Raise invokes the alarm CLI with a severity tag and a human-readable
// message. It never returns an error to the caller: a failure to raise
// an alarm is itself only logged, since the calling component's event
// loop must continue regardless.
func (c *Collaborator) Raise(severity, message string) {
	if c.cfg.APLI == "" {
		c.log.Warn("alarm dropped, APLI not configured", logger.String("severity", severity), logger.String("message", message))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), raiseTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.cfg.APLI, severity, message)
	cmd.Env = append(os.Environ(), "HTTPD_HOME="+c.cfg.HTTPDHome)

	if err := cmd.Run(); err != nil {
		c.log.Error("alarm collaborator invocation failed",
			logger.Error(err),
			logger.String("severity", severity),
			logger.String("message", message))
	}
}
