package deps

import (
	"time"

	"github.com/MrSnakeDoc/staywatch/internal/logger"
	"github.com/MrSnakeDoc/staywatch/internal/pipeline"
	"github.com/MrSnakeDoc/staywatch/internal/utils"
)

// Runner is the part of the scheduler the handlers need.
type Runner interface {
	Trigger() bool
	Last() (*pipeline.Report, error)
	Ready() bool
	Running() bool
	NextRun() time.Time
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedHosts []string         // Host headers allowed to reach the operator endpoints
	AllowedIPs   *utils.IPMatcher // callers allowed to reach the operator endpoints, empty = all
	TrustProxy   bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	Runner       Runner
	Searches     []string // configured search names, in config order
}

// Now returns the injected clock or time.Now.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
