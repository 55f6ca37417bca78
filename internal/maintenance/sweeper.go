package maintenance

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically clears abandoned upload workspaces. An upload that
// crashed between extraction and promotion leaves its temp directory behind;
// anything older than maxAge cannot still be in flight.
type Sweeper struct {
	tempRoot string
	maxAge   time.Duration
	log      *slog.Logger
	cron     *cron.Cron
}

func NewSweeper(tempRoot string, maxAge time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{tempRoot: tempRoot, maxAge: maxAge, log: log}
}

// Start schedules the sweep at the given interval and runs one immediately to
// clean up after a crashed previous process.
func (s *Sweeper) Start(every time.Duration) error {
	c := cron.New()
	spec := fmt.Sprintf("@every %s", every)
	if _, err := c.AddFunc(spec, s.Sweep); err != nil {
		return fmt.Errorf("schedule temp sweep: %w", err)
	}
	c.Start()
	s.cron = c

	go s.Sweep()
	s.log.Info("temp sweeper started", "every", every, "max_age", s.maxAge)
	return nil
}

func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep removes temp workspaces older than maxAge.
func (s *Sweeper) Sweep() {
	entries, err := os.ReadDir(s.tempRoot)
	if err != nil {
		s.log.Error("read temp root", "err", err)
		return
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.tempRoot, e.Name())
		if err := os.RemoveAll(path); err != nil {
			s.log.Error("remove stale upload", "path", path, "err", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("swept stale uploads", "removed", removed)
	}
}
