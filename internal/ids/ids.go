// Package ids generates the human-readable identifiers used across the
// pipeline. Formats stay readable (VER-<epoch>-..., CASE-<date>-...) but
// uniqueness comes from a per-process monotonic counter, not from the
// timestamp alone, so concurrent callers can never collide.
package ids

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Generator hands out verification, case and queue-item ids. Safe for
// concurrent use.
type Generator struct {
	mu      sync.Mutex
	seq     uint64
	caseDay string
	caseSeq int

	now func() time.Time
}

func NewGenerator() *Generator {
	// The counter starts at a random offset so a process restarted within
	// the same epoch second cannot re-issue an id it already handed out.
	return &Generator{seq: rand.Uint64N(1_000_000), now: time.Now}
}

// Verification returns the next record id, e.g. VER-1717171717-000042.
func (g *Generator) Verification() string {
	g.mu.Lock()
	g.seq++
	n := g.seq
	now := g.now()
	g.mu.Unlock()
	return fmt.Sprintf("VER-%d-%06d", now.Unix(), n)
}

// Case returns the next case id scoped by date, e.g. CASE-20250614-003.
// The per-day counter resets at midnight UTC.
func (g *Generator) Case() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	day := g.now().UTC().Format("20060102")
	if day != g.caseDay {
		g.caseDay = day
		g.caseSeq = 0
	}
	g.caseSeq++
	return fmt.Sprintf("CASE-%s-%03d", day, g.caseSeq)
}

// QueueItem returns an opaque moderation queue item id.
func (g *Generator) QueueItem() string {
	return "MQ-" + uuid.NewString()
}
