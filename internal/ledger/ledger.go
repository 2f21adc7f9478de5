package ledger

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rmpcap/screener-be/internal/registry"
)

// Entry is one jurisdiction awaiting endpoint research.
type Entry struct {
	Jurisdiction registry.Jurisdiction
	Lat          float64
	Lon          float64
	FirstSeen    time.Time
}

// Ledger is the durable, append-only log of jurisdictions the resolver
// could not serve. A jurisdiction is recorded once; later misses with
// fresher sample coordinates are dropped, so the file reads as a to-do
// list rather than a frequency count.
type Ledger struct {
	mu      sync.Mutex
	path    string
	logger  *slog.Logger
	entries []Entry
	seen    map[string]bool
}

// Open loads existing entries from path, creating the file's directory
// entry lazily on first record.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	l := &Ledger{
		path:   path,
		logger: logger,
		seen:   make(map[string]bool),
	}

	if err := l.load(); err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	return l, nil
}

// Record appends a jurisdiction with sample coordinates. Idempotent: a
// jurisdiction already present is never duplicated or overwritten.
func (l *Ledger) Record(j registry.Jurisdiction, lat, lon float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := j.Key()
	if l.seen[key] {
		return nil
	}

	entry := Entry{Jurisdiction: j, Lat: lat, Lon: lon, FirstSeen: time.Now()}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, formatEntry(entry)); err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	l.seen[key] = true
	l.entries = append(l.entries, entry)

	l.logger.Info("Recorded missing jurisdiction",
		slog.String("jurisdiction", j.String()),
		slog.Float64("lat", lat),
		slog.Float64("lon", lon),
	)

	return nil
}

// List returns recorded entries in first-seen order.
func (l *Ledger) List() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Line format: "Clay, MO | 39.264217, -94.577417 | 2026-08-31"
func formatEntry(e Entry) string {
	return fmt.Sprintf("%s | %.6f, %.6f | %s",
		e.Jurisdiction.String(), e.Lat, e.Lon, e.FirstSeen.Format("2006-01-02"))
}

func (l *Ledger) load() error {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		entry, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		key := entry.Jurisdiction.Key()
		if l.seen[key] {
			continue
		}
		l.seen[key] = true
		l.entries = append(l.entries, entry)
	}

	return scanner.Err()
}

func parseLine(line string) (Entry, bool) {
	parts := strings.Split(line, "|")
	if len(parts) < 2 {
		return Entry{}, false
	}

	var e Entry
	jurisdiction := strings.TrimSpace(parts[0])
	if jurisdiction == "" {
		return Entry{}, false
	}
	if county, state, found := strings.Cut(jurisdiction, ","); found {
		e.Jurisdiction = registry.Jurisdiction{State: strings.TrimSpace(state), County: strings.TrimSpace(county)}
	} else {
		e.Jurisdiction = registry.Jurisdiction{State: jurisdiction}
	}

	if _, err := fmt.Sscanf(strings.TrimSpace(parts[1]), "%f, %f", &e.Lat, &e.Lon); err != nil {
		return e, true // jurisdiction alone is enough to suppress duplicates
	}

	if len(parts) >= 3 {
		if ts, err := time.Parse("2006-01-02", strings.TrimSpace(parts[2])); err == nil {
			e.FirstSeen = ts
		}
	}

	return e, true
}
