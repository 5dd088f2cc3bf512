// Package evidencelog implements the Evidence Log (spec.md §4.7, §6): an
// append-only, line-delimited JSON journal of typed events about anchors.
//
// Grounded on the teacher's internal/session/storage.go and
// internal/dataset/storage.go (append-to-file persistence patterns),
// adapted to the line-delimited canonical-JSON format spec.md §6 requires,
// with corrupted-line skip-and-continue behavior per spec.md §7.
package evidencelog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"sac/domain/core"
	"sac/domain/evidence"
	"sac/internal/errs"
	"sac/internal/log"
)

// Log is an append-only evidence journal backed by a single file.
type Log struct {
	path   string
	logger *log.Logger

	mu      sync.Mutex
	loaded  bool
	records []evidence.Record
}

// New opens a Log backed by path. The file is created on first Append if
// it does not exist.
func New(path string, logger *log.Logger) *Log {
	if logger == nil {
		logger = log.Noop()
	}
	return &Log{path: path, logger: logger}
}

// wireRecord is the canonical on-disk JSON shape: keys in fixed order id,
// timestamp, kind, source, data, metadata? (spec.md §6).
type wireRecord struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Kind      string         `json:"kind"`
	Source    string         `json:"source"`
	Data      map[string]any `json:"data"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func toWire(r evidence.Record) wireRecord {
	data := map[string]any{}
	for k, v := range r.Details {
		data[k] = v
	}
	data["anchor_id"] = r.AnchorID.String()
	if r.HasConfidence {
		data["confidence"] = r.Confidence
	}
	return wireRecord{
		ID:        r.ID.String(),
		Timestamp: r.Timestamp.String(),
		Kind:      string(r.Kind),
		Source:    string(r.Source),
		Data:      data,
		Metadata:  r.Metadata,
	}
}

func fromWire(w wireRecord) (evidence.Record, error) {
	ts, err := time.Parse("2006-01-02T15:04:05.000Z07:00", w.Timestamp)
	if err != nil {
		return evidence.Record{}, err
	}
	r := evidence.Record{
		ID:        core.ID(w.ID),
		Timestamp: core.NewTimestamp(ts),
		Kind:      evidence.Kind(w.Kind),
		Source:    evidence.Source(w.Source),
		Details:   map[string]any{},
		Metadata:  w.Metadata,
	}
	for k, v := range w.Data {
		switch k {
		case "anchor_id":
			if s, ok := v.(string); ok {
				r.AnchorID = core.AnchorID(s)
			}
		case "confidence":
			if f, ok := v.(float64); ok {
				r.Confidence = f
				r.HasConfidence = true
			}
		default:
			r.Details[k] = v
		}
	}
	return r, nil
}

// Append writes one canonical-JSON line to the log and returns the record
// that was written, stamping id and timestamp. Appends are serialized by
// an internal mutex (spec.md §5).
func (l *Log) Append(anchorID core.AnchorID, kind evidence.Kind, source evidence.Source, confidence *float64, details map[string]any) (evidence.Record, error) {
	if anchorID.IsEmpty() {
		return evidence.Record{}, errs.Input("cannot append evidence with empty anchor id")
	}

	rec := evidence.New(anchorID, kind, source, core.Now())
	if confidence != nil {
		rec = rec.WithConfidence(*confidence)
	}
	for k, v := range details {
		rec = rec.WithDetail(k, v)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLoadedLocked(); err != nil {
		return evidence.Record{}, err
	}

	w := toWire(rec)
	line, err := json.Marshal(w)
	if err != nil {
		return evidence.Record{}, errs.Wrapf(errs.CodeStore, err, "marshaling evidence record")
	}

	if err := l.appendLineLocked(line); err != nil {
		return evidence.Record{}, err
	}

	l.records = append(l.records, rec)
	return rec, nil
}

func (l *Log) appendLineLocked(line []byte) error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrapf(errs.CodeStore, err, "creating directory for evidence log")
		}
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.Wrapf(errs.CodeStore, err, "opening evidence log %s", l.path)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return errs.Wrapf(errs.CodeStore, err, "appending to evidence log %s", l.path)
	}
	return nil
}

// LoadStats reports how much of the log was readable, per SPEC_FULL's
// Supplemental Feature #2 ("corruption counters").
type LoadStats struct {
	LinesRead     int
	LinesSkipped  int
	LastSkipError string
}

func (l *Log) ensureLoadedLocked() error {
	if l.loaded {
		return nil
	}
	_, stats, err := l.loadFromDiskLocked()
	if err != nil {
		return err
	}
	_ = stats
	l.loaded = true
	return nil
}

func (l *Log) loadFromDiskLocked() ([]evidence.Record, LoadStats, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			l.records = nil
			return nil, LoadStats{}, nil
		}
		return nil, LoadStats{}, errs.Wrapf(errs.CodeStore, err, "opening evidence log %s", l.path)
	}
	defer f.Close()

	var stats LoadStats
	var records []evidence.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		stats.LinesRead++
		var w wireRecord
		if err := json.Unmarshal(line, &w); err != nil {
			stats.LinesSkipped++
			stats.LastSkipError = err.Error()
			l.logger.Warn("evidence log: skipping corrupted line: %v", err)
			continue
		}
		rec, err := fromWire(w)
		if err != nil {
			stats.LinesSkipped++
			stats.LastSkipError = err.Error()
			l.logger.Warn("evidence log: skipping record with bad timestamp: %v", err)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, errs.Wrapf(errs.CodeStore, err, "scanning evidence log %s", l.path)
	}

	l.records = records
	return records, stats, nil
}

// Load reads the entire log from disk (if not already cached), returning
// the records read and LoadStats describing corruption encountered
// (spec.md §4.7, §7: "parse errors on individual lines... must be logged
// and skipped, never abort the load").
func (l *Log) Load() ([]evidence.Record, LoadStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadFromDiskLocked()
}

// Query is the filter set accepted by Query.
type Query struct {
	AnchorID core.AnchorID
	HasAnchorID bool
	Kind     evidence.Kind
	HasKind  bool
	Source   evidence.Source
	HasSource bool
	From     core.Timestamp
	HasFrom  bool
	To       core.Timestamp
	HasTo    bool
	Limit    int
}

// Query returns records matching q, sorted by timestamp ascending
// (spec.md §4.7: "query results are sorted by timestamp ascending in
// memory").
func (l *Log) Query(q Query) ([]evidence.Record, error) {
	l.mu.Lock()
	if err := l.ensureLoadedLocked(); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	snapshot := append([]evidence.Record(nil), l.records...)
	l.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Timestamp.Before(snapshot[j].Timestamp) })

	var out []evidence.Record
	for _, r := range snapshot {
		if q.HasAnchorID && r.AnchorID != q.AnchorID {
			continue
		}
		if q.HasKind && r.Kind != q.Kind {
			continue
		}
		if q.HasSource && r.Source != q.Source {
			continue
		}
		if q.HasFrom && r.Timestamp.Before(q.From) {
			continue
		}
		if q.HasTo && r.Timestamp.After(q.To) {
			continue
		}
		out = append(out, r)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

// Recent returns every record appended within the last `hours` hours.
func (l *Log) Recent(hours float64) ([]evidence.Record, error) {
	cutoff := core.NewTimestamp(time.Now().Add(-time.Duration(hours * float64(time.Hour))))
	return l.Query(Query{From: cutoff, HasFrom: true})
}

// Stats summarizes the log (spec.md §4.7).
type Stats struct {
	Total    int
	ByKind   map[string]int
	BySource map[string]int
	Oldest   core.Timestamp
	HasOldest bool
	Newest   core.Timestamp
	HasNewest bool
}

// Stats computes aggregate counts over the whole log.
func (l *Log) Stats() (Stats, error) {
	records, err := l.Query(Query{})
	if err != nil {
		return Stats{}, err
	}
	s := Stats{ByKind: map[string]int{}, BySource: map[string]int{}}
	for _, r := range records {
		s.Total++
		s.ByKind[string(r.Kind)]++
		s.BySource[string(r.Source)]++
		if !s.HasOldest || r.Timestamp.Before(s.Oldest) {
			s.Oldest = r.Timestamp
			s.HasOldest = true
		}
		if !s.HasNewest || r.Timestamp.After(s.Newest) {
			s.Newest = r.Timestamp
			s.HasNewest = true
		}
	}
	return s, nil
}

// Replay returns every record from timestamp `from` onward (or the whole
// log if from is zero), in time order. This is the raw chronological feed
// the Replay Engine folds over; see internal/replay.
func (l *Log) Replay(from core.Timestamp) ([]evidence.Record, error) {
	if from.IsZero() {
		return l.Query(Query{})
	}
	return l.Query(Query{From: from, HasFrom: true})
}
