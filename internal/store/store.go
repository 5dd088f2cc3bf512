// Package store implements the Anchor Store (spec.md §4.4, §6): a
// directory-based, content-addressed persistent mapping of dataset+column
// to Anchor. Reads bring the whole index into memory lazily; writes
// append-and-rewrite the affected shard atomically (temp file + rename).
//
// Grounded on the teacher's internal/dataset/storage.go and
// internal/session/storage.go (LocalFileStorage-style file-backed
// persistence), adapted to this module's YAML shard/index format — see
// DESIGN.md for why gopkg.in/yaml.v3 was chosen (precedent in
// other_examples, not the teacher's own direct import).
package store

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"sac/domain/anchor"
	"sac/domain/core"
	"sac/internal/errs"
)

const anchorIDPrefix = "sca_"

// Store is a single directory of index.yml plus <xx>.yml shard files.
// Single-writer per directory: an internal mutex serializes writes. Readers
// take a snapshot of the index; cross-process coordination is the caller's
// responsibility (spec.md §4.4 Concurrency).
type Store struct {
	dir string
	mu  sync.Mutex

	indexMu sync.RWMutex
	index   map[string][]string // dataset -> anchor ids; empty until first Load
	loaded  bool
}

// New opens (without yet reading) a Store rooted at dir. dir is created on
// first write if it does not exist.
func New(dir string) *Store {
	return &Store{dir: dir, index: map[string][]string{}}
}

func (s *Store) indexPath() string { return filepath.Join(s.dir, "index.yml") }

func shardKey(id core.AnchorID) (string, error) {
	raw := strings.TrimPrefix(id.String(), anchorIDPrefix)
	if len(raw) < 2 {
		return "", errs.Invariant("anchor id %q too short for shard key", id)
	}
	return raw[:2], nil
}

func (s *Store) shardPath(key string) string {
	return filepath.Join(s.dir, key+".yml")
}

type indexFile struct {
	Datasets map[string][]string `yaml:"datasets"`
}

type shardRecord struct {
	Dataset     string   `yaml:"dataset"`
	ColumnName  string   `yaml:"column_name"`
	AnchorID    string   `yaml:"anchor_id"`
	Fingerprint string   `yaml:"fingerprint"`
	FirstSeen   string   `yaml:"first_seen"`
	LastSeen    string   `yaml:"last_seen"`
	MappedCID   string   `yaml:"mapped_cid,omitempty"`
	Confidence  *float64 `yaml:"confidence,omitempty"`
	State       string   `yaml:"state,omitempty"`
	StateSince  *time.Time `yaml:"state_since,omitempty"`
}

type shardFile struct {
	Anchors []shardRecord `yaml:"anchors"`
}

// ensureIndexLoaded brings index.yml into memory. On a missing or
// corrupted index, it falls back to rebuilding the index by scanning shard
// files (spec.md §7: "On read, fall back to rebuilding the index by
// scanning shards").
func (s *Store) ensureIndexLoaded() error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			rebuilt, rerr := s.rebuildIndexFromShards()
			if rerr != nil {
				return rerr
			}
			s.index = rebuilt
			s.loaded = true
			return nil
		}
		return errs.Wrapf(errs.CodeStore, err, "reading anchor index %s", s.indexPath())
	}

	var idx indexFile
	if err := yaml.Unmarshal(data, &idx); err != nil {
		rebuilt, rerr := s.rebuildIndexFromShards()
		if rerr != nil {
			return errs.Wrapf(errs.CodeStore, err, "corrupted anchor index, rebuild also failed")
		}
		s.index = rebuilt
		s.loaded = true
		return nil
	}

	if idx.Datasets == nil {
		idx.Datasets = map[string][]string{}
	}
	s.index = idx.Datasets
	s.loaded = true
	return nil
}

func (s *Store) rebuildIndexFromShards() (map[string][]string, error) {
	out := map[string][]string{}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, errs.Wrapf(errs.CodeStore, err, "scanning store directory %s", s.dir)
	}
	for _, e := range entries {
		if e.IsDir() || e.Name() == "index.yml" || !strings.HasSuffix(e.Name(), ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		var sf shardFile
		if err := yaml.Unmarshal(data, &sf); err != nil {
			continue
		}
		for _, rec := range sf.Anchors {
			out[rec.Dataset] = append(out[rec.Dataset], rec.AnchorID)
		}
	}
	return out, nil
}

func (s *Store) persistIndexLocked() error {
	idx := indexFile{Datasets: s.index}
	data, err := yaml.Marshal(idx)
	if err != nil {
		return errs.Wrapf(errs.CodeStore, err, "marshaling anchor index")
	}
	return atomicWrite(s.indexPath(), data)
}

// atomicWrite writes data to path via a temp file in the same directory
// followed by rename, so readers never observe a partially-written file
// (spec.md §4.4, §9).
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrapf(errs.CodeStore, err, "creating directory %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errs.Wrapf(errs.CodeStore, err, "creating temp file in %s", dir)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.Wrapf(errs.CodeStore, err, "writing temp file %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errs.Wrapf(errs.CodeStore, err, "closing temp file %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errs.Wrapf(errs.CodeStore, err, "renaming temp file to %s", path)
	}
	return nil
}

func (s *Store) readShard(key string) (shardFile, error) {
	data, err := os.ReadFile(s.shardPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return shardFile{}, nil
		}
		return shardFile{}, errs.Wrapf(errs.CodeStore, err, "reading shard %s", key)
	}
	var sf shardFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return shardFile{}, errs.Wrapf(errs.CodeStore, err, "corrupted shard %s", key)
	}
	return sf, nil
}

func toRecord(a anchor.Anchor) shardRecord {
	rec := shardRecord{
		Dataset:     a.Dataset,
		ColumnName:  a.ColumnName,
		AnchorID:    a.ID.String(),
		Fingerprint: a.Fingerprint,
		FirstSeen:   string(a.FirstSeen),
		LastSeen:    string(a.LastSeen),
		State:       string(a.State),
	}
	if a.HasConcept {
		rec.MappedCID = a.MappedConcept
	}
	if a.HasConfidence {
		c := a.Confidence
		rec.Confidence = &c
	}
	if !a.StateSince.IsZero() {
		t := a.StateSince.Time()
		rec.StateSince = &t
	}
	return rec
}

func fromRecord(rec shardRecord) anchor.Anchor {
	a := anchor.Anchor{
		ID:          core.AnchorID(rec.AnchorID),
		Dataset:     rec.Dataset,
		ColumnName:  rec.ColumnName,
		Fingerprint: rec.Fingerprint,
		FirstSeen:   core.Day(rec.FirstSeen),
		LastSeen:    core.Day(rec.LastSeen),
		State:       anchor.State(rec.State),
	}
	if rec.MappedCID != "" {
		a.MappedConcept = rec.MappedCID
		a.HasConcept = true
	}
	if rec.Confidence != nil {
		a.Confidence = *rec.Confidence
		a.HasConfidence = true
	}
	if rec.StateSince != nil {
		a.StateSince = core.NewTimestamp(*rec.StateSince)
	}
	return a
}

// Save persists an anchor, atomically rewriting its shard and then the
// index, to which a previously unseen anchor id is first added under its
// dataset (spec.md §4.4).
func (s *Store) Save(a anchor.Anchor) error {
	if a.ID.IsEmpty() {
		return errs.Input("cannot save anchor with empty id")
	}
	if err := s.ensureIndexLoaded(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := shardKey(a.ID)
	if err != nil {
		return err
	}

	sf, err := s.readShard(key)
	if err != nil {
		return err
	}

	replaced := false
	for i, rec := range sf.Anchors {
		if rec.AnchorID == a.ID.String() {
			sf.Anchors[i] = toRecord(a)
			replaced = true
			break
		}
	}
	if !replaced {
		sf.Anchors = append(sf.Anchors, toRecord(a))
	}

	data, err := yaml.Marshal(sf)
	if err != nil {
		return errs.Wrapf(errs.CodeStore, err, "marshaling shard %s", key)
	}
	if err := atomicWrite(s.shardPath(key), data); err != nil {
		return err
	}

	s.indexMu.Lock()
	ids := s.index[a.Dataset]
	found := false
	for _, id := range ids {
		if id == a.ID.String() {
			found = true
			break
		}
	}
	if !found {
		s.index[a.Dataset] = append(ids, a.ID.String())
	}
	s.indexMu.Unlock()

	return s.persistIndexLocked()
}

// Get returns the anchor with the given id, or ok=false if not found.
func (s *Store) Get(id core.AnchorID) (anchor.Anchor, bool, error) {
	if err := s.ensureIndexLoaded(); err != nil {
		return anchor.Anchor{}, false, err
	}
	key, err := shardKey(id)
	if err != nil {
		return anchor.Anchor{}, false, err
	}

	s.mu.Lock()
	sf, err := s.readShard(key)
	s.mu.Unlock()
	if err != nil {
		return anchor.Anchor{}, false, err
	}

	for _, rec := range sf.Anchors {
		if rec.AnchorID == id.String() {
			return fromRecord(rec), true, nil
		}
	}
	return anchor.Anchor{}, false, nil
}

// AnchorsForDataset returns every anchor registered for dataset in the
// index, resolving each through its shard. An anchor listed in the index
// but missing from its shard is an invariant violation (spec.md §7) and
// aborts the call.
func (s *Store) AnchorsForDataset(dataset string) ([]anchor.Anchor, error) {
	if err := s.ensureIndexLoaded(); err != nil {
		return nil, err
	}
	s.indexMu.RLock()
	ids := append([]string(nil), s.index[dataset]...)
	s.indexMu.RUnlock()

	out := make([]anchor.Anchor, 0, len(ids))
	for _, idStr := range ids {
		a, ok, err := s.Get(core.AnchorID(idStr))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.Invariant("anchor %s listed in index for dataset %s but missing from store", idStr, dataset)
		}
		out = append(out, a)
	}
	return out, nil
}

// FindByPattern returns every anchor across every dataset whose column
// name matches the given regular expression (spec.md §4.4).
func (s *Store) FindByPattern(columnNameRegex string) ([]anchor.Anchor, error) {
	re, err := regexp.Compile(columnNameRegex)
	if err != nil {
		return nil, errs.Wrapf(errs.CodeInput, err, "invalid column name pattern %q", columnNameRegex)
	}
	if err := s.ensureIndexLoaded(); err != nil {
		return nil, err
	}

	s.indexMu.RLock()
	datasets := make([]string, 0, len(s.index))
	for d := range s.index {
		datasets = append(datasets, d)
	}
	s.indexMu.RUnlock()
	sort.Strings(datasets)

	var out []anchor.Anchor
	for _, d := range datasets {
		anchors, err := s.AnchorsForDataset(d)
		if err != nil {
			return nil, err
		}
		for _, a := range anchors {
			if re.MatchString(a.ColumnName) {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

// Delete removes an anchor from its shard and the index, returning whether
// it was present.
func (s *Store) Delete(id core.AnchorID) (bool, error) {
	if err := s.ensureIndexLoaded(); err != nil {
		return false, err
	}
	key, err := shardKey(id)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sf, err := s.readShard(key)
	if err != nil {
		return false, err
	}

	idx := -1
	var dataset string
	for i, rec := range sf.Anchors {
		if rec.AnchorID == id.String() {
			idx = i
			dataset = rec.Dataset
			break
		}
	}
	if idx < 0 {
		return false, nil
	}
	sf.Anchors = append(sf.Anchors[:idx], sf.Anchors[idx+1:]...)

	data, err := yaml.Marshal(sf)
	if err != nil {
		return false, errs.Wrapf(errs.CodeStore, err, "marshaling shard %s", key)
	}
	if err := atomicWrite(s.shardPath(key), data); err != nil {
		return false, err
	}

	s.indexMu.Lock()
	ids := s.index[dataset]
	for i, idStr := range ids {
		if idStr == id.String() {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	s.index[dataset] = ids
	s.indexMu.Unlock()

	if err := s.persistIndexLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// Stats is the Anchor Store's cheap aggregate view (SPEC_FULL.md
// Supplemental Features #4: spec.md §4.4 names stats() but leaves its
// shape undefined).
type Stats struct {
	TotalAnchors int
	Datasets     int
	Shards       int
	ByState      map[string]int
}

// Stats computes TotalAnchors/Datasets/Shards/ByState across the store.
func (s *Store) Stats() (Stats, error) {
	if err := s.ensureIndexLoaded(); err != nil {
		return Stats{}, err
	}

	s.indexMu.RLock()
	datasets := len(s.index)
	datasetNames := make([]string, 0, len(s.index))
	for d := range s.index {
		datasetNames = append(datasetNames, d)
	}
	s.indexMu.RUnlock()

	byState := map[string]int{}
	total := 0
	for _, d := range datasetNames {
		anchors, err := s.AnchorsForDataset(d)
		if err != nil {
			return Stats{}, err
		}
		for _, a := range anchors {
			total++
			byState[string(a.State)]++
		}
	}

	entries, err := os.ReadDir(s.dir)
	shards := 0
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".yml") && e.Name() != "index.yml" {
				shards++
			}
		}
	} else if !os.IsNotExist(err) {
		return Stats{}, errs.Wrapf(errs.CodeStore, err, "reading store directory %s", s.dir)
	}

	return Stats{TotalAnchors: total, Datasets: datasets, Shards: shards, ByState: byState}, nil
}
