// Package bbolt implements the ports.IdentificationStore interface using bbolt
// (embedded B+ tree). Each record kind gets its own top-level bucket holding
// JSON values under the match's own key. Mutations accumulate in a write-back
// cache and reach disk in one transaction on Flush: a crash between flushes
// cannot corrupt previously committed data.
//
// The store is driven from a single goroutine; methods are not safe for
// concurrent use.
package bbolt

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/corey/pepvalid/internal/ports"
	bolt "go.etcd.io/bbolt"
)

// Bucket keys
var (
	bucketSpectra  = []byte("spectra")
	bucketPeptides = []byte("peptides")
	bucketProteins = []byte("proteins")
	bucketParams   = []byte("params")
	bucketProject  = []byte("project")

	keyParameters = []byte("parameters")
	keyMetrics    = []byte("metrics")
	keyScoreMaps  = []byte("scoremaps")
	keyInfo       = []byte("info")
)

// defaultCacheLimit bounds the number of cached records. Clean entries are
// evicted past the limit; dirty entries always stay until Flush.
const defaultCacheLimit = 100000

// recordID addresses one cached record: its bucket plus its key.
type recordID struct {
	bucket string
	key    string
}

// Store implements ports.IdentificationStore backed by bbolt.
type Store struct {
	db *bolt.DB

	spectra  map[string]*ports.SpectrumMatch
	peptides map[string]*ports.PeptideMatch
	proteins map[string]*ports.ProteinMatch
	params   map[string]*ports.MatchParameter

	dirty      map[recordID]bool
	removed    map[recordID]bool
	cacheLimit int
}

// NewStore opens (or creates) a bbolt database at the given path.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketSpectra, bucketPeptides, bucketProteins, bucketParams, bucketProject} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	return &Store{
		db:         db,
		spectra:    make(map[string]*ports.SpectrumMatch),
		peptides:   make(map[string]*ports.PeptideMatch),
		proteins:   make(map[string]*ports.ProteinMatch),
		params:     make(map[string]*ports.MatchParameter),
		dirty:      make(map[recordID]bool),
		removed:    make(map[recordID]bool),
		cacheLimit: defaultCacheLimit,
	}, nil
}

// Close flushes pending writes and closes the underlying bbolt database.
func (s *Store) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	return s.db.Close()
}

// paramKey encodes a (kind, match key) pair as a string key for the params
// bucket. Format: "kind/key".
func paramKey(kind ports.MatchKind, key string) string {
	return fmt.Sprintf("%s/%s", kind, key)
}

func matchBucket(kind ports.MatchKind) []byte {
	switch kind {
	case ports.SpectrumKind:
		return bucketSpectra
	case ports.PeptideKind:
		return bucketPeptides
	case ports.ProteinKind:
		return bucketProteins
	}
	return nil
}

// get copies one value out of a bucket. Nil when the key is absent.
func (s *Store) get(bucket []byte, key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		// Copy bytes out of the transaction (bbolt slices are only valid within tx)
		if v := tx.Bucket(bucket).Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	return data, err
}

// listKeys merges the bucket's keys with unflushed cached keys, drops pending
// removals, and sorts.
func (s *Store) listKeys(bucket []byte, cached []string) ([]string, error) {
	set := make(map[string]bool, len(cached))
	for _, k := range cached {
		set[k] = true
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, _ []byte) error {
			set[string(k)] = true
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	for id := range s.removed {
		if id.bucket == string(bucket) {
			delete(set, id.key)
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// SpectrumKeys lists every stored spectrum match key, sorted.
func (s *Store) SpectrumKeys() ([]string, error) {
	cached := make([]string, 0, len(s.spectra))
	for k := range s.spectra {
		cached = append(cached, k)
	}
	return s.listKeys(bucketSpectra, cached)
}

// PeptideKeys lists every stored peptide match key, sorted.
func (s *Store) PeptideKeys() ([]string, error) {
	cached := make([]string, 0, len(s.peptides))
	for k := range s.peptides {
		cached = append(cached, k)
	}
	return s.listKeys(bucketPeptides, cached)
}

// ProteinKeys lists every stored protein match key, sorted.
func (s *Store) ProteinKeys() ([]string, error) {
	cached := make([]string, 0, len(s.proteins))
	for k := range s.proteins {
		cached = append(cached, k)
	}
	return s.listKeys(bucketProteins, cached)
}

// SpectrumMatch retrieves one spectrum match. Returns nil, nil if unknown.
func (s *Store) SpectrumMatch(key string) (*ports.SpectrumMatch, error) {
	if m, ok := s.spectra[key]; ok {
		return m, nil
	}
	data, err := s.get(bucketSpectra, key)
	if err != nil || data == nil {
		return nil, err
	}
	var m ports.SpectrumMatch
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal spectrum match %q: %w", key, err)
	}
	s.spectra[key] = &m
	s.evict()
	return &m, nil
}

// PeptideMatch retrieves one peptide match. Returns nil, nil if unknown.
func (s *Store) PeptideMatch(key string) (*ports.PeptideMatch, error) {
	if m, ok := s.peptides[key]; ok {
		return m, nil
	}
	data, err := s.get(bucketPeptides, key)
	if err != nil || data == nil {
		return nil, err
	}
	var m ports.PeptideMatch
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal peptide match %q: %w", key, err)
	}
	s.peptides[key] = &m
	s.evict()
	return &m, nil
}

// ProteinMatch retrieves one protein match. Returns nil, nil if unknown or
// removed since the last flush.
func (s *Store) ProteinMatch(key string) (*ports.ProteinMatch, error) {
	if s.removed[recordID{string(bucketProteins), key}] {
		return nil, nil
	}
	if m, ok := s.proteins[key]; ok {
		return m, nil
	}
	data, err := s.get(bucketProteins, key)
	if err != nil || data == nil {
		return nil, err
	}
	var m ports.ProteinMatch
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal protein match %q: %w", key, err)
	}
	s.proteins[key] = &m
	s.evict()
	return &m, nil
}

// AddSpectrumMatch inserts a new spectrum match, dirty until Flush.
func (s *Store) AddSpectrumMatch(m *ports.SpectrumMatch) error {
	if m == nil {
		return fmt.Errorf("nil spectrum match")
	}
	s.spectra[m.Key] = m
	s.dirty[recordID{string(bucketSpectra), m.Key}] = true
	s.evict()
	return nil
}

// AddPeptideMatch inserts a new peptide match, dirty until Flush.
func (s *Store) AddPeptideMatch(m *ports.PeptideMatch) error {
	if m == nil {
		return fmt.Errorf("nil peptide match")
	}
	s.peptides[m.Key] = m
	s.dirty[recordID{string(bucketPeptides), m.Key}] = true
	s.evict()
	return nil
}

// AddProteinMatch inserts a new protein match, dirty until Flush.
func (s *Store) AddProteinMatch(m *ports.ProteinMatch) error {
	if m == nil {
		return fmt.Errorf("nil protein match")
	}
	s.proteins[m.Key] = m
	id := recordID{string(bucketProteins), m.Key}
	delete(s.removed, id)
	s.dirty[id] = true
	s.evict()
	return nil
}

// RemoveProteinMatch deletes a protein group and its annotation.
// Idempotent: removing an unknown key is not an error.
func (s *Store) RemoveProteinMatch(key string) error {
	id := recordID{string(bucketProteins), key}
	delete(s.proteins, key)
	delete(s.dirty, id)
	s.removed[id] = true

	pk := paramKey(ports.ProteinKind, key)
	pid := recordID{string(bucketParams), pk}
	delete(s.params, pk)
	delete(s.dirty, pid)
	s.removed[pid] = true
	return nil
}

// Parameter retrieves the statistical annotation of a match.
// Returns nil, nil if none was attached yet.
func (s *Store) Parameter(kind ports.MatchKind, key string) (*ports.MatchParameter, error) {
	pk := paramKey(kind, key)
	if s.removed[recordID{string(bucketParams), pk}] {
		return nil, nil
	}
	if p, ok := s.params[pk]; ok {
		return p, nil
	}
	data, err := s.get(bucketParams, pk)
	if err != nil || data == nil {
		return nil, err
	}
	var p ports.MatchParameter
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal parameter %q: %w", pk, err)
	}
	s.params[pk] = &p
	s.evict()
	return &p, nil
}

// SetParameter attaches or replaces a match annotation, dirty until Flush.
func (s *Store) SetParameter(kind ports.MatchKind, key string, p *ports.MatchParameter) error {
	if p == nil {
		return fmt.Errorf("nil parameter")
	}
	pk := paramKey(kind, key)
	id := recordID{string(bucketParams), pk}
	s.params[pk] = p
	delete(s.removed, id)
	s.dirty[id] = true
	s.evict()
	return nil
}

// MarkChanged flags an in-memory match as modified so the next Flush rewrites
// it. The match must still be cached; fetch it through its getter before
// mutating.
func (s *Store) MarkChanged(kind ports.MatchKind, key string) {
	bucket := matchBucket(kind)
	if bucket == nil {
		return
	}
	var ok bool
	switch kind {
	case ports.SpectrumKind:
		_, ok = s.spectra[key]
	case ports.PeptideKind:
		_, ok = s.peptides[key]
	case ports.ProteinKind:
		_, ok = s.proteins[key]
	}
	if ok {
		s.dirty[recordID{string(bucket), key}] = true
	}
}

// SaveParameters persists the project processing settings.
func (s *Store) SaveParameters(p *ports.Parameters) error {
	if p == nil {
		return fmt.Errorf("nil parameters")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	return s.putProject(keyParameters, data)
}

// LoadParameters retrieves the project processing settings.
// Returns nil, nil for a fresh project.
func (s *Store) LoadParameters() (*ports.Parameters, error) {
	data, err := s.get(bucketProject, string(keyParameters))
	if err != nil || data == nil {
		return nil, err
	}
	var p ports.Parameters
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal parameters: %w", err)
	}
	return &p, nil
}

// SaveMetrics persists the dataset metrics collected by a run.
func (s *Store) SaveMetrics(m *ports.Metrics) error {
	if m == nil {
		return fmt.Errorf("nil metrics")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	return s.putProject(keyMetrics, data)
}

// LoadMetrics retrieves the dataset metrics. Returns nil, nil if no run has
// stored any.
func (s *Store) LoadMetrics() (*ports.Metrics, error) {
	data, err := s.get(bucketProject, string(keyMetrics))
	if err != nil || data == nil {
		return nil, err
	}
	var m ports.Metrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}
	return &m, nil
}

// SaveScoreMaps persists the serialized target/decoy map state.
func (s *Store) SaveScoreMaps(state *ports.ScoreMapsState) error {
	if state == nil {
		return fmt.Errorf("nil score maps")
	}
	data, err := json.Marshal(encodeScoreMaps(state))
	if err != nil {
		return fmt.Errorf("marshal score maps: %w", err)
	}
	return s.putProject(keyScoreMaps, data)
}

// LoadScoreMaps retrieves the serialized target/decoy map state.
// Returns nil, nil if no validation run has stored any.
func (s *Store) LoadScoreMaps() (*ports.ScoreMapsState, error) {
	data, err := s.get(bucketProject, string(keyScoreMaps))
	if err != nil || data == nil {
		return nil, err
	}
	var blob scoreMapsBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("unmarshal score maps: %w", err)
	}
	state, err := decodeScoreMaps(&blob)
	if err != nil {
		return nil, fmt.Errorf("decode score maps: %w", err)
	}
	return state, nil
}

// SaveProjectInfo persists the project descriptor.
func (s *Store) SaveProjectInfo(info *ports.ProjectInfo) error {
	if info == nil {
		return fmt.Errorf("nil project info")
	}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal project info: %w", err)
	}
	return s.putProject(keyInfo, data)
}

// LoadProjectInfo retrieves the project descriptor.
// Returns nil, nil for an uninitialized database.
func (s *Store) LoadProjectInfo() (*ports.ProjectInfo, error) {
	data, err := s.get(bucketProject, string(keyInfo))
	if err != nil || data == nil {
		return nil, err
	}
	var info ports.ProjectInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("unmarshal project info: %w", err)
	}
	return &info, nil
}

func (s *Store) putProject(key, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProject).Put(key, data)
	})
}

// Flush writes every dirty record and pending removal in one transaction.
func (s *Store) Flush() error {
	if len(s.dirty) == 0 && len(s.removed) == 0 {
		return nil
	}

	// Marshal outside the transaction.
	puts := make(map[recordID][]byte, len(s.dirty))
	for id := range s.dirty {
		data, err := s.marshalRecord(id)
		if err != nil {
			return err
		}
		puts[id] = data
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		for id, data := range puts {
			if err := tx.Bucket([]byte(id.bucket)).Put([]byte(id.key), data); err != nil {
				return err
			}
		}
		for id := range s.removed {
			if err := tx.Bucket([]byte(id.bucket)).Delete([]byte(id.key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	s.dirty = make(map[recordID]bool)
	s.removed = make(map[recordID]bool)
	return nil
}

func (s *Store) marshalRecord(id recordID) ([]byte, error) {
	var v interface{}
	switch id.bucket {
	case string(bucketSpectra):
		v = s.spectra[id.key]
	case string(bucketPeptides):
		v = s.peptides[id.key]
	case string(bucketProteins):
		v = s.proteins[id.key]
	case string(bucketParams):
		v = s.params[id.key]
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s %q: %w", id.bucket, id.key, err)
	}
	return data, nil
}

func (s *Store) cacheSize() int {
	return len(s.spectra) + len(s.peptides) + len(s.proteins) + len(s.params)
}

// evict drops clean cache entries once the cache exceeds its limit. Dirty
// entries stay until Flush, so a fully dirty cache may run over the limit.
func (s *Store) evict() {
	over := s.cacheSize() - s.cacheLimit
	if over <= 0 {
		return
	}
	for key := range s.params {
		if over <= 0 {
			return
		}
		if !s.dirty[recordID{string(bucketParams), key}] {
			delete(s.params, key)
			over--
		}
	}
	for key := range s.spectra {
		if over <= 0 {
			return
		}
		if !s.dirty[recordID{string(bucketSpectra), key}] {
			delete(s.spectra, key)
			over--
		}
	}
	for key := range s.peptides {
		if over <= 0 {
			return
		}
		if !s.dirty[recordID{string(bucketPeptides), key}] {
			delete(s.peptides, key)
			over--
		}
	}
	for key := range s.proteins {
		if over <= 0 {
			return
		}
		if !s.dirty[recordID{string(bucketProteins), key}] {
			delete(s.proteins, key)
			over--
		}
	}
}
