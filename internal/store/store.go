// Package store implements C1, the Report Store: a durable key-value+index
// over BugRecords, backed by go.etcd.io/bbolt. The bucket layout, ACID
// single-writer transactions, and sortable-composite-key conventions
// follow the example pack's BoltDB-backed agent storage layer, generalized
// from baseline/ledger records to BugRecord/AnomalyEvent records.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/trace2pass/core/internal/model"
)

const (
	// SchemaVersion is the current database schema version.
	SchemaVersion = "1"

	bucketBugRecords = "bug_records"
	bucketEvents     = "events"
	bucketMeta       = "meta"

	metaSchemaVersionKey = "schema_version"
)

// ErrNotFound is returned by Get when no BugRecord exists for a fingerprint.
var ErrNotFound = errors.New("store: record not found")

// Store is C1's concrete implementation.
type Store struct {
	db     *bolt.DB
	log    *zap.Logger
	weights map[model.CheckKind]float64
}

// Open opens (or creates) the bbolt database at path, initializing all
// required buckets and verifying schema compatibility in a single
// transaction.
func Open(path string, weights map[model.CheckKind]float64, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if weights == nil {
		weights = model.SeverityWeights
	}

	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:      5 * time.Second,
		FreelistType: bolt.FreelistArrayType,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt.Open(%q): %w", path, err)
	}

	s := &Store{db: bdb, log: log, weights: weights}

	if err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketBugRecords, bucketEvents, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("CreateBucketIfNotExists(%q): %w", name, err)
			}
		}
		meta := tx.Bucket([]byte(bucketMeta))
		if meta.Get([]byte(metaSchemaVersionKey)) == nil {
			if err := meta.Put([]byte(metaSchemaVersionKey), []byte(SchemaVersion)); err != nil {
				return fmt.Errorf("write schema_version: %w", err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("store initialisation failed: %w", err)
	}

	if err := s.checkSchemaVersion(); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) checkSchemaVersion() error {
	return s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		v := meta.Get([]byte(metaSchemaVersionKey))
		if string(v) != SchemaVersion {
			return fmt.Errorf("schema version mismatch: database has %q, store requires %q", string(v), SchemaVersion)
		}
		return nil
	})
}

// Close closes the underlying bbolt file.
func (s *Store) Close() error {
	return s.db.Close()
}

func recordKey(fp model.Fingerprint) []byte {
	return []byte(fp.String())
}

// eventKey builds a sortable key: RFC3339Nano timestamp + "_" + ReportID,
// so lexicographic order matches submission order.
func eventKey(e model.AnomalyEvent) []byte {
	return []byte(fmt.Sprintf("%s_%s", e.Timestamp.UTC().Format(time.RFC3339Nano), e.ReportID))
}

// Submit computes e's fingerprint and, inside a single ACID transaction,
// either creates a new BugRecord (count=1, e frozen as canonical) or
// increments the existing one's count and last-seen. The append to the
// events audit bucket happens in the same transaction, so the "create or
// increment" sequence is the only critical section bbolt's single-writer
// model needs to serialize (§4.1).
//
// Submission is append-idempotent: resubmitting an event with a
// ReportID already present in the events bucket is a no-op beyond
// returning the record's current status. The returned bool reports
// whether this call created the BugRecord (true) or counted a
// duplicate/repeat occurrence against an existing one (false), so
// callers exposing an HTTP-style status can distinguish 201 from 200.
func (s *Store) Submit(e model.AnomalyEvent) (model.Status, bool, error) {
	if err := e.Validate(); err != nil {
		return "", false, err
	}

	fp := model.ComputeFingerprint(e)
	var status model.Status
	var created bool

	err := s.db.Update(func(tx *bolt.Tx) error {
		events := tx.Bucket([]byte(bucketEvents))
		records := tx.Bucket([]byte(bucketBugRecords))

		dupKey := []byte("reportid_" + e.ReportID)
		if e.ReportID != "" && events.Get(dupKey) != nil {
			rec, err := getRecordTx(records, fp)
			if err != nil {
				return err
			}
			status = rec.Status
			return nil
		}

		rec, err := getRecordTx(records, fp)
		if errors.Is(err, ErrNotFound) {
			rec = &model.BugRecord{
				Fingerprint: fp,
				Canonical:   e,
				Count:       1,
				FirstSeen:   e.Timestamp,
				LastSeen:    e.Timestamp,
				Status:      model.StatusNew,
			}
			created = true
		} else if err != nil {
			return err
		} else {
			rec.Count++
			if e.Timestamp.After(rec.LastSeen) {
				rec.LastSeen = e.Timestamp
			}
		}
		status = rec.Status

		if err := putRecordTx(records, rec); err != nil {
			return err
		}

		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("submit event marshal: %w", err)
		}
		if err := events.Put(eventKey(e), data); err != nil {
			return fmt.Errorf("submit event put: %w", err)
		}
		if e.ReportID != "" {
			if err := events.Put(dupKey, []byte{1}); err != nil {
				return fmt.Errorf("submit dedup marker put: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return status, created, nil
}

// Get returns the full BugRecord for fingerprint, or ErrNotFound.
func (s *Store) Get(fp model.Fingerprint) (*model.BugRecord, error) {
	var rec *model.BugRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		records := tx.Bucket([]byte(bucketBugRecords))
		r, err := getRecordTx(records, fp)
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Queue returns up to limit records with status ∈ {new, triaged},
// ordered by descending priority (§4.1). A corrupt record is skipped and
// logged rather than aborting the whole scan (§5 failure containment).
func (s *Store) Queue(limit int) ([]*model.BugRecord, error) {
	now := time.Now().UTC()
	var candidates []*model.BugRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		records := tx.Bucket([]byte(bucketBugRecords))
		return records.ForEach(func(k, v []byte) error {
			var rec model.BugRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				s.log.Warn("queue: skipping corrupt record", zap.String("key", string(k)), zap.Error(err))
				return nil
			}
			if rec.Queueable() {
				candidates = append(candidates, &rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority(now, s.weights) > candidates[j].Priority(now, s.weights)
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// UpdateStatus transactionally transitions fingerprint's status,
// enforcing (I2) via model.Status.CanTransition, and optionally attaches
// a Diagnosis. Applying the same (status, diagnosis) pair twice is a
// no-op the second time (idempotent per §8). This is the path C3-C5
// drive automatically; it can never reach false_positive or leave a
// terminal status, by design.
func (s *Store) UpdateStatus(fp model.Fingerprint, next model.Status, diagnosis *model.Diagnosis) error {
	return s.updateStatus(fp, next, diagnosis, model.Status.CanTransition)
}

// UpdateStatusOperator transitions fingerprint's status via an explicit
// operator action (the PATCH /reports/{fingerprint} path), enforcing
// (I2) via model.Status.CanOperatorTransition instead of the automatic
// gate UpdateStatus uses. It is the only path that can mark a record
// false_positive or reopen a terminal one.
func (s *Store) UpdateStatusOperator(fp model.Fingerprint, next model.Status, diagnosis *model.Diagnosis) error {
	return s.updateStatus(fp, next, diagnosis, model.Status.CanOperatorTransition)
}

func (s *Store) updateStatus(fp model.Fingerprint, next model.Status, diagnosis *model.Diagnosis, canTransition func(model.Status, model.Status) bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		records := tx.Bucket([]byte(bucketBugRecords))
		rec, err := getRecordTx(records, fp)
		if err != nil {
			return err
		}

		if rec.Status == next {
			if diagnosis != nil {
				rec.Diagnosis = diagnosis
			}
			return putRecordTx(records, rec)
		}

		if !canTransition(rec.Status, next) {
			return fmt.Errorf("store: illegal status transition %s -> %s for %s", rec.Status, next, fp)
		}
		rec.Status = next
		if diagnosis != nil {
			rec.Diagnosis = diagnosis
		}
		return putRecordTx(records, rec)
	})
}

// Stats aggregates counters per check-kind, per status, per compiler.
type Stats struct {
	TotalRecords int                    `json:"total_records"`
	ByCheckKind  map[model.CheckKind]int `json:"by_check_kind"`
	ByStatus     map[model.Status]int    `json:"by_status"`
	ByCompiler   map[string]int          `json:"by_compiler"`
}

// Stats computes §4.1's aggregate counters with a single read-only scan
// over bug_records, bounded by distinct-bug cardinality rather than raw
// event volume.
func (s *Store) Stats() (Stats, error) {
	st := Stats{
		ByCheckKind: map[model.CheckKind]int{},
		ByStatus:    map[model.Status]int{},
		ByCompiler:  map[string]int{},
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		records := tx.Bucket([]byte(bucketBugRecords))
		return records.ForEach(func(k, v []byte) error {
			var rec model.BugRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				s.log.Warn("stats: skipping corrupt record", zap.String("key", string(k)), zap.Error(err))
				return nil
			}
			st.TotalRecords++
			st.ByCheckKind[rec.Canonical.CheckType]++
			st.ByStatus[rec.Status]++
			st.ByCompiler[rec.Canonical.Compiler.Name+" "+rec.Canonical.Compiler.Version]++
			return nil
		})
	})
	return st, err
}

func getRecordTx(records *bolt.Bucket, fp model.Fingerprint) (*model.BugRecord, error) {
	data := records.Get(recordKey(fp))
	if data == nil {
		return nil, ErrNotFound
	}
	var rec model.BugRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt record %s: %w", fp, err)
	}
	return &rec, nil
}

func putRecordTx(records *bolt.Bucket, rec *model.BugRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return records.Put(recordKey(rec.Fingerprint), data)
}
