// Package registry keeps a local, append-only audit log of every
// process boot's identity knobs (device id, random value, pid,
// hostname) in bbolt. It exists purely for operational introspection —
// "which device ids has this host used, and when" — and is never read
// back into the Cursor or dispenser: token uniqueness does not depend on
// anything persisted here, and a corrupt or missing registry file cannot
// affect id generation.
//
// Grounded on internal/db/checkpoint.go (CheckpointDB, the bbolt
// open/bucket/get/put shape).
package registry

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.etcd.io/bbolt"
)

const bootsBucket = "boots"

// BootRecord is one process start recorded into the registry.
type BootRecord struct {
	Hostname    string    `json:"hostname"`
	PID         int       `json:"pid"`
	DeviceID    uint8     `json:"device_id"`
	HasDeviceID bool      `json:"has_device_id"`
	RandomValue uint8     `json:"random_value"`
	StartedAt   time.Time `json:"started_at"`
}

// Registry is a bbolt-backed audit log of BootRecords.
type Registry struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the registry database at dbPath.
func Open(dbPath string) (*Registry, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("registry: open %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bootsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: create boots bucket: %w", err)
	}

	return &Registry{db: db}, nil
}

// RecordBoot appends a BootRecord for the current process. Records are
// keyed by their StartedAt timestamp, so bbolt's natural key-sorted order
// is chronological and ListRecent can walk it backwards, newest first.
func (r *Registry) RecordBoot(ctx context.Context, rec BootRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("registry: marshal boot record: %w", err)
	}

	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(rec.StartedAt.UnixNano()))

	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bootsBucket))
		return b.Put(key, data)
	})
}

// ListRecent returns up to limit of the most recently recorded boots,
// newest first.
func (r *Registry) ListRecent(ctx context.Context, limit int) ([]BootRecord, error) {
	var out []BootRecord

	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bootsBucket))
		c := b.Cursor()

		for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
			var rec BootRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("registry: unmarshal boot record: %w", err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// CurrentBootRecord builds a BootRecord describing this process right
// now, using the process id, hostname, and the resolved device/random
// identity knobs.
func CurrentBootRecord(deviceID uint8, hasDeviceID bool, randomValue uint8) BootRecord {
	hostname, _ := os.Hostname()
	return BootRecord{
		Hostname:    hostname,
		PID:         os.Getpid(),
		DeviceID:    deviceID,
		HasDeviceID: hasDeviceID,
		RandomValue: randomValue,
		StartedAt:   time.Now(),
	}
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Stats returns bbolt's own database statistics, for metrics.
func (r *Registry) Stats() bbolt.Stats {
	return r.db.Stats()
}
