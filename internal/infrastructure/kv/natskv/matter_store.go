// Package natskv stores matters in a JetStream key-value bucket. Source
// payloads live in an object store under the matter's key and their content
// hash, so one KV put swaps the whole record and readers never see a mix of
// two intakes. Identical bytes uploaded to different matters are stored
// separately and share neither chunks nor expiry.
package natskv

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
	natsqueue "github.com/kirillkom/filing-assembler/internal/infrastructure/queue/nats"
	"github.com/kirillkom/filing-assembler/internal/infrastructure/resilience"
)

const (
	DefaultRecordBucket  = "filing_matters"
	DefaultPayloadBucket = "filing_payloads"
)

type Config struct {
	RecordBucket  string
	PayloadBucket string
	TTL           time.Duration
}

type MatterStore struct {
	records  jetstream.KeyValue
	payloads jetstream.ObjectStore
	executor *resilience.Executor
}

// storedRecord is the KV value. Payload bytes are replaced by object names.
type storedRecord struct {
	Matter         domain.Matter `json:"matter"`
	PayloadObjects []string      `json:"payload_objects"`
}

var classify = resilience.TransientClassifier(func(err error) bool {
	return natsqueue.IsTransient(err) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
})

// New creates or updates both buckets with the configured TTL.
func New(ctx context.Context, conn *nats.Conn, cfg Config, executor *resilience.Executor) (*MatterStore, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	if cfg.RecordBucket == "" {
		cfg.RecordBucket = DefaultRecordBucket
	}
	if cfg.PayloadBucket == "" {
		cfg.PayloadBucket = DefaultPayloadBucket
	}

	records, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.RecordBucket,
		Description: "filing matter records",
		History:     1,
		TTL:         cfg.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("create kv bucket %s: %w", cfg.RecordBucket, err)
	}
	payloads, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      cfg.PayloadBucket,
		Description: "filing source payloads by matter and sha256",
		TTL:         cfg.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store %s: %w", cfg.PayloadBucket, err)
	}

	return &MatterStore{records: records, payloads: payloads, executor: executor}, nil
}

// RecordKey encodes a matter key into a KV key. Both parts are base64url
// encoded so caller ids cannot collide or escape the key grammar.
func RecordKey(key domain.MatterKey) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(key.ClientID)) + "." + enc.EncodeToString([]byte(key.MatterID))
}

// PayloadObjectName addresses a payload within one matter.
func PayloadObjectName(key domain.MatterKey, payload []byte) string {
	sum := sha256.Sum256(payload)
	return RecordKey(key) + "/" + hex.EncodeToString(sum[:])
}

func (s *MatterStore) Put(ctx context.Context, matter *domain.Matter) error {
	if matter == nil {
		return domain.Validationf("put matter", "matter is nil")
	}
	key := domain.MatterKey{ClientID: matter.ClientID, MatterID: matter.MatterID}
	if err := key.Validate(); err != nil {
		return err
	}

	record, objects := splitRecord(key, matter)
	for i, f := range matter.SourceFiles {
		name := objects[i]
		payload := f.Payload
		_, err := resilience.Do(ctx, s.executor, "natskv.put_payload", func(ctx context.Context) (*jetstream.ObjectInfo, error) {
			return s.payloads.PutBytes(ctx, name, payload)
		}, classify)
		if err != nil {
			return storeError("put matter", fmt.Errorf("store payload %s: %w", f.FileID, err))
		}
	}

	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal matter record: %w", err)
	}
	_, err = resilience.Do(ctx, s.executor, "natskv.put_record", func(ctx context.Context) (uint64, error) {
		return s.records.Put(ctx, RecordKey(key), value)
	}, classify)
	if err != nil {
		return storeError("put matter", err)
	}
	return nil
}

func (s *MatterStore) Get(ctx context.Context, key domain.MatterKey) (*domain.Matter, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	entry, err := resilience.Do(ctx, s.executor, "natskv.get_record", func(ctx context.Context) (jetstream.KeyValueEntry, error) {
		return s.records.Get(ctx, RecordKey(key))
	}, classify)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, domain.WrapError(domain.ErrMatterNotFound, "get matter", fmt.Errorf("key=%s", key))
		}
		return nil, storeError("get matter", err)
	}

	var record storedRecord
	if err := json.Unmarshal(entry.Value(), &record); err != nil {
		return nil, fmt.Errorf("unmarshal matter record: %w", err)
	}
	if len(record.PayloadObjects) != len(record.Matter.SourceFiles) {
		return nil, fmt.Errorf("matter record %s references %d payloads for %d files",
			key, len(record.PayloadObjects), len(record.Matter.SourceFiles))
	}

	matter := record.Matter
	for i := range matter.SourceFiles {
		name := record.PayloadObjects[i]
		payload, err := resilience.Do(ctx, s.executor, "natskv.get_payload", func(ctx context.Context) ([]byte, error) {
			return s.payloads.GetBytes(ctx, name)
		}, classify)
		if err != nil {
			if errors.Is(err, jetstream.ErrObjectNotFound) {
				// Payloads expire with the record; a stale record is gone too.
				return nil, domain.WrapError(domain.ErrMatterNotFound, "get matter", fmt.Errorf("key=%s payload expired", key))
			}
			return nil, storeError("get matter", fmt.Errorf("load payload %s: %w", matter.SourceFiles[i].FileID, err))
		}
		matter.SourceFiles[i].Payload = payload
	}
	return &matter, nil
}

func splitRecord(key domain.MatterKey, matter *domain.Matter) (storedRecord, []string) {
	m := matter.Clone()
	objects := make([]string, len(m.SourceFiles))
	for i := range m.SourceFiles {
		objects[i] = PayloadObjectName(key, m.SourceFiles[i].Payload)
		m.SourceFiles[i].Payload = nil
	}
	return storedRecord{Matter: *m, PayloadObjects: objects}, objects
}

func storeError(op string, err error) error {
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classify(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
