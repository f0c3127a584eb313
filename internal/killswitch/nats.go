package killswitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// killKey is the single key holding the fleet-wide kill record.
const killKey = "kill"

// NATSConfig holds configuration for the NATS-backed remote store.
type NATSConfig struct {
	// URL is the NATS server URL (e.g., "nats://host:4222").
	URL string

	// Token is the auth token for NATS (optional).
	Token string

	// Bucket is the JetStream KV bucket name (default "marshal-kill").
	Bucket string
}

// NATSStore mirrors kill-switch state through a JetStream key-value
// bucket, giving every supervisor host the same halt signal.
type NATSStore struct {
	cfg    NATSConfig
	nc     *nats.Conn
	kv     jetstream.KeyValue
	logger *slog.Logger
}

// NewNATSStore connects to NATS and opens (creating if needed) the kill
// bucket. The caller owns the returned store and must Close it.
func NewNATSStore(ctx context.Context, cfg NATSConfig, logger *slog.Logger) (*NATSStore, error) {
	if cfg.Bucket == "" {
		cfg.Bucket = "marshal-kill"
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []nats.Option{nats.Name("marshal-killswitch")}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("NATS connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "marshal fleet kill-switch state",
		History:     8,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("KV bucket %s: %w", cfg.Bucket, err)
	}

	logger.Info("remote kill store connected", "url", cfg.URL, "bucket", cfg.Bucket)
	return &NATSStore{cfg: cfg, nc: nc, kv: kv, logger: logger}, nil
}

// Fetch returns the current remote kill record, or (nil, nil) when none
// has ever been published or it was cleared.
func (s *NATSStore) Fetch(ctx context.Context) (*RemoteRecord, error) {
	entry, err := s.kv.Get(ctx, killKey)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("KV get %s: %w", killKey, err)
	}

	var record RemoteRecord
	if err := json.Unmarshal(entry.Value(), &record); err != nil {
		return nil, fmt.Errorf("malformed remote kill record: %w", err)
	}
	return &record, nil
}

// Publish writes the kill record to the bucket.
func (s *NATSStore) Publish(ctx context.Context, record RemoteRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal kill record: %w", err)
	}
	if _, err := s.kv.Put(ctx, killKey, data); err != nil {
		return fmt.Errorf("KV put %s: %w", killKey, err)
	}
	return nil
}

// Clear removes the kill record. Clearing an absent record is a no-op.
func (s *NATSStore) Clear(ctx context.Context) error {
	if err := s.kv.Purge(ctx, killKey); err != nil {
		return fmt.Errorf("KV purge %s: %w", killKey, err)
	}
	return nil
}

// Close releases the NATS connection.
func (s *NATSStore) Close() {
	s.nc.Close()
}
