package sharetoken

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/stubborncoder/vdocs/internal/verrors"
)

// NatsIndex is a JetStream-KV-backed Index so multiple daemon replicas
// share one token→entry map, grounded on
// internal/linkverify/nats_client.go's connect-with-automatic-reconnect and
// KV-bucket-init pattern.
type NatsIndex struct {
	url    string
	bucket string

	mu   sync.RWMutex
	conn *nats.Conn
	js   jetstream.JetStream
	kv   jetstream.KeyValue
}

// NewNatsIndex connects to url and ensures bucket exists. A connection
// failure here is non-fatal -- per the teacher's pattern, the index lazily
// reconnects on first use -- but the returned error is still surfaced so
// callers can choose to fall back to MemIndex.
func NewNatsIndex(url, bucket string) (*NatsIndex, error) {
	idx := &NatsIndex{url: url, bucket: bucket}
	if err := idx.connect(context.Background()); err != nil {
		slog.Warn("initial NATS connection for share token index failed, will retry on first use",
			"url", url, "error", err)
		return idx, err
	}
	return idx, nil
}

func (n *NatsIndex) connect(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn != nil {
		n.conn.Close()
		n.conn, n.js, n.kv = nil, nil, nil
	}

	conn, err := nats.Connect(n.url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return verrors.DependencyError("nats connect", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return verrors.DependencyError("jetstream init", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	kv, err := js.KeyValue(timeoutCtx, n.bucket)
	if err != nil {
		kv, err = js.CreateKeyValue(timeoutCtx, jetstream.KeyValueConfig{
			Bucket:      n.bucket,
			Description: "vdocs share token reverse index",
		})
		if err != nil {
			conn.Close()
			return verrors.DependencyError("create share token kv bucket", err)
		}
	}

	n.conn, n.js, n.kv = conn, js, kv
	return nil
}

func (n *NatsIndex) ensureConnected(ctx context.Context) error {
	n.mu.RLock()
	ok := n.conn != nil && n.conn.IsConnected()
	n.mu.RUnlock()
	if ok {
		return nil
	}
	return n.connect(ctx)
}

// Put implements Index.
func (n *NatsIndex) Put(ctx context.Context, e Entry) error {
	if err := n.ensureConnected(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return verrors.Internal("marshal share token entry", err)
	}
	n.mu.RLock()
	kv := n.kv
	n.mu.RUnlock()
	if _, err := kv.Put(ctx, e.Token, data); err != nil {
		return verrors.DependencyError("put share token entry", err)
	}
	return nil
}

// Get implements Index.
func (n *NatsIndex) Get(ctx context.Context, token string) (*Entry, bool, error) {
	if err := n.ensureConnected(ctx); err != nil {
		return nil, false, err
	}
	n.mu.RLock()
	kv := n.kv
	n.mu.RUnlock()

	rec, err := kv.Get(ctx, token)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, verrors.DependencyError("get share token entry", err)
	}
	var e Entry
	if err := json.Unmarshal(rec.Value(), &e); err != nil {
		return nil, false, nil
	}
	return &e, true, nil
}

// Delete implements Index.
func (n *NatsIndex) Delete(ctx context.Context, token string) error {
	if err := n.ensureConnected(ctx); err != nil {
		return err
	}
	n.mu.RLock()
	kv := n.kv
	n.mu.RUnlock()
	if err := kv.Delete(ctx, token); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return verrors.DependencyError("delete share token entry", err)
	}
	return nil
}

// Close closes the underlying NATS connection.
func (n *NatsIndex) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}
