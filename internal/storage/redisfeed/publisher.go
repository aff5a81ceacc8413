package redisfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"poolSnapshot/internal/model"
)

const (
	DefaultStream = "pool:snapshots"

	// streamMaxLen bounds the stream; trimming is approximate.
	streamMaxLen = 10000
)

// Publisher writes the latest snapshot of each pool to a hash and announces
// it on a stream.
type Publisher struct {
	rdb    *redis.Client
	stream string
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Username string
	Password string
	DB       int
	Stream   string
}

func NewPublisher(opts Options) *Publisher {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		DB:       opts.DB,
		Username: opts.Username,
		Password: opts.Password,
	})
	return NewPublisherWithClient(rdb, opts.Stream)
}

func NewPublisherWithClient(rdb *redis.Client, stream string) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{rdb: rdb, stream: stream}
}

func (p *Publisher) Close() error {
	return p.rdb.Close()
}

// SnapshotKey is the hash holding the latest snapshot of a pool.
func SnapshotKey(chain, address string) string {
	return "pool:snapshot:" + chain + ":" + strings.ToLower(address)
}

// PutSnapshot stores snap under its pool key and appends a stream entry.
func (p *Publisher) PutSnapshot(ctx context.Context, snap *model.PoolSnapshot) error {
	if snap == nil {
		return nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	key := SnapshotKey(snap.Chain, snap.Address)
	basepool := ""
	if snap.Basepool != nil {
		basepool = snap.Basepool.Address
	}

	pipe := p.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"name":      snap.Name,
		"address":   snap.Address,
		"chain":     snap.Chain,
		"pool_type": snap.PoolType,
		"family":    snap.Params.Family.String(),
		"basepool":  basepool,
		"timestamp": snap.Timestamp,
		"data":      data,
	})
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"key":       key,
			"address":   snap.Address,
			"chain":     snap.Chain,
			"timestamp": snap.Timestamp,
		},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish snapshot %s: %w", key, err)
	}
	return nil
}

// LatestSnapshot returns the stored snapshot JSON of a pool, or nil if absent.
func (p *Publisher) LatestSnapshot(ctx context.Context, chain, address string) ([]byte, error) {
	data, err := p.rdb.HGet(ctx, SnapshotKey(chain, address), "data").Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
