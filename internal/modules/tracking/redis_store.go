// README: Sample store backed by one Redis hash per provider.
package tracking

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"mechanico/internal/types"
)

const sampleKeyPrefix = "tracking:provider:%s"

// putScript applies a sample only when it is newer than the stored one.
// KEYS[1] sample hash.
// ARGV: at (unix micros), lat, lng, cell, ttl seconds.
var putScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'at')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'at', ARGV[1], 'lat', ARGV[2], 'lng', ARGV[3], 'cell', ARGV[4])
if tonumber(ARGV[5]) > 0 then
	redis.call('EXPIRE', KEYS[1], ARGV[5])
end
return 1
`)

type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, sm Sample) (bool, error) {
	res, err := putScript.Run(ctx, s.redis,
		[]string{sampleKey(sm.ProviderID)},
		sm.At.UnixMicro(),
		strconv.FormatFloat(sm.Position.Lat, 'f', -1, 64),
		strconv.FormatFloat(sm.Position.Lng, 'f', -1, 64),
		sm.Cell,
		int64(s.ttl/time.Second),
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (s *RedisStore) Latest(ctx context.Context, providerID types.ID) (*Sample, error) {
	vals, err := s.redis.HGetAll(ctx, sampleKey(providerID)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, ErrNoSample
	}
	at, err := strconv.ParseInt(vals["at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode sample time: %w", err)
	}
	lat, err := strconv.ParseFloat(vals["lat"], 64)
	if err != nil {
		return nil, fmt.Errorf("decode sample lat: %w", err)
	}
	lng, err := strconv.ParseFloat(vals["lng"], 64)
	if err != nil {
		return nil, fmt.Errorf("decode sample lng: %w", err)
	}
	return &Sample{
		ProviderID: providerID,
		Position:   types.Point{Lat: lat, Lng: lng},
		At:         time.UnixMicro(at).UTC(),
		Cell:       vals["cell"],
	}, nil
}

func sampleKey(id types.ID) string {
	return fmt.Sprintf(sampleKeyPrefix, string(id))
}
