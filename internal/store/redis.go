package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/tradestore/internal/model"
)

// DefaultRedisPrefix namespaces every key written by RedisStore.
const DefaultRedisPrefix = "tradestore:"

// expireScript flips the expired field on every row indexed with a maturity
// score below ARGV[1] and drops those rows from the maturity index. It runs
// as one script so the sweep is atomic.
var expireScript = redis.NewScript(`
local keys = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
local n = 0
for _, k in ipairs(keys) do
	if redis.call('EXISTS', k) == 1 and redis.call('HGET', k, 'expired') ~= '1' then
		redis.call('HSET', k, 'expired', '1')
		n = n + 1
	end
	redis.call('ZREM', KEYS[1], k)
end
return n
`)

// RedisStore implements Store on Redis. Each row is a hash; a sorted set per
// trade id holds its versions, and one sorted set indexes unexpired rows by
// maturity day.
//
// Layout (prefix omitted):
//
//	trade:{id}:{version}  hash of the row fields
//	versions:{id}         zset, member=version score=version
//	maturity              zset, member=row key score=days since epoch
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store. An empty prefix selects
// DefaultRedisPrefix.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) GetMaxVersion(ctx context.Context, tradeID string) (int, bool, error) {
	top, err := s.rdb.ZRevRangeWithScores(ctx, s.versionsKey(tradeID), 0, 0).Result()
	if err != nil {
		return 0, false, fmt.Errorf("redis: get max version %s: %w", tradeID, err)
	}
	if len(top) == 0 {
		return 0, false, nil
	}
	return int(top[0].Score), true, nil
}

func (s *RedisStore) GetByIDAndVersion(ctx context.Context, tradeID string, version int) (*model.Trade, bool, error) {
	fields, err := s.rdb.HGetAll(ctx, s.rowKey(tradeID, version)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis: get trade %s v%d: %w", tradeID, version, err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}
	t, err := decodeTrade(fields)
	if err != nil {
		return nil, false, fmt.Errorf("redis: decode trade %s v%d: %w", tradeID, version, err)
	}
	return t, true, nil
}

func (s *RedisStore) Save(ctx context.Context, t *model.Trade) (*model.Trade, error) {
	row := *t
	row.Normalize()
	key := s.rowKey(row.TradeID, row.Version)

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, encodeTrade(&row))
		pipe.ZAdd(ctx, s.versionsKey(row.TradeID), redis.Z{
			Score:  float64(row.Version),
			Member: strconv.Itoa(row.Version),
		})
		if row.Expired {
			pipe.ZRem(ctx, s.maturityKey(), key)
		} else {
			pipe.ZAdd(ctx, s.maturityKey(), redis.Z{
				Score:  float64(epochDays(row.MaturityDate)),
				Member: key,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis: save trade %s v%d: %w", row.TradeID, row.Version, err)
	}
	return &row, nil
}

func (s *RedisStore) BulkExpire(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := expireScript.Run(ctx, s.rdb,
		[]string{s.maturityKey()},
		strconv.FormatInt(epochDays(cutoff), 10),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis: bulk expire before %s: %w", model.FormatDate(cutoff), err)
	}
	return n, nil
}

func (s *RedisStore) DeleteAll(ctx context.Context) error {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis: delete all: %w", err)
	}
	for len(keys) > 0 {
		n := min(len(keys), 500)
		if err := s.rdb.Del(ctx, keys[:n]...).Err(); err != nil {
			return fmt.Errorf("redis: delete all: %w", err)
		}
		keys = keys[n:]
	}
	return nil
}

// --- Key and field helpers ---

// Versions are integers, so the last segment of a row key is unambiguous
// even when the trade id itself contains ':'.
func (s *RedisStore) rowKey(id string, version int) string {
	return fmt.Sprintf("%strade:%s:%d", s.prefix, id, version)
}

func (s *RedisStore) versionsKey(id string) string { return s.prefix + "versions:" + id }
func (s *RedisStore) maturityKey() string          { return s.prefix + "maturity" }

func epochDays(t time.Time) int64 {
	return model.DateOf(t).Unix() / 86400
}

func encodeTrade(t *model.Trade) map[string]any {
	expired := "0"
	if t.Expired {
		expired = "1"
	}
	return map[string]any{
		"trade_id":         t.TradeID,
		"version":          strconv.Itoa(t.Version),
		"counter_party_id": t.CounterPartyID,
		"book_id":          t.BookID,
		"maturity_date":    model.FormatDate(t.MaturityDate),
		"creation_date":    model.FormatDate(t.CreationDate),
		"expired":          expired,
	}
}

func decodeTrade(f map[string]string) (*model.Trade, error) {
	version, err := strconv.Atoi(f["version"])
	if err != nil {
		return nil, fmt.Errorf("version: %w", err)
	}
	maturity, err := model.ParseDate(f["maturity_date"])
	if err != nil {
		return nil, err
	}
	creation, err := model.ParseDate(f["creation_date"])
	if err != nil {
		return nil, err
	}
	return &model.Trade{
		TradeID:        f["trade_id"],
		Version:        version,
		CounterPartyID: f["counter_party_id"],
		BookID:         f["book_id"],
		MaturityDate:   maturity,
		CreationDate:   creation,
		Expired:        f["expired"] == "1",
	}, nil
}
