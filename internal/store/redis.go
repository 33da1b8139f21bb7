package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	docKeyPrefix = "doc:"
	colKeyPrefix = "col:"
)

// RedisStore keeps one JSON blob per path and a membership set per parent so
// range queries can enumerate children. Updates go through a Lua script so
// the merge is atomic on the server; a plain GET/SET pair would race.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

var updateScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
local doc
if current then
	doc = cjson.decode(current)
else
	doc = {}
end
local fields = cjson.decode(ARGV[1])
for k, v in pairs(fields) do
	doc[k] = v
end
redis.call("SET", KEYS[1], cjson.encode(doc))
redis.call("SADD", KEYS[2], ARGV[2])
return 1
`)

func (s *RedisStore) Read(ctx context.Context, path string) (json.RawMessage, bool, error) {
	value, err := s.client.Get(ctx, docKeyPrefix+path).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	return json.RawMessage(value), true, nil
}

func (s *RedisStore) Write(ctx context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	parent, key := Split(path)

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, docKeyPrefix+path, string(data), 0)
	pipe.SAdd(ctx, colKeyPrefix+parent, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, path string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal update fields: %w", err)
	}
	parent, key := Split(path)

	err = updateScript.Run(ctx, s.client,
		[]string{docKeyPrefix + path, colKeyPrefix + parent},
		string(data), key,
	).Err()
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, path string) error {
	parent, key := Split(path)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, docKeyPrefix+path)
	pipe.SRem(ctx, colKeyPrefix+parent, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (s *RedisStore) RangeQuery(ctx context.Context, parent, orderField string, opts RangeOptions) ([]Document, error) {
	keys, err := s.client.SMembers(ctx, colKeyPrefix+parent).Result()
	if err != nil {
		return nil, fmt.Errorf("list children of %s: %w", parent, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	docKeys := make([]string, len(keys))
	for i, key := range keys {
		docKeys[i] = docKeyPrefix + Join(parent, key)
	}
	values, err := s.client.MGet(ctx, docKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch children of %s: %w", parent, err)
	}

	var docs []Document
	for i, value := range values {
		text, ok := value.(string)
		if !ok {
			continue
		}
		docs = append(docs, Document{Key: keys[i], Value: json.RawMessage(text)})
	}
	return applyRange(docs, orderField, opts), nil
}

func (s *RedisStore) ConditionalSet(ctx context.Context, path string, value any) (bool, json.RawMessage, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, nil, fmt.Errorf("marshal document: %w", err)
	}

	committed, err := s.client.SetNX(ctx, docKeyPrefix+path, string(data), 0).Result()
	if err != nil {
		return false, nil, fmt.Errorf("conditional set %s: %w", path, err)
	}
	if committed {
		parent, key := Split(path)
		if err := s.client.SAdd(ctx, colKeyPrefix+parent, key).Err(); err != nil {
			return false, nil, fmt.Errorf("index %s: %w", path, err)
		}
		return true, nil, nil
	}

	current, _, err := s.Read(ctx, path)
	if err != nil {
		return false, nil, err
	}
	return false, current, nil
}
