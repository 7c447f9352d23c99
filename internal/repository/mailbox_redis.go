package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"bankledger/internal/model"

	"github.com/go-redis/redis/v8"
)

// removeByIDScript drops every list element whose decoded "id" is among
// ARGV, leaving entries appended after the read untouched.
var removeByIDScript = redis.NewScript(`
local items = redis.call("LRANGE", KEYS[1], 0, -1)
local drop = {}
for i = 1, #ARGV do
	drop[ARGV[i]] = true
end
local removed = 0
for _, raw in ipairs(items) do
	local ok, entry = pcall(cjson.decode, raw)
	if ok and type(entry) == "table" and drop[entry["id"]] then
		removed = removed + redis.call("LREM", KEYS[1], 1, raw)
	end
end
return removed
`)

// RedisMailbox is the shared inter-bank ledger. Each (routing code,
// account number) pair owns one Redis list of JSON encoded credits.
type RedisMailbox struct {
	client *redis.Client
	prefix string
}

func NewRedisMailbox(client *redis.Client, prefix string) *RedisMailbox {
	if prefix == "" {
		prefix = "ledger:mailbox"
	}
	return &RedisMailbox{client: client, prefix: prefix}
}

func (m *RedisMailbox) key(routingCode string, accountNumber int64) string {
	return fmt.Sprintf("%s:%s:%d", m.prefix, routingCode, accountNumber)
}

func (m *RedisMailbox) Append(ctx context.Context, routingCode string, accountNumber int64, credit model.PendingCredit) error {
	raw, err := json.Marshal(credit)
	if err != nil {
		return err
	}
	return m.client.RPush(ctx, m.key(routingCode, accountNumber), raw).Err()
}

func (m *RedisMailbox) Pending(ctx context.Context, routingCode string, accountNumber int64) ([]model.PendingCredit, error) {
	items, err := m.client.LRange(ctx, m.key(routingCode, accountNumber), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return decodeCredits(items)
}

func (m *RedisMailbox) Remove(ctx context.Context, routingCode string, accountNumber int64, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return removeByIDScript.Run(ctx, m.client, []string{m.key(routingCode, accountNumber)}, args...).Err()
}

// Snapshot returns every non-empty pending list under routingCode.
func (m *RedisMailbox) Snapshot(ctx context.Context, routingCode string) (map[int64][]model.PendingCredit, error) {
	out := make(map[int64][]model.PendingCredit)
	base := fmt.Sprintf("%s:%s:", m.prefix, routingCode)

	iter := m.client.Scan(ctx, 0, base+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		accountNumber, err := strconv.ParseInt(strings.TrimPrefix(key, base), 10, 64)
		if err != nil {
			continue
		}
		items, err := m.client.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, err
		}
		credits, err := decodeCredits(items)
		if err != nil {
			return nil, err
		}
		if len(credits) > 0 {
			out[accountNumber] = credits
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeCredits(items []string) ([]model.PendingCredit, error) {
	credits := make([]model.PendingCredit, 0, len(items))
	for _, raw := range items {
		var c model.PendingCredit
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("decode pending credit: %w", err)
		}
		credits = append(credits, c)
	}
	return credits, nil
}
