package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// luaReleaseLockIfMatch 仅当锁值仍是本持有者的 token 时才删除，
// 避免临界区超过 TTL 后误删别人重新抢到的锁。
const luaReleaseLockIfMatch = `
local lockKey = KEYS[1]
local token = ARGV[1]
if redis.call('GET', lockKey) == token then
  return redis.call('DEL', lockKey)
end
return 0
`

// WithProductLock 对商品加单次尝试的分布式锁并执行 fn：
// - SETNX 失败立即返回 false，不轮询不退避（有损路径，调用方按软失败处理）
// - 拿到锁后无论 fn 成败都按 token 匹配释放
// - TTL 只是持有者崩溃后的保险丝，正常临界区应远短于 TTL
func WithProductLock(ctx context.Context, rdb *rd.Client, productID uint, ttl time.Duration, fn func() error) (bool, error) {
	key := ProductLockKey(productID)
	token := uuid.NewString()

	ok, err := rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	fnErr := fn()
	// 释放失败交给 TTL 兜底，不覆盖业务结果。
	_, _ = rdb.Eval(ctx, luaReleaseLockIfMatch, []string{key}, token).Int()
	return true, fnErr
}
