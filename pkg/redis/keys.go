package redis

import "fmt"

// ProductLockKey 商品级互斥锁键，序列化「扣库存 + 排队号」临界区。
func ProductLockKey(productID uint) string {
	return fmt.Sprintf("live_commerce:lock:product:%d", productID)
}

// RateLimitKey 管理端限流键（按客户端 IP）。
func RateLimitKey(ip string) string {
	return fmt.Sprintf("live_commerce:rate_limit:admin:%s", ip)
}
