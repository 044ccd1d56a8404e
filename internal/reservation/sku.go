package reservation

import (
	"regexp"
	"strings"
)

var (
	// 清掉贴着口令的表情/标点，只留字母数字下划线连字符和空格。
	skuStripRE = regexp.MustCompile(`[^\p{L}\p{N}_\- ]+`)
	// 口令形如 SK01 / FSK01（可带 F 前缀），大小写不敏感。
	skuTokenRE = regexp.MustCompile(`(?i)^f?([a-z0-9_-]+)$`)
)

// ParseSKU 从评论文本里尽力抽取商品口令：
// - 按空白切词，从左到右找第一个符合口令形状的 token
// - 口令必须带数字，不然 "no codes here" 这类普通单词全会误命中
// - 命中后去掉 F 前缀并统一小写
// 只做形状匹配，不校验 SKU 是否真实存在。
func ParseSKU(message string) (string, bool) {
	text := skuStripRE.ReplaceAllString(strings.TrimSpace(message), " ")
	for _, token := range strings.Fields(text) {
		m := skuTokenRE.FindStringSubmatch(token)
		if m == nil || !strings.ContainsAny(m[1], "0123456789") {
			continue
		}
		return strings.ToLower(m[1]), true
	}
	return "", false
}
