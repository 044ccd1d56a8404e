package reservation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSKU(t *testing.T) {
	cases := []struct {
		name    string
		message string
		want    string
		ok      bool
	}{
		{"句中口令", "I want FSK01 please", "sk01", true},
		{"无口令", "no codes here", "", false},
		{"F 前缀小写混合", "Fsk01", "sk01", true},
		{"全大写", "SK01", "sk01", true},
		{"纯口令小写", "sk01", "sk01", true},
		{"口令贴表情", "sk01!!!", "sk01", true},
		{"带下划线连字符", "要 item_a-1 一个", "item_a-1", true},
		{"取最靠前的 token", "sk01 sk02", "sk01", true},
		{"空串", "", "", false},
		{"只有空白", "   ", "", false},
		{"纯字母单词不算口令", "fine thanks", "", false},
		{"单个 f", "f", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseSKU(tc.message)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
