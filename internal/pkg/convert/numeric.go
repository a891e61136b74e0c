// Package convert parses the string-typed numeric fields KIS payloads use.
package convert

import (
	"strconv"
	"strings"
)

// ToFloat64 parses a KIS numeric string. KIS 接口的数字字段一律是字符串，
// 偶尔带千分位逗号或前导零。解析失败返回 0。
func ToFloat64(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// ToInt64 parses a KIS integer string the same way.
func ToInt64(s string) int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// 部分字段（如均价）带小数点，截断取整。
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0
		}
		return int64(f)
	}
	return n
}
