// Package fastparse 提供高性能的字符串解析函数。
// 避免在热路径使用 fmt.Sprintf，使用 strconv 进行转换。
// 主要用于解析场所 API 返回的字符串形式价格字段，
// 以及 Gamma 市场接口中二次编码的 JSON 字符串数组（如 outcomePrices、clobTokenIds）。
package fastparse

import (
	"encoding/json"
	"strconv"
)

// ParseFloat 快速解析浮点数字符串
// 使用 strconv.ParseFloat 实现，避免 fmt 包的额外开销
// 参数 s: 待解析的字符串，如 "0.4850"
// 返回: 解析后的浮点数和可能的错误
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// ParseInt 快速解析整数字符串
// 使用 strconv.ParseInt 实现，支持 64 位整数
// 参数 s: 待解析的字符串，如 "12345"
// 返回: 解析后的整数和可能的错误
func ParseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// MustParseFloat 解析浮点数，失败时返回 0
// 用于已知格式正确的场景，简化错误处理
// 参数 s: 待解析的字符串
// 返回: 解析后的浮点数，失败返回 0
func MustParseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseStringArray 解析二次编码的 JSON 字符串数组
// Gamma 市场接口把数组字段编码为字符串，如 "[\"0.45\", \"0.55\"]"
// 参数 s: 二次编码的 JSON 字符串
// 返回: 解码后的字符串切片和可能的错误
func ParseStringArray(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseFloatArray 解析二次编码的 JSON 价格数组
// 先按字符串数组解码，再逐项转换为浮点数，无法解析的项记为 0
// 参数 s: 二次编码的 JSON 字符串，如 "[\"0.45\", \"0.55\"]"
// 返回: 解码后的浮点数切片和可能的错误
func ParseFloatArray(s string) ([]float64, error) {
	parts, err := ParseStringArray(s)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(parts))
	for i, p := range parts {
		out[i] = MustParseFloat(p)
	}
	return out, nil
}

// FormatFloat 格式化浮点数为字符串
// 使用 strconv.FormatFloat 实现，避免 fmt.Sprintf 开销
// 参数 f: 待格式化的浮点数
// 参数 prec: 小数位数，-1 表示最短表示
// 返回: 格式化后的字符串
func FormatFloat(f float64, prec int) string {
	return strconv.FormatFloat(f, 'f', prec, 64)
}

// FormatInt 格式化整数为字符串
// 使用 strconv.FormatInt 实现
// 参数 i: 待格式化的整数
// 返回: 格式化后的字符串
func FormatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}
