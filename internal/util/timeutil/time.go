// Package timeutil 提供时间相关的工具函数。
// 主要包括 15 分钟结算窗口的边界计算，以及毫秒时间戳辅助函数。
package timeutil

import (
	"time"
)

// WindowSeconds 结算窗口长度（秒），BTC 上/下二元市场按 15 分钟结算
const WindowSeconds = 900

var (
	// baseTime 基准时间点（包含单调时钟读数）
	baseTime = time.Now()
	// baseUnixNs 基准时间点对应的 Unix 纳秒时间戳
	baseUnixNs = baseTime.UnixNano()
)

// NowNano 获取当前时间的纳秒时间戳
// 使用“单调时钟 + 启动时 Unix 时间”组合实现：
// NowNano = baseUnixNs + time.Since(baseTime).Nanoseconds()
// 这样在系统时间跳变（NTP/手动调整）时也能保持时间差的单调性，保证入场窗口判定不受影响。
// 返回: 当前时间的 Unix 纳秒时间戳
func NowNano() int64 {
	return baseUnixNs + time.Since(baseTime).Nanoseconds()
}

// NowMs 获取当前时间的毫秒时间戳
// 用于生成交易编号和与场所时间戳对比
// 返回: 当前时间的 Unix 毫秒时间戳
func NowMs() int64 {
	return NowNano() / 1_000_000
}

// WindowBoundary 计算包含指定时刻的结算窗口起点
// 边界对齐到 15 分钟整点: floor(unix/900)*900
// 参数 now: 任意时刻
// 返回: 该时刻所在窗口的起始时间（UTC）
func WindowBoundary(now time.Time) time.Time {
	unix := now.Unix()
	return time.Unix(unix-unix%WindowSeconds, 0).UTC()
}

// NextBoundary 计算指定时刻之后的下一个结算边界
// 若 now 恰好落在边界上，返回再下一个边界
// 参数 now: 任意时刻
// 返回: 下一个窗口边界时间（UTC）
func NextBoundary(now time.Time) time.Time {
	return WindowBoundary(now).Add(WindowSeconds * time.Second)
}

// UntilBoundary 计算距下一个结算边界还剩多久
// 参数 now: 任意时刻
// 返回: 剩余时长
func UntilBoundary(now time.Time) time.Duration {
	return NextBoundary(now).Sub(now)
}

// InEntryWindow 判断当前时刻是否落在入场窗口内
// 入场窗口以“边界前 lead 秒”为中心、前后各 window 秒的对称区间，
// 即距边界剩余 [lead−window, lead+window] 秒时可入场。
// lead=60、window=30 时对应边界前 30 到 90 秒。
// 参数 now: 当前时刻
// 参数 lead: 入场提前量（秒）
// 参数 window: 窗口半宽（秒）
// 返回: 是否在入场窗口内
func InEntryWindow(now time.Time, lead, window int) bool {
	remaining := UntilBoundary(now).Seconds()
	lo := float64(lead - window)
	hi := float64(lead + window)
	return remaining >= lo && remaining <= hi
}

// MsToTime 将毫秒时间戳转换为 time.Time
// 参数 ms: 毫秒时间戳
// 返回: time.Time 对象
func MsToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// SinceMs 计算从指定毫秒时间戳到现在的时间差
// 参数 startMs: 开始时间（毫秒）
// 返回: 时间差（毫秒）
func SinceMs(startMs int64) int64 {
	return NowMs() - startMs
}

// DayKey 生成日期键，用于每日计数器的跨日重置判定
// 参数 now: 任意时刻
// 返回: UTC 日期字符串，如 2026-09-01
func DayKey(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}
