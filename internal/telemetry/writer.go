package telemetry

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// errClosed 写入器已关闭
var errClosed = errors.New("事件流已关闭")

// flushInterval 后台自动刷盘间隔
// 看板近实时跟读 JSONL 文件，事件不能在缓冲区里停留太久。
const flushInterval = 2 * time.Second

type opType int

const (
	opWrite opType = iota
	opFlush
	opClose
)

type op struct {
	typ  opType
	val  any
	done chan error
}

// Writer 异步 JSONL 事件流写入器
// Write 只负责投递，JSON 编码与文件 I/O 在后台协程完成，
// 交易周期与扫描循环的热路径不被磁盘阻塞。
// 编码或写入失败的事件计入丢弃计数，不向调用方回报。
type Writer struct {
	// ch 操作通道
	ch chan op
	// drops 丢弃事件计数
	drops int64

	closeOnce sync.Once
	closeErr  error
	closed    int32

	sendMu sync.Mutex

	wg sync.WaitGroup
}

// NewWriter 创建 JSONL 事件流写入器
// 输出目录不存在时自动创建，文件以追加模式打开。
// 参数 path: 输出文件路径
// 参数 bufferSize: 投递通道容量
func NewWriter(path string, bufferSize int) (*Writer, error) {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开输出文件失败: %w", err)
	}

	w := &Writer{ch: make(chan op, bufferSize)}
	w.wg.Add(1)
	go w.loop(f)
	return w, nil
}

// send 投递一个操作
// 持锁期间校验关闭标志，保证不向已关闭的通道发送。
func (w *Writer) send(o op) error {
	if atomic.LoadInt32(&w.closed) == 1 {
		return errClosed
	}
	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	if atomic.LoadInt32(&w.closed) == 1 {
		return errClosed
	}
	w.ch <- o
	return nil
}

// Write 异步写入一条事件记录
func (w *Writer) Write(v any) error {
	if w == nil {
		return fmt.Errorf("writer 为空")
	}
	return w.send(op{typ: opWrite, val: v})
}

// Flush 强制刷盘并等待完成
func (w *Writer) Flush() error {
	if w == nil {
		return nil
	}
	done := make(chan error, 1)
	if err := w.send(op{typ: opFlush, done: done}); err != nil {
		return nil
	}
	return <-done
}

// Close 关闭写入器
// 此前投递的事件先落盘，之后的 Write 返回 errClosed。
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.closeOnce.Do(func() {
		done := make(chan error, 1)
		w.sendMu.Lock()
		atomic.StoreInt32(&w.closed, 1)
		w.ch <- op{typ: opClose, done: done}
		close(w.ch)
		w.sendMu.Unlock()
		w.closeErr = <-done
	})
	w.wg.Wait()
	return w.closeErr
}

// Dropped 启动以来丢弃的事件数
func (w *Writer) Dropped() int64 {
	if w == nil {
		return 0
	}
	return atomic.LoadInt64(&w.drops)
}

func (w *Writer) loop(f *os.File) {
	defer w.wg.Done()
	defer f.Close()

	bw := bufio.NewWriterSize(f, 64<<10)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	reply := func(done chan error, err error) {
		if done != nil {
			done <- err
		}
	}

	for {
		select {
		case req, ok := <-w.ch:
			if !ok {
				bw.Flush()
				return
			}
			switch req.typ {
			case opWrite:
				b, err := json.Marshal(req.val)
				if err != nil {
					atomic.AddInt64(&w.drops, 1)
					continue
				}
				b = append(b, '\n')
				if _, err := bw.Write(b); err != nil {
					atomic.AddInt64(&w.drops, 1)
				}
			case opFlush:
				reply(req.done, bw.Flush())
			case opClose:
				reply(req.done, bw.Flush())
				return
			}
		case <-ticker.C:
			bw.Flush()
		}
	}
}
