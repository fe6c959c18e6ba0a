package buffer

import (
	"errors"
)

var ErrTooLarge = errors.New("buffer: write too large")

// Buffer 是定长的线性字节缓冲，n 为有效数据的写游标。
// 不做并发保护，由驱动 SendAndRecv 的一方独占使用。
type Buffer struct {
	buf []byte
	n   int
}

// New 返回容量为 capacity 的缓冲；capacity <= 0 视为 1。
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{buf: make([]byte, capacity)}
}

func (b *Buffer) Cap() int { return len(b.buf) }

func (b *Buffer) Len() int { return b.n }

func (b *Buffer) Free() int { return len(b.buf) - b.n }

// Fits 报告追加 n 字节后游标是否仍严格小于容量
func (b *Buffer) Fits(n int) bool { return b.n+n < len(b.buf) }

// Write 追加 p；写入后游标须严格小于容量，否则不拷贝并返回 ErrTooLarge。
func (b *Buffer) Write(p []byte) (int, error) {
	if !b.Fits(len(p)) {
		return 0, ErrTooLarge
	}
	copy(b.buf[b.n:], p)
	b.n += len(p)
	return len(p), nil
}

// Bytes 返回有效区间的视图，下一次写入前有效。
func (b *Buffer) Bytes() []byte { return b.buf[:b.n] }

// Tail 返回游标之后的空闲区间，用于直接接收。
func (b *Buffer) Tail() []byte { return b.buf[b.n:] }

// Advance 在 Tail 被填充 n 字节后前进游标。
func (b *Buffer) Advance(n int) {
	if n < 0 || n > b.Free() {
		panic("buffer: advance out of range")
	}
	b.n += n
}

func (b *Buffer) Reset() { b.n = 0 }
