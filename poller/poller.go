// Package poller 提供可选的就绪通知：调用方在两轮 SendAndRecv 之间阻塞等待，
// 代替固定间隔的 sleep。只作为提示使用，socket 自身仍以非阻塞调用判断是否有工作。
package poller

import "time"

// FD 表示文件描述符。
type FD = int

// Poller 为水平触发的读就绪等待器。
// Register/Unregister/Wait 由驱动循环调用；Wake 可以从任意 goroutine 调用。
type Poller interface {
	Register(fd FD) error
	Unregister(fd FD) error
	// Wait 阻塞直到有 fd 可读、被 Wake 或超时；timeout < 0 表示无限等待。
	// 返回可读的 fd 数量（不含唤醒）。
	Wait(timeout time.Duration) (int, error)
	Wake() error
	Close() error
}

func timeoutMs(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := int(d / time.Millisecond)
	if ms == 0 && d > 0 {
		ms = 1
	}
	return ms
}
