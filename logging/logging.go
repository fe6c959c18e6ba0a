// Package logging 提供异步写文件的日志协作者与时间格式化辅助。
//
// Printf 在调用方上下文中完成格式化后入队，由后台 goroutine 落盘，
// 热路径上不做文件 IO。
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/someonegg/gox/syncx"
)

const timeLayout = "15:04:05.000000000"

// TimeStr 返回简短可读的时间串，仅用于日志标注
func TimeStr(t time.Time) string { return t.Format(timeLayout) }

// Now 等价于 TimeStr(time.Now())
func Now() string { return TimeStr(time.Now()) }

type Logger struct {
	w      io.Writer
	closer io.Closer

	mu   sync.Mutex
	q    *queue.Queue
	kick chan struct{}

	stopOnce sync.Once
	stopD    syncx.DoneChan
	doneD    syncx.DoneChan
}

// New 打开（追加）path 并启动落盘 goroutine；path 为空时写 stderr
func New(path string) (*Logger, error) {
	if path == "" {
		return NewWriter(os.Stderr), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open %s: %w", path, err)
	}
	l := NewWriter(f)
	l.closer = f
	return l, nil
}

func NewWriter(w io.Writer) *Logger {
	l := &Logger{
		w:     w,
		q:     queue.New(),
		kick:  make(chan struct{}, 1),
		stopD: syncx.NewDoneChan(),
		doneD: syncx.NewDoneChan(),
	}
	go l.flushing()
	return l
}

// Printf 格式化为一行并入队；Close 之后的调用被丢弃
func (l *Logger) Printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line += "\n"
	}
	l.mu.Lock()
	if l.stopD.R().Done() {
		l.mu.Unlock()
		return
	}
	l.q.Add(line)
	l.mu.Unlock()

	select {
	case l.kick <- struct{}{}:
	default:
	}
}

func (l *Logger) flushing() {
	defer l.doneD.SetDone()
	for {
		select {
		case <-l.kick:
			l.drain()
		case <-l.stopD:
			l.drain()
			return
		}
	}
}

func (l *Logger) drain() {
	for {
		l.mu.Lock()
		if l.q.Length() == 0 {
			l.mu.Unlock()
			return
		}
		line := l.q.Remove().(string)
		l.mu.Unlock()
		io.WriteString(l.w, line) //nolint:errcheck
	}
}

// Close 停止接收新日志，写完队列中剩余行后关闭文件
func (l *Logger) Close() error {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopD.SetDone()
		l.mu.Unlock()
	})
	<-l.doneD
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
