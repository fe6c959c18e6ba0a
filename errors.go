package llsock

import (
	"errors"
	"fmt"
)

var (
	// ErrPlatformNotSupported 非 Linux/Darwin 平台
	ErrPlatformNotSupported = errors.New("llsock: platform not supported (requires linux or darwin)")

	// ErrInvalidArgument 参数非法
	ErrInvalidArgument = errors.New("llsock: invalid argument")

	// ErrSocketSetup bind/connect/listen/accept/join 等建立阶段失败
	ErrSocketSetup = errors.New("llsock: socket setup failed")

	// ErrBufferOverflow 缓冲写满：调用方产出快于 SendAndRecv 的消化节奏
	ErrBufferOverflow = errors.New("llsock: buffer filled up and SendAndRecv not called")

	// ErrMembership 仅监听模式的组播 socket 可以加入组
	ErrMembership = errors.New("llsock: multicast membership requires a listening socket")

	// ErrWouldBlock 暂无可处理的工作
	ErrWouldBlock = errors.New("llsock: would block")

	// ErrPeerClosed 对端有序关闭（读到 0 字节）
	ErrPeerClosed = errors.New("llsock: peer closed")

	// ErrClosed socket 已关闭
	ErrClosed = errors.New("llsock: socket closed")
)

// SetupError 记录建立阶段失败的操作与配置
type SetupError struct {
	Op     string
	Config Config
	Err    error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("llsock: %s %s: %v", e.Op, e.Config, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

func (e *SetupError) Is(target error) bool { return target == ErrSocketSetup }

// OverflowError 为容量越界时 panic 的值
type OverflowError struct {
	FD   int
	Op   string // "send" 或 "recv"
	Cap  int
	Len  int
	Want int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("llsock: %s buffer overflow fd=%d cap=%d len=%d want=%d: SendAndRecv not called often enough",
		e.Op, e.FD, e.Cap, e.Len, e.Want)
}

func (e *OverflowError) Unwrap() error { return ErrBufferOverflow }
