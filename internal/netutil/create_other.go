//go:build !linux && !darwin

package netutil

import (
	"time"

	"github.com/legamerdc/llsock"
)

// 非 Linux/Darwin 平台：所有建立路径返回 ErrPlatformNotSupported，保证编译通过

func CreateSocket(cfg llsock.Config) (int, error) {
	return -1, &llsock.SetupError{Op: "socket", Config: cfg, Err: llsock.ErrPlatformNotSupported}
}

func Join(fd int, group, iface string) error { return llsock.ErrPlatformNotSupported }

func Accept(lfd int) (int, error) { return -1, llsock.ErrPlatformNotSupported }

func IsWouldBlock(err error) bool { return false }

func Recv(fd int, p []byte) (int, error) { return 0, llsock.ErrPlatformNotSupported }

func Send(fd int, p []byte) (int, error) { return 0, llsock.ErrPlatformNotSupported }

func Close(fd int) error { return llsock.ErrPlatformNotSupported }

func LocalPort(fd int) (int, error) { return 0, llsock.ErrPlatformNotSupported }

func WaitConnected(fd int, timeout time.Duration) error { return llsock.ErrPlatformNotSupported }
