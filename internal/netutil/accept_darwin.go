//go:build darwin

package netutil

import (
	"golang.org/x/sys/unix"
)

// Darwin 没有 MSG_NOSIGNAL，改用 SO_NOSIGPIPE
const sendFlags = unix.MSG_DONTWAIT

func setNoSigpipe(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)
}

// Accept 单次非阻塞 accept；Darwin 无 accept4，需要补设标志
func Accept(lfd int) (int, error) {
	fd, _, err := unix.Accept(lfd)
	if err != nil {
		return -1, err
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	_ = setNoSigpipe(fd)
	return fd, nil
}
