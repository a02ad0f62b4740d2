package transfer

import (
	"errors"

	"github.com/hwuu/serveragent/internal/config"
	"github.com/hwuu/serveragent/internal/remote"
)

var (
	ErrPathNotFound        = errors.New("path not found")
	ErrTransport           = errors.New("SSH/SFTP failure")
	ErrUnsupportedPathType = errors.New("unsupported path type")
	ErrLocalRead           = remote.ErrLocalRead
)

// 进程退出码，每类错误一个
const (
	ExitOK              = 0
	ExitArgument        = 1
	ExitPathNotFound    = 2
	ExitTransport       = 3
	ExitUnsupportedPath = 4
	ExitLocalRead       = 5
)

// ExitCode 把 Execute 返回的错误映射为进程退出码
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrPathNotFound):
		return ExitPathNotFound
	case errors.Is(err, ErrUnsupportedPathType):
		return ExitUnsupportedPath
	case errors.Is(err, ErrLocalRead):
		return ExitLocalRead
	case errors.Is(err, config.ErrMissingField),
		errors.Is(err, config.ErrInvalidArgument),
		errors.Is(err, config.ErrHostKeyPolicy):
		return ExitArgument
	default:
		return ExitTransport
	}
}
