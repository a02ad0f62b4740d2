// Package transfer 实现一次上传：建立一个 SFTP 会话，按本地路径类型上传文件或整棵目录，
// 无论成功失败都只关闭一次会话。不重试，不并发。
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chainguard-dev/clog"
	"github.com/dustin/go-humanize"

	"github.com/hwuu/serveragent/internal/config"
	"github.com/hwuu/serveragent/internal/remote"
)

// Summary 上传结果统计
type Summary struct {
	Kind      PathKind
	RemoteDir string // 会话默认目录，获取失败时为空
	Dirs      int
	Files     int
	Bytes     int64
	Skipped   int
}

// Executor 上传执行器，通过依赖注入支持测试
type Executor struct {
	Dial   remote.DialFunc
	Output io.Writer // 面向用户的结果输出，默认 stdout
}

// NewDialFunc 根据 TransferRequest 构造真实的 SFTP DialFunc
func NewDialFunc(req config.TransferRequest) (remote.DialFunc, error) {
	hostKeyCallback, err := remote.NewHostKeyCallback(
		req.HostKeyPolicy.InsecureIgnoreHostKey,
		req.HostKeyPolicy.KnownHostsFile,
	)
	if err != nil {
		return nil, err
	}
	return remote.NewSFTPDialFunc(remote.DialOptions{
		Host:            req.Host,
		Port:            req.Port,
		User:            req.Username,
		Password:        req.Password,
		Timeout:         req.Timeout,
		HostKeyCallback: hostKeyCallback,
	}), nil
}

func (e *Executor) printf(format string, args ...interface{}) {
	out := e.Output
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, format, args...)
}

// Execute 执行上传。所有失败都在这里记日志并打印给用户，
// 返回的错误只用于决定退出码（见 ExitCode）。
func (e *Executor) Execute(ctx context.Context, req config.TransferRequest) (*Summary, error) {
	summary, err := e.run(ctx, req)
	if err != nil {
		clog.ErrorContext(ctx, "transfer failed", "host", req.Host, "path", req.LocalPath, "error", err)
		e.printf("%v\n", err)
		return summary, err
	}

	clog.InfoContext(ctx, "successfully copied files to the remote machine",
		"host", req.Host,
		"kind", summary.Kind.String(),
		"files", summary.Files,
		"dirs", summary.Dirs,
		"bytes", humanize.Bytes(uint64(summary.Bytes)),
	)
	e.printf("Uploaded %d file(s), %s to %s\n", summary.Files, humanize.Bytes(uint64(summary.Bytes)), req.Host)
	return summary, nil
}

func (e *Executor) run(ctx context.Context, req config.TransferRequest) (*Summary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if e.Dial == nil {
		return nil, fmt.Errorf("%w: no dialer configured", ErrTransport)
	}

	clog.InfoContext(ctx, "open sftp connection", "host", req.Host, "user", req.Username)
	client, err := e.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() {
		clog.InfoContext(ctx, "close sftp connection", "host", req.Host)
		if err := client.Close(); err != nil {
			clog.WarnContext(ctx, "failed to close sftp connection", "error", err)
		}
	}()
	clog.InfoContext(ctx, "connected", "host", req.Host)

	clog.InfoContext(ctx, "check if the path exists", "path", req.LocalPath)
	plan, err := BuildPlan(req.LocalPath)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Kind: plan.Kind}
	if wd, err := client.Getwd(); err == nil {
		summary.RemoteDir = wd
	} else {
		clog.DebugContext(ctx, "failed to get remote working directory", "error", err)
	}

	clog.InfoContext(ctx, "start copying to the remote machine",
		"path", req.LocalPath, "kind", plan.Kind.String(), "remote_dir", summary.RemoteDir)

	for _, dir := range plan.Dirs {
		if err := client.MkdirAll(dir); err != nil {
			return summary, fmt.Errorf("%w: %w", ErrTransport, err)
		}
		summary.Dirs++
	}
	for _, skipped := range plan.Skipped {
		clog.WarnContext(ctx, "skipping entry that is neither a file nor a directory", "path", skipped)
		summary.Skipped++
	}

	n, err := remote.UploadFiles(ctx, client, plan.Files)
	summary.Bytes = n
	if errors.Is(err, ErrLocalRead) {
		return summary, err
	}
	if err != nil {
		return summary, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	summary.Files = len(plan.Files)

	return summary, nil
}
