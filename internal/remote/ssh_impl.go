package remote

// ssh_impl.go 提供 SSH/SFTP 的真实实现（非 mock）：建连、SFTP 上传。

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// realSFTPClient 真实 SFTP 客户端实现
type realSFTPClient struct {
	sftpClient *sftp.Client
	sshClient  *ssh.Client
}

// NewSFTPDialFunc 创建真实 SFTP 连接的 DialFunc
func NewSFTPDialFunc(opts DialOptions) DialFunc {
	return func(ctx context.Context) (SFTPClient, error) {
		return NewSFTPClient(ctx, opts)
	}
}

// NewSFTPClient 建立 SSH 连接并在其上打开 SFTP 会话
func NewSFTPClient(ctx context.Context, opts DialOptions) (SFTPClient, error) {
	opts.withDefaults()
	config := opts.ClientConfig()
	addr := JoinHostPort(opts.Host, opts.Port)

	sshConn, err := dialContext(ctx, addr, config)
	if err != nil {
		return nil, fmt.Errorf("%w (%s): %w", ErrSSHDial, addr, err)
	}

	sftpConn, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return nil, fmt.Errorf("%w: %w", ErrSFTPSession, err)
	}

	return &realSFTPClient{
		sftpClient: sftpConn,
		sshClient:  sshConn,
	}, nil
}

// dialContext 等价于 ssh.Dial，但 TCP 建连和握手都受 ctx 与 config.Timeout 约束
func dialContext(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	d := net.Dialer{Timeout: config.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	if config.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(config.Timeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetDeadline(time.Time{})

	return ssh.NewClient(c, chans, reqs), nil
}

func (c *realSFTPClient) Getwd() (string, error) {
	return c.sftpClient.Getwd()
}

func (c *realSFTPClient) MkdirAll(remoteDir string) error {
	if err := c.sftpClient.MkdirAll(remoteDir); err != nil {
		return fmt.Errorf("failed to create remote directory %s: %w", remoteDir, err)
	}
	return nil
}

// UploadFile 上传本地文件到远程路径（自动创建父目录）。
// 权限位和修改时间尽力保留，失败只记 warning。
func (c *realSFTPClient) UploadFile(ctx context.Context, localPath, remotePath string) (int64, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %w", ErrLocalRead, localPath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: stat %s: %w", ErrLocalRead, localPath, err)
	}

	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := c.MkdirAll(dir); err != nil {
			return 0, err
		}
	}

	dst, err := c.sftpClient.Create(remotePath)
	if err != nil {
		return 0, fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
	}

	n, err := io.Copy(dst, src)
	if err != nil {
		dst.Close()
		return n, fmt.Errorf("failed to write remote file %s: %w", remotePath, err)
	}
	if err := dst.Close(); err != nil {
		return n, fmt.Errorf("failed to close remote file %s: %w", remotePath, err)
	}

	if err := c.sftpClient.Chmod(remotePath, info.Mode().Perm()); err != nil {
		clog.WarnContext(ctx, "failed to set remote file mode", "path", remotePath, "error", err)
	}
	if err := c.sftpClient.Chtimes(remotePath, time.Now(), info.ModTime()); err != nil {
		clog.WarnContext(ctx, "failed to set remote file times", "path", remotePath, "error", err)
	}

	return n, nil
}

// Close 依次关闭 SFTP 会话和 SSH 连接
func (c *realSFTPClient) Close() error {
	c.sftpClient.Close()
	return c.sshClient.Close()
}
