package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"
)

// ErrLocalRead 读取本地文件或目录失败，与 SSH/SFTP 无关
var ErrLocalRead = errors.New("failed to read local path")

// SFTPClient 抽象一个已认证的 SFTP 会话，支持 mock 测试
type SFTPClient interface {
	// Getwd 返回会话的默认远程目录
	Getwd() (string, error)
	MkdirAll(remoteDir string) error
	// UploadFile 把本地文件流式写入远程路径，返回写入字节数
	UploadFile(ctx context.Context, localPath, remotePath string) (int64, error)
	Close() error
}

// FilePair 一个待上传文件：本地路径 -> 远程路径
type FilePair struct {
	LocalPath  string
	RemotePath string
}

// UploadFiles 按顺序上传文件，任一失败立即返回错误。
// 返回已成功写入的总字节数。
func UploadFiles(ctx context.Context, client SFTPClient, files []FilePair) (int64, error) {
	var total int64
	for _, f := range files {
		clog.DebugContext(ctx, "uploading file", "local", f.LocalPath, "remote", f.RemotePath)
		n, err := client.UploadFile(ctx, f.LocalPath, f.RemotePath)
		total += n
		if err != nil {
			return total, fmt.Errorf("failed to upload %s: %w", f.LocalPath, err)
		}
	}
	return total, nil
}
