// Package config 负责把命令行输入解析为一次上传任务的配置（TransferRequest），
// 以及交互式密码输入。不读取配置文件，也不读取环境变量。
package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/hwuu/serveragent/internal/remote"
)

const (
	DefaultPort    = remote.DefaultPort
	DefaultTimeout = remote.DefaultDialTimeout // SSH 建连超时

	// 命令行参数名（长格式）
	FlagHost     = "ip_address"
	FlagUsername = "username"
	FlagPassword = "password"
	FlagPath     = "path"

	redacted = "******"
)

var (
	ErrMissingField    = errors.New("missing required argument")
	ErrInvalidArgument = errors.New("invalid argument")
	// 主机密钥选项由 remote.NewHostKeyCallback 在建连前校验
	ErrHostKeyPolicy   = remote.ErrHostKeyPolicy
)

// HostKeyPolicy 主机密钥校验策略。
// 默认 InsecureIgnoreHostKey=true：接受任意主机密钥，这是已知的信任缺口。
type HostKeyPolicy struct {
	InsecureIgnoreHostKey bool
	KnownHostsFile        string
}

// TransferRequest 一次上传任务，进程内构造一次，之后不再修改
type TransferRequest struct {
	Host      string
	Username  string
	Password  string // 仅保存在内存中，不写日志
	LocalPath string

	Port          int
	Timeout       time.Duration
	HostKeyPolicy HostKeyPolicy
}

// NewTransferRequest 创建带默认值的 TransferRequest
func NewTransferRequest(host, username, password, localPath string) TransferRequest {
	return TransferRequest{
		Host:      host,
		Username:  username,
		Password:  password,
		LocalPath: localPath,
		Port:      DefaultPort,
		Timeout:   DefaultTimeout,
		HostKeyPolicy: HostKeyPolicy{
			InsecureIgnoreHostKey: true,
		},
	}
}

// Validate 检查四个必填字段，在任何网络操作之前调用。
// 不校验 IP 格式和密码强度，这些交给连接阶段。
func (r TransferRequest) Validate() error {
	required := []struct {
		flag  string
		value string
	}{
		{FlagHost, r.Host},
		{FlagUsername, r.Username},
		{FlagPassword, r.Password},
		{FlagPath, r.LocalPath},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("%w: --%s", ErrMissingField, f.flag)
		}
	}

	if r.Port <= 0 || r.Port > 65535 {
		return fmt.Errorf("%w: --port %d", ErrInvalidArgument, r.Port)
	}
	return nil
}

// CommandLine 渲染等价的命令行（密码打码），用于 debug 日志
func (r TransferRequest) CommandLine(program string) string {
	password := ""
	if r.Password != "" {
		password = redacted
	}
	args := []string{
		program,
		"-ip", r.Host,
		"-u", r.Username,
		"-s", password,
		"-p", r.LocalPath,
	}
	if r.Port != DefaultPort {
		args = append(args, "--port", strconv.Itoa(r.Port))
	}
	if !r.HostKeyPolicy.InsecureIgnoreHostKey {
		args = append(args, "--insecure-ignore-host-key=false", "--known-hosts", r.HostKeyPolicy.KnownHostsFile)
	}
	return shellquote.Join(args...)
}

// String 实现 fmt.Stringer，避免密码被意外打印
func (r TransferRequest) String() string {
	return fmt.Sprintf("%s@%s (%s)", r.Username, r.Host, r.LocalPath)
}
