package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

var (
	ErrSSHDial       = errors.New("SSH connection failed")
	ErrSFTPSession   = errors.New("SFTP session failed")
	ErrHostKeyPolicy = errors.New("invalid host key policy")
)

const (
	DefaultPort        = 22
	DefaultDialTimeout = 10 * time.Second
)

// DialFunc 建立一个 SFTP 会话。只调用一次，不重试。
type DialFunc func(ctx context.Context) (SFTPClient, error)

// DialOptions SSH 连接参数（密码认证）
type DialOptions struct {
	Host     string // IP、主机名或 host:port
	Port     int
	User     string
	Password string
	Timeout  time.Duration

	// HostKeyCallback 为 nil 时接受任意主机密钥
	HostKeyCallback ssh.HostKeyCallback
}

func (o *DialOptions) withDefaults() {
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultDialTimeout
	}
	if o.HostKeyCallback == nil {
		o.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}
}

// ClientConfig 生成 ssh.ClientConfig。
// 除 password 外同时应答 keyboard-interactive，很多只开了密码登录的 sshd 走的是后者。
func (o DialOptions) ClientConfig() *ssh.ClientConfig {
	o.withDefaults()
	password := o.Password
	return &ssh.ClientConfig{
		User: o.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: o.HostKeyCallback,
		Timeout:         o.Timeout,
	}
}

// NewHostKeyCallback 根据策略返回主机密钥校验函数。
// insecure=true 时接受任意主机密钥（ssh.InsecureIgnoreHostKey），这是已知的信任缺口；
// 否则使用 known_hosts 文件校验。
func NewHostKeyCallback(insecure bool, knownHostsFile string) (ssh.HostKeyCallback, error) {
	if insecure {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if knownHostsFile == "" {
		return nil, fmt.Errorf("%w: known_hosts file is required when host key verification is enabled", ErrHostKeyPolicy)
	}
	cb, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHostKeyPolicy, err)
	}
	return cb, nil
}

// JoinHostPort 拼接 ssh.Dial 使用的地址。
// host 已经带端口（host:port、[v6]:port）时原样返回；裸 IPv6 会加方括号。
func JoinHostPort(host string, port int) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
