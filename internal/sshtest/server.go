// Package sshtest 提供进程内的 SSH 服务器（密码认证 + sftp 子系统），仅供测试使用。
// sftp 子系统由 pkg/sftp 的 Server 实现，工作目录为一个临时目录。
package sshtest

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// Server 进程内 SSH 服务器。
// 由 NewServer 创建并立即开始监听 127.0.0.1 的随机端口，测试结束时自动关闭。
type Server struct {
	Host    string
	Port    int
	Root    string        // sftp 会话的默认目录
	HostKey ssh.PublicKey // 服务器的主机公钥

	listener net.Listener
	config   *ssh.ServerConfig

	mu    sync.Mutex
	conns []net.Conn
	wg    sync.WaitGroup

	sessions atomic.Int32
}

// NewServer 启动一个只接受 user/password 的服务器
func NewServer(t *testing.T, user, password string) *Server {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == user && string(pass) == password {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
	}
	config.AddHostKey(signer)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().(*net.TCPAddr)

	s := &Server{
		Host:     addr.IP.String(),
		Port:     addr.Port,
		Root:     t.TempDir(),
		HostKey:  signer.PublicKey(),
		listener: listener,
		config:   config,
	}

	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)

	return s
}

// Addr 返回 host:port
func (s *Server) Addr() string {
	return net.JoinHostPort(s.Host, fmt.Sprintf("%d", s.Port))
}

// Sessions 返回已打开的 sftp 子系统会话数
func (s *Server) Sessions() int {
	return int(s.sessions.Load())
}

// Close 关闭监听和所有连接，等待所有 goroutine 退出
func (s *Server) Close() {
	s.listener.Close()
	s.mu.Lock()
	for _, c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// handleConn 完成 SSH 握手，只接受 session 类型的 channel
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		// 认证失败等情况，测试里是预期内的
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, channelReqs, err := newChannel.Accept()
		if err != nil {
			continue
		}
		s.wg.Add(1)
		go s.handleSession(channel, channelReqs)
	}
}

// handleSession 只响应 "subsystem sftp" 请求，其余请求一律拒绝
func (s *Server) handleSession(channel ssh.Channel, reqs <-chan *ssh.Request) {
	defer s.wg.Done()
	defer channel.Close()

	for req := range reqs {
		// payload 是 SSH string：4 字节长度 + 名字
		ok := req.Type == "subsystem" && len(req.Payload) > 4 && string(req.Payload[4:]) == "sftp"
		if ok {
			s.sessions.Add(1)
		}
		if req.WantReply {
			req.Reply(ok, nil)
		}
		if !ok {
			continue
		}

		go ssh.DiscardRequests(reqs)

		server, err := sftp.NewServer(channel, sftp.WithServerWorkingDirectory(s.Root))
		if err != nil {
			return
		}
		server.Serve()
		server.Close()
		return
	}
}
