package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwuu/serveragent/internal/config"
	"github.com/hwuu/serveragent/internal/remote"
)

func TestNewTransferRequest_Defaults(t *testing.T) {
	req := config.NewTransferRequest("10.0.0.5", "alice", "secret", "./report.txt")

	assert.Equal(t, config.DefaultPort, req.Port)
	assert.Equal(t, 10*time.Second, req.Timeout)
	assert.True(t, req.HostKeyPolicy.InsecureIgnoreHostKey, "host key checking must stay disabled by default")
	require.NoError(t, req.Validate())
}

func TestValidate_MissingField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *config.TransferRequest)
		flag   string
	}{
		{"host", func(r *config.TransferRequest) { r.Host = "" }, "--ip_address"},
		{"username", func(r *config.TransferRequest) { r.Username = "" }, "--username"},
		{"password", func(r *config.TransferRequest) { r.Password = "" }, "--password"},
		{"path", func(r *config.TransferRequest) { r.LocalPath = "" }, "--path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := config.NewTransferRequest("10.0.0.5", "alice", "secret", "./report.txt")
			tt.mutate(&req)

			err := req.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, config.ErrMissingField), "got %v", err)
			assert.Contains(t, err.Error(), tt.flag)
		})
	}
}

func TestValidate_AnyHostStringAccepted(t *testing.T) {
	// IP 格式不做校验，交给连接阶段
	req := config.NewTransferRequest("not an ip", "alice", "x", "./report.txt")
	assert.NoError(t, req.Validate())
}

func TestValidate_Port(t *testing.T) {
	for _, port := range []int{0, -1, 65536} {
		req := config.NewTransferRequest("10.0.0.5", "alice", "secret", "./report.txt")
		req.Port = port
		err := req.Validate()
		assert.ErrorIs(t, err, config.ErrInvalidArgument, "port %d", port)
	}
}

func TestDefaults_SharedWithRemote(t *testing.T) {
	assert.Equal(t, remote.DefaultPort, config.DefaultPort)
	assert.Equal(t, remote.DefaultDialTimeout, config.DefaultTimeout)

	// 主机密钥选项只在建连前校验一次，Validate 不重复检查
	req := config.NewTransferRequest("10.0.0.5", "alice", "secret", "./report.txt")
	req.HostKeyPolicy.InsecureIgnoreHostKey = false
	assert.NoError(t, req.Validate())

	_, err := remote.NewHostKeyCallback(req.HostKeyPolicy.InsecureIgnoreHostKey, req.HostKeyPolicy.KnownHostsFile)
	assert.ErrorIs(t, err, config.ErrHostKeyPolicy)
}

func TestCommandLine_RedactsPassword(t *testing.T) {
	req := config.NewTransferRequest("10.0.0.5", "alice", "s3cr3t pass", "./my report.txt")

	line := req.CommandLine("server-agent")
	assert.NotContains(t, line, "s3cr3t")
	assert.True(t, strings.HasPrefix(line, "server-agent -ip 10.0.0.5 -u alice -s "), line)
	assert.Contains(t, line, `'./my report.txt'`)
	assert.NotContains(t, line, "--port")
}

func TestCommandLine_NonDefaultOptions(t *testing.T) {
	req := config.NewTransferRequest("10.0.0.5", "alice", "secret", "./report.txt")
	req.Port = 2222
	req.HostKeyPolicy = config.HostKeyPolicy{KnownHostsFile: "/tmp/known_hosts"}

	line := req.CommandLine("server-agent")
	assert.Contains(t, line, "--port 2222")
	assert.Contains(t, line, "--insecure-ignore-host-key=false --known-hosts /tmp/known_hosts")
}

func TestString_DoesNotLeakPassword(t *testing.T) {
	req := config.NewTransferRequest("10.0.0.5", "alice", "secret", "./report.txt")
	assert.Equal(t, "alice@10.0.0.5 (./report.txt)", req.String())
}
