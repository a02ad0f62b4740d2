package remote_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwuu/serveragent/internal/remote"
)

// --- Mock implementations ---

type MockSFTPClient struct {
	GetwdFunc      func() (string, error)
	MkdirAllFunc   func(remoteDir string) error
	UploadFileFunc func(ctx context.Context, localPath, remotePath string) (int64, error)
	CloseFunc      func() error
}

func (m *MockSFTPClient) Getwd() (string, error) {
	if m.GetwdFunc != nil {
		return m.GetwdFunc()
	}
	return "/home/alice", nil
}

func (m *MockSFTPClient) MkdirAll(remoteDir string) error {
	if m.MkdirAllFunc != nil {
		return m.MkdirAllFunc(remoteDir)
	}
	return nil
}

func (m *MockSFTPClient) UploadFile(ctx context.Context, localPath, remotePath string) (int64, error) {
	return m.UploadFileFunc(ctx, localPath, remotePath)
}

func (m *MockSFTPClient) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// --- UploadFiles ---

func TestUploadFiles_InOrder(t *testing.T) {
	var uploaded []string
	mock := &MockSFTPClient{
		UploadFileFunc: func(ctx context.Context, localPath, remotePath string) (int64, error) {
			uploaded = append(uploaded, remotePath)
			return 10, nil
		},
	}

	files := []remote.FilePair{
		{LocalPath: "/tmp/site/index.html", RemotePath: "site/index.html"},
		{LocalPath: "/tmp/site/css/main.css", RemotePath: "site/css/main.css"},
		{LocalPath: "/tmp/site/js/app.js", RemotePath: "site/js/app.js"},
	}

	n, err := remote.UploadFiles(context.Background(), mock, files)
	require.NoError(t, err)
	assert.Equal(t, int64(30), n)
	assert.Equal(t, []string{"site/index.html", "site/css/main.css", "site/js/app.js"}, uploaded)
}

func TestUploadFiles_StopsOnError(t *testing.T) {
	callCount := 0
	mock := &MockSFTPClient{
		UploadFileFunc: func(ctx context.Context, localPath, remotePath string) (int64, error) {
			callCount++
			if callCount == 2 {
				return 3, errors.New("connection lost")
			}
			return 5, nil
		},
	}

	files := []remote.FilePair{
		{LocalPath: "/tmp/a.txt", RemotePath: "a.txt"},
		{LocalPath: "/tmp/b.txt", RemotePath: "b.txt"},
		{LocalPath: "/tmp/c.txt", RemotePath: "c.txt"},
	}

	n, err := remote.UploadFiles(context.Background(), mock, files)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/tmp/b.txt")
	assert.Equal(t, 2, callCount)
	assert.Equal(t, int64(8), n)
}

func TestUploadFiles_Empty(t *testing.T) {
	mock := &MockSFTPClient{
		UploadFileFunc: func(ctx context.Context, localPath, remotePath string) (int64, error) {
			t.Fatal("unexpected upload")
			return 0, nil
		},
	}

	n, err := remote.UploadFiles(context.Background(), mock, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
