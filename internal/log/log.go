// Package log 配置进程的日志：charmbracelet/log 输出到终端，
// 可选地通过 slog-multi 同时把 JSON 记录写入日志文件。logger 通过 clog 挂在 context 上。
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/chainguard-dev/clog"
	charmlog "github.com/charmbracelet/log"
	slogmulti "github.com/samber/slog-multi"
)

// Options 日志配置
type Options struct {
	Level   string    // debug / info / warn / error，空表示 info
	File    string    // 非空时额外写入 JSON 日志文件
	Console io.Writer // 终端输出，默认 stderr
}

// ParseLevel 解析日志级别
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Setup 构造 logger 并挂到 ctx 上，返回的 close 函数负责关闭日志文件
func Setup(ctx context.Context, opts Options) (context.Context, func(), error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return ctx, func() {}, err
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	consoleHandler := charmlog.NewWithOptions(console, charmlog.Options{
		Level:           charmlog.Level(level),
		ReportTimestamp: true,
		Prefix:          "server-agent",
	})

	handlers := []slog.Handler{consoleHandler}
	closer := func() {}

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return ctx, closer, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		closer = func() { f.Close() }
	}

	logger := clog.New(slogmulti.Fanout(handlers...))
	return clog.WithLogger(ctx, logger), closer, nil
}
