package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hwuu/serveragent/internal/config"
	"github.com/hwuu/serveragent/internal/log"
	"github.com/hwuu/serveragent/internal/remote"
	"github.com/hwuu/serveragent/internal/transfer"
)

// 构建时通过 ldflags 注入
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	programName = "server-agent"
	usageHint   = programName + " -ip IP_ADDRESS -u USERNAME -s PASSWORD -p LOCAL_PATH"
)

// DialFactory 根据 TransferRequest 创建 DialFunc，测试时可替换
type DialFactory func(req config.TransferRequest) (remote.DialFunc, error)

// exitError 携带退出码。出现在这里的错误已经记过日志并打印过了。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

type rootOptions struct {
	host        string
	username    string
	password    string
	localPath   string
	askPassword bool

	port                  int
	timeout               time.Duration
	insecureIgnoreHostKey bool
	knownHosts            string

	logLevel string
	logFile  string
}

func newRootCmd(newDial DialFactory) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   programName,
		Short: "通过 SFTP 把本地文件或目录上传到远程主机",
		Long: "server-agent: 使用用户名/密码登录一台远程主机，通过 SFTP 上传一个本地文件或整个目录。\n" +
			"文件落在 SFTP 会话的默认目录下。默认不校验主机密钥。",
		Example:       "  " + usageHint,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(cmd, opts, newDial)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&opts.host, config.FlagHost, "", "IP address of the remote machine (-ip)")
	flags.StringVarP(&opts.username, config.FlagUsername, "u", "", "username for the remote machine")
	flags.StringVarP(&opts.password, config.FlagPassword, "s", "", "password for the remote machine (visible in process listings, see --ask-password)")
	flags.StringVarP(&opts.localPath, config.FlagPath, "p", "", "file or directory path to copy")
	flags.BoolVar(&opts.askPassword, "ask-password", false, "read the password from the terminal instead of -s")

	flags.IntVar(&opts.port, "port", config.DefaultPort, "SSH port")
	flags.DurationVar(&opts.timeout, "timeout", config.DefaultTimeout, "SSH connect timeout")
	flags.BoolVar(&opts.insecureIgnoreHostKey, "insecure-ignore-host-key", true, "accept any host key presented by the remote machine")
	flags.StringVar(&opts.knownHosts, "known-hosts", "", "known_hosts file used when host key verification is enabled")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFile, "log-file", "", "also write JSON log records to this file")

	for _, name := range []string{config.FlagHost, config.FlagUsername, config.FlagPath} {
		_ = rootCmd.MarkFlagRequired(name)
	}
	rootCmd.MarkFlagsOneRequired(config.FlagPassword, "ask-password")
	rootCmd.MarkFlagsMutuallyExclusive(config.FlagPassword, "ask-password")

	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// runTransfer 参数已通过 cobra 校验，构造 TransferRequest 并执行上传
func runTransfer(cmd *cobra.Command, opts *rootOptions, newDial DialFactory) error {
	ctx, closeLog, err := log.Setup(cmd.Context(), log.Options{
		Level:   opts.logLevel,
		File:    opts.logFile,
		Console: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer closeLog()

	password := opts.password
	if opts.askPassword {
		prompter := config.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
		password, err = prompter.PromptPassword(fmt.Sprintf("%s@%s's password: ", opts.username, opts.host))
		if err != nil {
			return err
		}
	}

	req := config.NewTransferRequest(opts.host, opts.username, password, opts.localPath)
	req.Port = opts.port
	req.Timeout = opts.timeout
	req.HostKeyPolicy = config.HostKeyPolicy{
		InsecureIgnoreHostKey: opts.insecureIgnoreHostKey,
		KnownHostsFile:        opts.knownHosts,
	}
	if err := req.Validate(); err != nil {
		return err
	}
	clog.DebugContext(ctx, "parsed command line arguments", "command", req.CommandLine(programName))
	if req.HostKeyPolicy.InsecureIgnoreHostKey {
		clog.DebugContext(ctx, "host key verification is disabled, any host key will be accepted")
	}

	dial, err := newDial(req)
	if err != nil {
		return err
	}

	executor := &transfer.Executor{
		Dial:   dial,
		Output: cmd.OutOrStdout(),
	}
	if _, err := executor.Execute(ctx, req); err != nil {
		return &exitError{code: transfer.ExitCode(err), err: err}
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", programName, version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
			fmt.Fprintf(out, "  go:     %s\n", runtime.Version())
		},
	}
}

// normalizeArgs 把 "-ip" 改写为 "--ip_address"。
// pflag 的短参数只能是一个字母，"-ip" 会被解析成 "-i -p"。
// 需要取值的参数后面那一项原样保留，密码等取值可以是任意字符串，包括 "-ip"。
func normalizeArgs(flags *pflag.FlagSet, args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--":
			return append(out, args[i:]...)
		case a == "-ip":
			out = append(out, "--"+config.FlagHost)
			if i+1 < len(args) {
				i++
				out = append(out, args[i])
			}
		case strings.HasPrefix(a, "-ip="):
			out = append(out, "--"+config.FlagHost+"="+strings.TrimPrefix(a, "-ip="))
		default:
			out = append(out, a)
			if takesValue(flags, a) && i+1 < len(args) {
				i++
				out = append(out, args[i])
			}
		}
	}
	return out
}

// takesValue 判断 arg 是否是一个取值在下一项的参数（"--name" 或 "-x" 形式，不含 "="）
func takesValue(flags *pflag.FlagSet, arg string) bool {
	var f *pflag.Flag
	switch {
	case strings.HasPrefix(arg, "--"):
		if strings.Contains(arg, "=") {
			return false
		}
		f = flags.Lookup(arg[2:])
	case len(arg) == 2 && arg[0] == '-':
		f = flags.ShorthandLookup(arg[1:])
	}
	// bool 参数设置了 NoOptDefVal，不消耗下一项
	return f != nil && f.NoOptDefVal == ""
}

// printUsageError 参数解析失败时的提示，输出到 stdout
func printUsageError(w io.Writer, err error) {
	fmt.Fprintln(w, "Error while parsing arguments")
	fmt.Fprintf(w, "  %v\n", err)
	fmt.Fprintln(w, "Expected command:")
	fmt.Fprintf(w, "  %s\n", usageHint)
}

// run 执行 CLI 并返回进程退出码
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, newDial DialFactory) int {
	cmd := newRootCmd(newDial)
	cmd.SetArgs(normalizeArgs(cmd.Flags(), args))
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return transfer.ExitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	printUsageError(stdout, err)
	return transfer.ExitArgument
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, transfer.NewDialFunc)
	stop()
	os.Exit(code)
}
