// prompt.go 提供 CLI 交互式密码输入（掩码显示）。
// 用于 --ask-password，替代在命令行里明文传入密码。
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var ErrInterrupted = errors.New("interrupted")

// Prompter 封装 CLI 交互式输入，通过 reader/writer 抽象支持 mock 测试
type Prompter struct {
	reader  io.Reader
	writer  io.Writer
	scanner *bufio.Scanner
}

// NewPrompter 创建 Prompter（指定输入输出流）
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	return &Prompter{
		reader:  reader,
		writer:  writer,
		scanner: bufio.NewScanner(reader),
	}
}

// PromptPassword 密码输入，终端模式下每个字符显示为 *，支持退格删除。
// 非终端模式（管道、测试 mock）退化为按行读取。
func (p *Prompter) PromptPassword(message string) (string, error) {
	if f, ok := p.reader.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.writer, message)
		password, err := readPassword(f, p.writer)
		fmt.Fprintln(p.writer)
		if err != nil {
			return "", err
		}
		return string(password), nil
	}

	// 密码可能以空格开头或结尾，只去掉行尾的 \r
	fmt.Fprint(p.writer, message)
	if !p.scanner.Scan() {
		return "", p.scanner.Err()
	}
	return strings.TrimRight(p.scanner.Text(), "\r"), nil
}

// readPassword 从终端逐字符读取密码。
// 通过 term.MakeRaw 进入原始模式，退出时恢复终端状态。
func readPassword(f *os.File, echo io.Writer) ([]byte, error) {
	fd := int(f.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return term.ReadPassword(fd)
	}
	defer term.Restore(fd, oldState)

	var password []byte
	buf := make([]byte, 1)
	for {
		n, err := f.Read(buf)
		if err != nil || n == 0 {
			break
		}
		ch := buf[0]
		switch {
		case ch == '\r' || ch == '\n':
			return password, nil
		case ch == 3: // Ctrl+C
			return nil, ErrInterrupted
		case ch == 127 || ch == 8: // Backspace / Delete
			if len(password) > 0 {
				password = password[:len(password)-1]
				echo.Write([]byte("\b \b"))
			}
		default:
			password = append(password, ch)
			echo.Write([]byte("*"))
		}
	}
	return password, nil
}
