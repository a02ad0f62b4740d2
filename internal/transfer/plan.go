package transfer

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/kr/fs"

	"github.com/hwuu/serveragent/internal/remote"
)

// PathKind 本地路径类型
type PathKind int

const (
	KindOther PathKind = iota
	KindFile
	KindDir
)

func (k PathKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "directory"
	default:
		return "other"
	}
}

// Plan 一次上传要做的事：先建目录，再按顺序传文件。
// 远程路径都是相对路径，落在 SFTP 会话的默认目录下。
type Plan struct {
	Kind    PathKind
	Dirs    []string
	Files   []remote.FilePair
	Skipped []string // 目录树中既不是普通文件也不是目录的条目
}

// Classify 判断本地路径类型。
// 用 Lstat 判断存在性，再用 Stat 跟随符号链接判断类型；悬空的符号链接归为 KindOther。
func Classify(localPath string) (PathKind, error) {
	if _, err := os.Lstat(localPath); err != nil {
		if os.IsNotExist(err) {
			return KindOther, fmt.Errorf("%w: cannot find %s", ErrPathNotFound, localPath)
		}
		return KindOther, fmt.Errorf("%w: %w", ErrPathNotFound, err)
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return KindOther, nil
	}
	switch {
	case info.IsDir():
		return KindDir, nil
	case info.Mode().IsRegular():
		return KindFile, nil
	default:
		return KindOther, nil
	}
}

// BuildPlan 生成上传计划。
// 文件上传为 <base>；目录整棵上传为 <base>/<相对路径>，保留相对结构。
func BuildPlan(localPath string) (*Plan, error) {
	kind, err := Classify(localPath)
	if err != nil {
		return nil, err
	}

	cleaned := filepath.Clean(localPath)
	base := remoteBase(cleaned)
	plan := &Plan{Kind: kind}

	switch kind {
	case KindFile:
		plan.Files = []remote.FilePair{{LocalPath: cleaned, RemotePath: base}}
	case KindDir:
		if err := plan.walk(cleaned, base); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s is neither a file nor a directory", ErrUnsupportedPathType, localPath)
	}
	return plan, nil
}

// walk 遍历本地目录（kr/fs 的 Walker 使用 Lstat，不跟随符号链接）。
// root 本身是指向目录的符号链接时先解析。树内指向普通文件的符号链接按文件上传，
// 指向目录的不展开；悬空链接和特殊文件跳过。
func (p *Plan) walk(root, base string) error {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %w", ErrLocalRead, root, err)
	}
	root = resolved

	walker := fs.Walk(root)
	for walker.Step() {
		if err := walker.Err(); err != nil {
			return fmt.Errorf("%w: walk %s: %w", ErrLocalRead, walker.Path(), err)
		}

		rel, err := filepath.Rel(root, walker.Path())
		if err != nil {
			return fmt.Errorf("%w: %w", ErrLocalRead, err)
		}
		remotePath := path.Join(base, filepath.ToSlash(rel))

		info := walker.Stat()
		switch {
		case info.IsDir():
			p.Dirs = append(p.Dirs, remotePath)
		case info.Mode().IsRegular():
			p.Files = append(p.Files, remote.FilePair{LocalPath: walker.Path(), RemotePath: remotePath})
		case info.Mode()&os.ModeSymlink != 0 && isRegularFile(walker.Path()):
			p.Files = append(p.Files, remote.FilePair{LocalPath: walker.Path(), RemotePath: remotePath})
		default:
			p.Skipped = append(p.Skipped, walker.Path())
		}
	}
	return nil
}

// isRegularFile 跟随符号链接判断是否为普通文件
func isRegularFile(name string) bool {
	info, err := os.Stat(name)
	return err == nil && info.Mode().IsRegular()
}

// remoteBase 本地路径的最后一段；"." 之类没有名字的目录解析为绝对路径后再取
func remoteBase(cleaned string) string {
	base := filepath.Base(cleaned)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		if abs, err := filepath.Abs(cleaned); err == nil {
			base = filepath.Base(abs)
		}
	}
	if base == string(filepath.Separator) || base == "." {
		return "root"
	}
	return base
}
