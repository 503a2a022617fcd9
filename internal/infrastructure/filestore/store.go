// Package filestore 管理消息附件在本地磁盘上的存取
package filestore

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"qu2data_server/pkg/errorx"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SavedFile 落盘成功后的附件描述
type SavedFile struct {
	Name        string // 客户端原始文件名
	StoragePath string // 相对上传目录的存储路径
	MimeType    string // 嗅探得到的内容类型
	Size        int64  // 字节数
}

// Store 本地磁盘文件仓库
// 存储名加 uuid 前缀，同名上传互不覆盖
type Store struct {
	dir string
}

// NewStore 创建文件仓库并确保目录存在
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errorx.Wrapf(err, errorx.CodeStorageError, "创建上传目录 %s", dir)
	}
	return &Store{dir: dir}, nil
}

// Dir 返回仓库根目录
func (s *Store) Dir() string {
	return s.dir
}

// Save 写入一个附件
// 先写临时文件再原子重命名，读者不会看到半写状态
func (s *Store) Save(name string, r io.Reader) (*SavedFile, error) {
	// 去掉客户端传来的路径部分，防止目录穿越
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == ".." || base == "/" || base == "" {
		return nil, errorx.New(errorx.CodeInvalidParam, "nom de fichier invalide")
	}
	storageName := uuid.NewString() + "_" + base

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeStorageError, "创建临时文件")
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			zap.L().Warn("remove temp upload failed", zap.String("path", tmpPath), zap.Error(err))
		}
	}

	// 前512字节用于内容类型嗅探，不信任客户端声明
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		cleanup()
		return nil, errorx.Wrap(err, errorx.CodeStorageError, "读取上传内容")
	}
	head = head[:n]
	mimeType := detectMime(head)

	written, err := tmp.Write(head)
	if err != nil {
		cleanup()
		return nil, errorx.Wrap(err, errorx.CodeStorageError, "写入附件")
	}
	rest, err := io.Copy(tmp, r)
	if err != nil {
		cleanup()
		return nil, errorx.Wrap(err, errorx.CodeStorageError, "写入附件")
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return nil, errorx.Wrap(err, errorx.CodeStorageError, "关闭附件文件")
	}

	finalPath := filepath.Join(s.dir, storageName)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		cleanup()
		return nil, errorx.Wrap(err, errorx.CodeStorageError, "落盘附件")
	}

	return &SavedFile{
		Name:        base,
		StoragePath: storageName,
		MimeType:    mimeType,
		Size:        int64(written) + rest,
	}, nil
}

// Remove 删除一个附件，文件不存在视为成功
func (s *Store) Remove(storagePath string) error {
	full := filepath.Join(s.dir, filepath.Base(storagePath))
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return errorx.Wrapf(err, errorx.CodeStorageError, "删除附件 %s", storagePath)
	}
	return nil
}

// detectMime 按内容嗅探类型
func detectMime(head []byte) string {
	if len(head) == 0 {
		return "application/octet-stream"
	}
	return http.DetectContentType(head)
}
