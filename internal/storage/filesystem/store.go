package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store 附件字节内容的文件系统存储实现。
//
// 目录布局: {basePath}/{communicationID}/{attachmentID}/{filename}
// 数据库只保存相对于 basePath 的路径。
type Store struct {
	basePath string
}

// NewStore 创建文件系统存储实例。
func NewStore(basePath string) (*Store, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("attachment storage path is required")
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	return &Store{basePath: absPath}, nil
}

// Save 保存附件内容，返回相对存储路径。
func (s *Store) Save(commID, attachmentID, filename string, content []byte) (string, error) {
	dir := filepath.Join(s.basePath, commID, attachmentID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create attachment directory: %w", err)
	}

	target := filepath.Join(dir, sanitizeFilename(filename))
	if err := os.WriteFile(target, content, 0644); err != nil {
		return "", fmt.Errorf("write attachment: %w", err)
	}

	relPath, err := filepath.Rel(s.basePath, target)
	if err != nil {
		return target, nil
	}
	return relPath, nil
}

// Read 读取附件内容。路径不存在时返回 os.ErrNotExist 包装错误。
func (s *Store) Read(relPath string) ([]byte, error) {
	target, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	return content, nil
}

// Delete 删除单个附件的存储目录。
func (s *Store) Delete(relPath string) error {
	target, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	// 删除附件所在的 {attachmentID} 目录
	return os.RemoveAll(filepath.Dir(target))
}

// DeleteCommunication 删除通信下全部附件内容（管理员级联删除用）。
func (s *Store) DeleteCommunication(commID string) error {
	if commID == "" || strings.Contains(commID, string(filepath.Separator)) {
		return fmt.Errorf("invalid communication id")
	}
	return os.RemoveAll(filepath.Join(s.basePath, commID))
}

// resolve 将相对路径解析到 basePath 下，拒绝路径穿越。
func (s *Store) resolve(relPath string) (string, error) {
	target := filepath.Join(s.basePath, relPath)
	if !strings.HasPrefix(target, s.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage path: %s", relPath)
	}
	return target, nil
}

// sanitizeFilename 去掉文件名中的路径成分与不安全字符。
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		name = "attachment"
	}
	return name
}
