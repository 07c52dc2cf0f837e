package filesystem

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 测试辅助函数：创建临时测试目录
func setupTestStore(t *testing.T) (*Store, string) {
	tempDir, err := os.MkdirTemp("", "filesystem_test_*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)

	return store, tempDir
}

// 测试辅助函数：清理测试目录
func cleanupTestStore(t *testing.T, tempDir string) {
	err := os.RemoveAll(tempDir)
	require.NoError(t, err)
}

// TestNewStore 测试创建文件系统存储实例
func TestNewStore(t *testing.T) {
	t.Run("create store with valid path", func(t *testing.T) {
		tempDir, err := os.MkdirTemp("", "filesystem_test_*")
		require.NoError(t, err)
		defer os.RemoveAll(tempDir)

		store, err := NewStore(tempDir)
		require.NoError(t, err)
		assert.NotNil(t, store)
		// 在 Windows 上，路径可能被转换为小写
		assert.Equal(t, strings.ToLower(tempDir), strings.ToLower(store.basePath))
	})

	t.Run("create store creates base directory if not exists", func(t *testing.T) {
		tempDir, err := os.MkdirTemp("", "filesystem_test_*")
		require.NoError(t, err)
		defer os.RemoveAll(tempDir)

		newPath := filepath.Join(tempDir, "new", "nested", "path")
		store, err := NewStore(newPath)
		require.NoError(t, err)
		assert.NotNil(t, store)

		// 验证目录已创建
		_, err = os.Stat(newPath)
		assert.NoError(t, err)
	})

	t.Run("reject empty path", func(t *testing.T) {
		_, err := NewStore("   ")
		assert.Error(t, err)
	})
}

// TestSaveAndRead 测试附件内容的写入与读取
func TestSaveAndRead(t *testing.T) {
	store, tempDir := setupTestStore(t)
	defer cleanupTestStore(t, tempDir)

	content := []byte("%PDF-1.4 test content")

	relPath, err := store.Save("comm-001", "att-001", "report.pdf", content)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("comm-001", "att-001", "report.pdf"), relPath)

	got, err := store.Read(relPath)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

// TestSaveSanitizesFilename 测试文件名清洗
func TestSaveSanitizesFilename(t *testing.T) {
	store, tempDir := setupTestStore(t)
	defer cleanupTestStore(t, tempDir)

	t.Run("path components stripped", func(t *testing.T) {
		relPath, err := store.Save("comm-001", "att-002", "../../etc/passwd", []byte("x"))
		require.NoError(t, err)
		assert.False(t, strings.Contains(relPath, ".."))

		got, err := store.Read(relPath)
		require.NoError(t, err)
		assert.Equal(t, []byte("x"), got)
	})

	t.Run("unsafe characters replaced", func(t *testing.T) {
		relPath, err := store.Save("comm-001", "att-003", `re:port*?.pdf`, []byte("y"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("comm-001", "att-003", "re_port__.pdf"), relPath)
	})

	t.Run("empty filename falls back", func(t *testing.T) {
		relPath, err := store.Save("comm-001", "att-004", "..", []byte("z"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("comm-001", "att-004", "attachment"), relPath)
	})
}

// TestReadRejectsTraversal 测试路径穿越防护
func TestReadRejectsTraversal(t *testing.T) {
	store, tempDir := setupTestStore(t)
	defer cleanupTestStore(t, tempDir)

	_, err := store.Read("../outside.txt")
	assert.Error(t, err)

	_, err = store.Read("comm-001/../../outside.txt")
	assert.Error(t, err)
}

// TestReadMissing 测试读取不存在的附件
func TestReadMissing(t *testing.T) {
	store, tempDir := setupTestStore(t)
	defer cleanupTestStore(t, tempDir)

	_, err := store.Read("comm-001/att-001/ghost.pdf")
	assert.Error(t, err)
}

// TestDelete 测试删除单个附件目录
func TestDelete(t *testing.T) {
	store, tempDir := setupTestStore(t)
	defer cleanupTestStore(t, tempDir)

	relPath, err := store.Save("comm-001", "att-001", "report.pdf", []byte("content"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(relPath))

	_, err = store.Read(relPath)
	assert.Error(t, err)

	// 附件目录整体删除
	_, err = os.Stat(filepath.Join(tempDir, "comm-001", "att-001"))
	assert.True(t, os.IsNotExist(err))
}

// TestDeleteCommunication 测试级联删除通信下的全部附件
func TestDeleteCommunication(t *testing.T) {
	store, tempDir := setupTestStore(t)
	defer cleanupTestStore(t, tempDir)

	_, err := store.Save("comm-001", "att-001", "a.pdf", []byte("a"))
	require.NoError(t, err)
	_, err = store.Save("comm-001", "att-002", "b.pdf", []byte("b"))
	require.NoError(t, err)
	_, err = store.Save("comm-002", "att-003", "c.pdf", []byte("c"))
	require.NoError(t, err)

	require.NoError(t, store.DeleteCommunication("comm-001"))

	_, err = os.Stat(filepath.Join(tempDir, "comm-001"))
	assert.True(t, os.IsNotExist(err))

	// 其他通信的附件不受影响
	got, err := store.Read(filepath.Join("comm-002", "att-003", "c.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), got)
}

// TestDeleteCommunicationRejectsInvalidID 测试非法通信 ID 防护
func TestDeleteCommunicationRejectsInvalidID(t *testing.T) {
	store, tempDir := setupTestStore(t)
	defer cleanupTestStore(t, tempDir)

	assert.Error(t, store.DeleteCommunication(""))
	assert.Error(t, store.DeleteCommunication("a/b"))
}
