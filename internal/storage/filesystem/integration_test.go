package filesystem

import (
	"os"
	"testing"
	"time"

	"commtrack/backend/internal/domain"
	"commtrack/backend/internal/service"
	"commtrack/backend/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIntegration_AttachmentServiceWithFilesystem 测试 AttachmentService 与文件系统存储的集成
func TestIntegration_AttachmentServiceWithFilesystem(t *testing.T) {
	// 创建临时存储目录
	tempDir, err := os.MkdirTemp("", "integration_test_*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	// 初始化文件系统存储
	fsStore, err := NewStore(tempDir)
	require.NoError(t, err)

	// 初始化内存数据库（用于元数据）
	memStore := memory.NewStore()

	// 创建 AttachmentService
	attSvc := service.NewAttachmentService(
		memStore, fsStore, service.NewIndexDispatcher(nil, nil, 0, nil), nil, nil,
	)

	t.Run("ingest and read attachment with filesystem storage", func(t *testing.T) {
		caseID := "case-001"
		require.NoError(t, memStore.SaveCase(&domain.Case{ID: caseID, Title: "集成测试案件"}))

		comm := &domain.Communication{
			ID:     "comm-001",
			CaseID: &caseID,
			Body:   "正文",
			Date:   time.Now(),
		}
		require.NoError(t, memStore.SaveCommunication(comm))

		content := []byte("%PDF-1.4 integration test bytes")
		att, err := attSvc.Ingest(comm, "report.pdf", "application/pdf", content)
		require.NoError(t, err)
		require.NotNil(t, att)
		assert.NotEmpty(t, att.StoragePath)

		// 字节内容落在文件系统，元数据在数据库
		loaded, err := attSvc.Read(att.ID)
		require.NoError(t, err)
		assert.Equal(t, content, loaded.Content)

		meta, err := memStore.GetAttachment(att.ID)
		require.NoError(t, err)
		assert.Nil(t, meta.Content)
		assert.Equal(t, int64(len(content)), meta.Size)
	})

	t.Run("duplicate rewrites bytes under target communication", func(t *testing.T) {
		target := &domain.Case{ID: "case-002", Embargo: true}
		require.NoError(t, memStore.SaveCase(target))
		targetComm := &domain.Communication{ID: "comm-002", CaseID: &target.ID, Date: time.Now()}
		require.NoError(t, memStore.SaveCommunication(targetComm))

		src, err := memStore.ListAttachmentsByCommunication("comm-001")
		require.NoError(t, err)
		require.Len(t, src, 1)

		dup, err := attSvc.Duplicate(&src[0], target, targetComm)
		require.NoError(t, err)
		assert.NotEqual(t, src[0].StoragePath, dup.StoragePath)

		// 两份内容互相独立
		require.NoError(t, fsStore.Delete(src[0].StoragePath))
		loaded, err := attSvc.Read(dup.ID)
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF-1.4 integration test bytes"), loaded.Content)
	})
}
