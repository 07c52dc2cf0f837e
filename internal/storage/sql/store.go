package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"   // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib"   // PostgreSQL driver (pgx)
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"commtrack/backend/internal/domain"
	"commtrack/backend/internal/storage"
)

// Store SQL 数据库存储实现（支持 MySQL 5.7+ 和 PostgreSQL）
type Store struct {
	db         *sql.DB
	gormDB     *gorm.DB
	driverName string // "mysql" or "postgres"
}

// NewStore 创建 SQL 数据库存储
func NewStore(
	driverName string,
	dsn string,
	maxOpenConns int,
	maxIdleConns int,
	connMaxLifetime time.Duration,
) (*Store, error) {
	if driverName != "mysql" && driverName != "postgres" {
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", driverName)
	}

	// postgres 经由 pgx 的 database/sql 适配驱动
	sqlDriver := driverName
	if driverName == "postgres" {
		sqlDriver = "pgx"
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var gormDB *gorm.DB
	if driverName == "mysql" {
		gormDB, err = gorm.Open(gormmysql.New(gormmysql.Config{Conn: db}), gormConfig)
	} else {
		gormDB, err = gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db}), gormConfig)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}

	store := &Store{
		db:         db,
		gormDB:     gormDB,
		driverName: driverName,
	}

	// 自动执行数据库迁移
	if err := store.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Migrate 建表与补列。
func (s *Store) Migrate() error {
	return s.gormDB.AutoMigrate(
		&domain.Agency{},
		&domain.Case{},
		&domain.Communication{},
		&domain.Attachment{},
		&domain.EmailRecord{},
		&domain.FaxRecord{},
		&domain.MailRecord{},
		&domain.WebRecord{},
	)
}

// ========== Case Repository ==========

// SaveCase 保存案件投影。
func (s *Store) SaveCase(kase *domain.Case) error {
	return s.gormDB.Save(kase).Error
}

// GetCase 根据 ID 获取案件，带机构信息。
func (s *Store) GetCase(id string) (*domain.Case, error) {
	var kase domain.Case
	err := s.gormDB.Preload("Agency").First(&kase, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrCaseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &kase, nil
}

// ListCases 列出全部案件。
func (s *Store) ListCases() ([]domain.Case, error) {
	var cases []domain.Case
	err := s.gormDB.Preload("Agency").Order("created_at").Find(&cases).Error
	return cases, err
}

// AdvanceCaseActivity 推进案件最近活动时间，只允许向后推进。
func (s *Store) AdvanceCaseActivity(id string, when time.Time) error {
	res := s.gormDB.Model(&domain.Case{}).
		Where("id = ?", id).
		Where("last_activity_at IS NULL OR last_activity_at < ?", when).
		Update("last_activity_at", when)
	if res.Error != nil {
		return res.Error
	}
	// 条件不满足时也要区分“案件不存在”
	if res.RowsAffected == 0 {
		var count int64
		if err := s.gormDB.Model(&domain.Case{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return storage.ErrCaseNotFound
		}
	}
	return nil
}

// ========== Communication Repository ==========

// SaveCommunication 保存通信。
func (s *Store) SaveCommunication(comm *domain.Communication) error {
	return s.gormDB.Save(comm).Error
}

// GetCommunication 根据 ID 获取通信。
func (s *Store) GetCommunication(id string) (*domain.Communication, error) {
	var comm domain.Communication
	err := s.gormDB.First(&comm, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrCommunicationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &comm, nil
}

// ListCommunicationsByCase 列出案件下的全部通信，按日期升序。
func (s *Store) ListCommunicationsByCase(caseID string) ([]domain.Communication, error) {
	var comms []domain.Communication
	err := s.gormDB.Where("case_id = ?", caseID).Order("date").Find(&comms).Error
	return comms, err
}

// ListOrphanCommunications 列出所有孤儿通信。
func (s *Store) ListOrphanCommunications() ([]domain.Communication, error) {
	var comms []domain.Communication
	err := s.gormDB.Where("case_id IS NULL").Order("date").Find(&comms).Error
	return comms, err
}

// DeleteCommunication 删除通信并级联删除附件与投递记录。
func (s *Store) DeleteCommunication(id string) error {
	return s.gormDB.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&domain.Communication{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrCommunicationNotFound
		}

		if err := tx.Delete(&domain.Attachment{}, "communication_id = ?", id).Error; err != nil {
			return err
		}
		for _, model := range []interface{}{
			&domain.EmailRecord{},
			&domain.FaxRecord{},
			&domain.MailRecord{},
			&domain.WebRecord{},
		} {
			if err := tx.Delete(model, "communication_id = ?", id).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ========== Attachment Repository ==========

// SaveAttachment 保存附件元数据。
func (s *Store) SaveAttachment(att *domain.Attachment) error {
	return s.gormDB.Save(att).Error
}

// GetAttachment 根据 ID 获取附件元数据。
func (s *Store) GetAttachment(id string) (*domain.Attachment, error) {
	var att domain.Attachment
	err := s.gormDB.First(&att, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrAttachmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &att, nil
}

// ListAttachmentsByCommunication 列出通信的全部附件，按创建时间升序。
func (s *Store) ListAttachmentsByCommunication(commID string) ([]domain.Attachment, error) {
	var atts []domain.Attachment
	err := s.gormDB.Where("communication_id = ?", commID).Order("created_at, id").Find(&atts).Error
	return atts, err
}

// DeleteAttachment 删除附件元数据。
func (s *Store) DeleteAttachment(id string) error {
	res := s.gormDB.Delete(&domain.Attachment{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrAttachmentNotFound
	}
	return nil
}

// ========== Channel Repository ==========

// SaveEmailRecord 保存电子邮件投递记录。
func (s *Store) SaveEmailRecord(rec *domain.EmailRecord) error {
	return s.gormDB.Save(rec).Error
}

// SaveFaxRecord 保存传真投递记录。
func (s *Store) SaveFaxRecord(rec *domain.FaxRecord) error {
	return s.gormDB.Save(rec).Error
}

// SaveMailRecord 保存纸质邮寄投递记录。
func (s *Store) SaveMailRecord(rec *domain.MailRecord) error {
	return s.gormDB.Save(rec).Error
}

// SaveWebRecord 保存门户提交投递记录。
func (s *Store) SaveWebRecord(rec *domain.WebRecord) error {
	return s.gormDB.Save(rec).Error
}

// ListChannelRecords 一次取出通信在四张渠道子表中的全部记录。
func (s *Store) ListChannelRecords(commID string) (*domain.ChannelRecordSet, error) {
	set := &domain.ChannelRecordSet{}

	if err := s.gormDB.Where("communication_id = ?", commID).Order("sent_at").Find(&set.Emails).Error; err != nil {
		return nil, err
	}
	if err := s.gormDB.Where("communication_id = ?", commID).Order("sent_at").Find(&set.Faxes).Error; err != nil {
		return nil, err
	}
	if err := s.gormDB.Where("communication_id = ?", commID).Order("sent_at").Find(&set.Mails).Error; err != nil {
		return nil, err
	}
	if err := s.gormDB.Where("communication_id = ?", commID).Order("sent_at").Find(&set.Webs).Error; err != nil {
		return nil, err
	}
	return set, nil
}

// DeleteChannelRecords 删除通信的全部投递记录。
func (s *Store) DeleteChannelRecords(commID string) error {
	for _, model := range []interface{}{
		&domain.EmailRecord{},
		&domain.FaxRecord{},
		&domain.MailRecord{},
		&domain.WebRecord{},
	} {
		if err := s.gormDB.Delete(model, "communication_id = ?", commID).Error; err != nil {
			return err
		}
	}
	return nil
}

// ========== 工具方法 ==========

// Close 关闭数据库连接。
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health 数据库健康检查。
func (s *Store) Health() error {
	return s.db.Ping()
}
