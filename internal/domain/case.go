package domain

import "time"

// AgencyStatus 对方机构的审核状态。
type AgencyStatus string

const (
	AgencyPending  AgencyStatus = "pending"  // 待审核
	AgencyApproved AgencyStatus = "approved" // 已审核，可以发送
	AgencyRejected AgencyStatus = "rejected" // 已拒绝
)

// Agency 表示案件对应的对方机构（外部协作方的本地投影）。
type Agency struct {
	ID     string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name   string       `json:"name" gorm:"type:varchar(255);index"`
	Status AgencyStatus `json:"status" gorm:"type:varchar(20);default:'pending'"`
}

// Case 表示一个信息公开案件（外部协作方，这里只保存引用所需的字段）。
//
// 案件的生命周期由外部系统管理，本服务只读取 Embargo、机构状态等属性，
// 并在产生新通信时推进 LastActivityAt。
type Case struct {
	ID             string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title          string     `json:"title" gorm:"type:varchar(255)"`
	Embargo        bool       `json:"embargo" gorm:"default:false"` // 保密期内所有材料私有
	AgencyID       *string    `json:"agencyId,omitempty" gorm:"type:varchar(36);index"`
	Agency         *Agency    `json:"agency,omitempty" gorm:"foreignKey:AgencyID"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastActivityAt *time.Time `json:"lastActivityAt,omitempty"` // 最近一次通信的日期
}

// CounterpartyName 返回案件对方机构名称，没有机构时返回空串。
func (c *Case) CounterpartyName() string {
	if c == nil || c.Agency == nil {
		return ""
	}
	return c.Agency.Name
}

// AgencyApproved 机构是否处于已审核状态。
func (c *Case) AgencyApproved() bool {
	return c != nil && c.Agency != nil && c.Agency.Status == AgencyApproved
}
