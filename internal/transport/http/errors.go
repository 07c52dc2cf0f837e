package httptransport

import (
	"commtrack/backend/internal/service"
	"commtrack/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// 存储错误
	storage.ErrCaseNotFound:          "案件不存在",
	storage.ErrCommunicationNotFound: "通信不存在",
	storage.ErrAttachmentNotFound:    "附件不存在",

	// 复制错误
	service.ErrNoTargetCase:   "至少需要指定一个目标案件",
	service.ErrNoValidTargets: "所有目标案件均不存在",

	// 附件错误
	service.ErrAttachmentDataMissing: "附件裸数据缺失",

	// 重发错误
	service.ErrOrphanCommunication: "孤儿通信不能重发",
	service.ErrUnapprovedAgency:    "案件机构未通过审核",
	service.ErrInvalidChannel:      "无效的投递渠道",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest = "请求参数格式错误"
	MsgInvalidChannel = "投递渠道参数无效"
	MsgMissingFile    = "缺少附件文件"

	// 通信相关
	MsgCommunicationCreateFailed = "创建通信失败"
	MsgCommunicationNotFound     = "通信不存在"
	MsgCommunicationListFailed   = "获取通信列表失败"
	MsgCommunicationDeleteFailed = "删除通信失败"
	MsgMoveFailed                = "转移通信失败"
	MsgCloneFailed               = "克隆通信失败"
	MsgResendFailed              = "重发通信失败"

	// 案件相关
	MsgCaseNotFound = "案件不存在"

	// 附件相关
	MsgAttachmentNotFound     = "附件不存在"
	MsgAttachmentIngestFailed = "附件入库失败"
	MsgAttachmentReadFailed   = "读取附件失败"

	// 投递渠道相关
	MsgDeliveredResolveFailed = "解析投递渠道失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
