package httptransport

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"commtrack/backend/internal/domain"
	"commtrack/backend/internal/service"
	"commtrack/backend/internal/storage"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	comms       *service.CommunicationService
	replication *service.ReplicationService
	attachments *service.AttachmentService
	channels    *service.ChannelService
	resend      *service.ResendService
}

type createCommunicationRequest struct {
	CaseID       *string   `json:"caseId"`
	LikelyCaseID *string   `json:"likelyCaseId"`
	FromUserID   *string   `json:"fromUserId"`
	ToUserID     *string   `json:"toUserId"`
	FromLabel    string    `json:"fromLabel"`
	ToLabel      string    `json:"toLabel"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	Date         time.Time `json:"date"`
	IsResponse   bool      `json:"isResponse"`
	FullHTML     bool      `json:"fullHtml"`
}

type attachmentInfo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Source      string `json:"source"`
	Access      string `json:"access"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type communicationResponse struct {
	ID           string           `json:"id"`
	CaseID       *string          `json:"caseId"`
	LikelyCaseID *string          `json:"likelyCaseId,omitempty"`
	FromLabel    string           `json:"fromLabel"`
	ToLabel      string           `json:"toLabel"`
	Subject      string           `json:"subject"`
	Body         string           `json:"body"`
	Date         time.Time        `json:"date"`
	IsResponse   bool             `json:"isResponse"`
	FullHTML     bool             `json:"fullHtml"`
	Attachments  []attachmentInfo `json:"attachments,omitempty"`
}

type communicationListResponse struct {
	Items []communicationResponse `json:"items"`
	Count int                     `json:"count"`
}

type replicationRequest struct {
	CaseIDs []string `json:"caseIds"`
}

type replicationResponse struct {
	Communication communicationResponse   `json:"communication"`
	Clones        []communicationResponse `json:"clones,omitempty"`
}

type resendRequest struct {
	Channel string `json:"channel"`
}

// createCommunication godoc
// @Summary 创建通信
// @Description 新建一条通信记录，正文在入库前清洗
// @Tags Communications
// @Accept json
// @Produce json
// @Param request body createCommunicationRequest true "通信内容"
// @Success 201 {object} communicationResponse
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /v1/communications [post]
func (h *Handler) createCommunication(c *gin.Context) {
	var req createCommunicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	comm, err := h.comms.Create(service.CreateCommunicationInput{
		CaseID:       req.CaseID,
		LikelyCaseID: req.LikelyCaseID,
		FromUserID:   req.FromUserID,
		ToUserID:     req.ToUserID,
		FromLabel:    req.FromLabel,
		ToLabel:      req.ToLabel,
		Subject:      req.Subject,
		Body:         req.Body,
		Date:         req.Date,
		IsResponse:   req.IsResponse,
		FullHTML:     req.FullHTML,
	})
	if err != nil {
		if errors.Is(err, storage.ErrCaseNotFound) {
			NotFound(c, MsgCaseNotFound)
			return
		}
		InternalError(c, MsgCommunicationCreateFailed)
		return
	}

	Created(c, toCommunicationResponse(comm))
}

// getCommunication godoc
// @Summary 获取通信详情
// @Description 根据通信 ID 查看详细信息（含附件元数据）
// @Tags Communications
// @Produce json
// @Param id path string true "通信ID"
// @Success 200 {object} communicationResponse
// @Failure 404 {object} Response
// @Router /v1/communications/{id} [get]
func (h *Handler) getCommunication(c *gin.Context) {
	comm, err := h.comms.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrCommunicationNotFound) {
			NotFound(c, MsgCommunicationNotFound)
			return
		}
		InternalError(c, MsgInternalError)
		return
	}
	Success(c, toCommunicationResponse(comm))
}

// deleteCommunication godoc
// @Summary 删除通信
// @Description 删除通信并级联删除附件与投递记录
// @Tags Communications
// @Param id path string true "通信ID"
// @Success 204
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /v1/communications/{id} [delete]
func (h *Handler) deleteCommunication(c *gin.Context) {
	err := h.comms.Delete(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrCommunicationNotFound) {
			NotFound(c, MsgCommunicationNotFound)
		} else {
			InternalError(c, MsgCommunicationDeleteFailed)
		}
		return
	}
	NoContent(c)
}

// listCaseCommunications godoc
// @Summary 获取案件通信列表
// @Description 返回案件下按时间升序排列的全部通信
// @Tags Communications
// @Produce json
// @Param id path string true "案件ID"
// @Success 200 {object} communicationListResponse
// @Failure 404 {object} Response
// @Router /v1/cases/{id}/communications [get]
func (h *Handler) listCaseCommunications(c *gin.Context) {
	comms, err := h.comms.ListByCase(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrCaseNotFound) {
			NotFound(c, MsgCaseNotFound)
			return
		}
		InternalError(c, MsgCommunicationListFailed)
		return
	}
	Success(c, toCommunicationListResponse(comms))
}

// listOrphanCommunications godoc
// @Summary 获取孤儿通信列表
// @Description 返回所有未归档到案件的通信，供人工归档
// @Tags Communications
// @Produce json
// @Success 200 {object} communicationListResponse
// @Failure 500 {object} Response
// @Router /v1/communications/orphans [get]
func (h *Handler) listOrphanCommunications(c *gin.Context) {
	comms, err := h.comms.ListOrphans()
	if err != nil {
		InternalError(c, MsgCommunicationListFailed)
		return
	}
	Success(c, toCommunicationListResponse(comms))
}

// moveCommunication godoc
// @Summary 转移通信
// @Description 把通信移动到首个目标案件，其余目标各得一个克隆副本
// @Tags Communications
// @Accept json
// @Produce json
// @Param id path string true "通信ID"
// @Param request body replicationRequest true "目标案件ID列表"
// @Success 200 {object} replicationResponse
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /v1/communications/{id}/move [post]
func (h *Handler) moveCommunication(c *gin.Context) {
	var req replicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	comm, clones, err := h.replication.Move(c.Param("id"), req.CaseIDs)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoTargetCase):
			BadRequest(c, GetErrorMessage(err))
		case errors.Is(err, storage.ErrCommunicationNotFound):
			NotFound(c, MsgCommunicationNotFound)
		case errors.Is(err, storage.ErrCaseNotFound):
			NotFound(c, MsgCaseNotFound)
		default:
			InternalError(c, MsgMoveFailed)
		}
		return
	}

	Success(c, toReplicationResponse(comm, clones))
}

// cloneCommunication godoc
// @Summary 克隆通信
// @Description 把通信深拷贝到每个可解析的目标案件，不存在的目标跳过
// @Tags Communications
// @Accept json
// @Produce json
// @Param id path string true "通信ID"
// @Param request body replicationRequest true "目标案件ID列表"
// @Success 200 {object} communicationListResponse
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /v1/communications/{id}/clone [post]
func (h *Handler) cloneCommunication(c *gin.Context) {
	var req replicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	clones, err := h.replication.Clone(c.Param("id"), req.CaseIDs)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoValidTargets):
			BadRequest(c, GetErrorMessage(err))
		case errors.Is(err, storage.ErrCommunicationNotFound):
			NotFound(c, MsgCommunicationNotFound)
		default:
			InternalError(c, MsgCloneFailed)
		}
		return
	}

	responses := make([]communicationResponse, 0, len(clones))
	for _, clone := range clones {
		responses = append(responses, toCommunicationResponse(clone))
	}
	Success(c, communicationListResponse{
		Items: responses,
		Count: len(responses),
	})
}

// resendCommunication godoc
// @Summary 重发通信
// @Description 经指定渠道重发通信；channel 为空时降级为纸质邮寄
// @Tags Communications
// @Accept json
// @Produce json
// @Param id path string true "通信ID"
// @Param request body resendRequest true "投递渠道（email/fax，留空为纸质邮寄）"
// @Success 204
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 422 {object} Response
// @Failure 500 {object} Response
// @Router /v1/communications/{id}/resend [post]
func (h *Handler) resendCommunication(c *gin.Context) {
	var req resendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	err := h.resend.Resend(c.Request.Context(), c.Param("id"), domain.ChannelKind(req.Channel))
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrCommunicationNotFound):
			NotFound(c, MsgCommunicationNotFound)
		case errors.Is(err, service.ErrInvalidChannel):
			BadRequest(c, GetErrorMessage(err))
		case errors.Is(err, service.ErrOrphanCommunication), errors.Is(err, service.ErrUnapprovedAgency):
			UnprocessableEntity(c, GetErrorMessage(err))
		default:
			InternalError(c, MsgResendFailed)
		}
		return
	}
	NoContent(c)
}

// getDelivered godoc
// @Summary 解析投递渠道
// @Description 返回通信实际投递所用的渠道（取最近发送的记录，并列时 email > fax > mail > web）
// @Tags Communications
// @Produce json
// @Param id path string true "通信ID"
// @Success 200 {object} object{delivered=string}
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /v1/communications/{id}/delivered [get]
func (h *Handler) getDelivered(c *gin.Context) {
	kind, err := h.channels.ResolveDelivered(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrCommunicationNotFound) {
			NotFound(c, MsgCommunicationNotFound)
			return
		}
		InternalError(c, MsgDeliveredResolveFailed)
		return
	}
	Success(c, gin.H{"delivered": string(kind)})
}

// uploadAttachment godoc
// @Summary 上传附件
// @Description 为通信上传一个附件；命中忽略规则的文件静默跳过
// @Tags Attachments
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "通信ID"
// @Param file formData file true "附件文件"
// @Success 201 {object} attachmentInfo
// @Success 200 {object} Response "文件命中忽略规则"
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /v1/communications/{id}/attachments [post]
func (h *Handler) uploadAttachment(c *gin.Context) {
	comm, err := h.comms.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrCommunicationNotFound) {
			NotFound(c, MsgCommunicationNotFound)
			return
		}
		InternalError(c, MsgInternalError)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, MsgMissingFile)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		InternalError(c, MsgAttachmentIngestFailed)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		InternalError(c, MsgAttachmentIngestFailed)
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	att, err := h.attachments.Ingest(comm, fileHeader.Filename, contentType, content)
	if err != nil {
		InternalError(c, MsgAttachmentIngestFailed)
		return
	}
	if att == nil {
		// 命中忽略规则，不入库
		c.JSON(http.StatusOK, Response{
			Code: CodeSuccess,
			Msg:  "文件命中忽略规则，已跳过",
		})
		return
	}

	Created(c, toAttachmentInfo(att))
}

// downloadAttachment godoc
// @Summary 下载附件
// @Description 下载附件的字节内容
// @Tags Attachments
// @Produce application/octet-stream
// @Param id path string true "通信ID"
// @Param attachmentId path string true "附件ID"
// @Success 200 {file} binary
// @Failure 404 {object} Response
// @Router /v1/communications/{id}/attachments/{attachmentId} [get]
func (h *Handler) downloadAttachment(c *gin.Context) {
	att, err := h.attachments.Read(c.Param("attachmentId"))
	if err != nil {
		if errors.Is(err, storage.ErrAttachmentNotFound) {
			NotFound(c, MsgAttachmentNotFound)
			return
		}
		InternalError(c, MsgAttachmentReadFailed)
		return
	}
	if att.CommunicationID != c.Param("id") {
		NotFound(c, MsgAttachmentNotFound)
		return
	}

	// 附件下载不使用统一响应格式，直接返回二进制流
	c.Header("Content-Type", att.ContentType)
	c.Header("Content-Disposition", "attachment; filename=\""+att.Filename+"\"")
	c.Header("Content-Length", fmt.Sprintf("%d", att.Size))
	c.Data(http.StatusOK, att.ContentType, att.Content)
}

// toCommunicationResponse 转换实体为响应体。
func toCommunicationResponse(comm *domain.Communication) communicationResponse {
	attachments := make([]attachmentInfo, 0, len(comm.Attachments))
	for _, att := range comm.Attachments {
		attachments = append(attachments, toAttachmentInfo(att))
	}

	return communicationResponse{
		ID:           comm.ID,
		CaseID:       comm.CaseID,
		LikelyCaseID: comm.LikelyCaseID,
		FromLabel:    comm.FromLine(),
		ToLabel:      comm.ToLabel,
		Subject:      comm.Subject,
		Body:         comm.Body,
		Date:         comm.Date,
		IsResponse:   comm.IsResponse,
		FullHTML:     comm.FullHTML,
		Attachments:  attachments,
	}
}

func toCommunicationListResponse(comms []domain.Communication) communicationListResponse {
	responses := make([]communicationResponse, 0, len(comms))
	for i := range comms {
		responses = append(responses, toCommunicationResponse(&comms[i]))
	}
	return communicationListResponse{
		Items: responses,
		Count: len(responses),
	}
}

func toReplicationResponse(comm *domain.Communication, clones []*domain.Communication) replicationResponse {
	resp := replicationResponse{
		Communication: toCommunicationResponse(comm),
	}
	for _, clone := range clones {
		resp.Clones = append(resp.Clones, toCommunicationResponse(clone))
	}
	return resp
}

// toAttachmentInfo 转换附件元数据为响应体（不包含内容）。
func toAttachmentInfo(att *domain.Attachment) attachmentInfo {
	return attachmentInfo{
		ID:          att.ID,
		Title:       att.Title,
		Source:      att.Source,
		Access:      string(att.Access),
		Filename:    att.Filename,
		ContentType: att.ContentType,
		Size:        att.Size,
	}
}
