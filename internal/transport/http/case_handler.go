package httptransport

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"commtrack/backend/internal/domain"
	"commtrack/backend/internal/storage"
)

// CaseHandler 案件投影的维护端点。
//
// 案件的生命周期由外部系统管理，这里只接收投影的写入与查询。
type CaseHandler struct {
	store storage.Store
}

// NewCaseHandler 创建案件处理器。
func NewCaseHandler(store storage.Store) *CaseHandler {
	return &CaseHandler{store: store}
}

type upsertCaseRequest struct {
	ID      string  `json:"id"`
	Title   string  `json:"title" binding:"required"`
	Embargo bool    `json:"embargo"`
	Agency  *struct {
		ID     string `json:"id"`
		Name   string `json:"name" binding:"required"`
		Status string `json:"status"`
	} `json:"agency"`
}

// upsertCase godoc
// @Summary 写入案件投影
// @Description 创建或更新一个案件投影（含机构信息）
// @Tags Cases
// @Accept json
// @Produce json
// @Param request body upsertCaseRequest true "案件内容"
// @Success 201 {object} domain.Case
// @Failure 400 {object} Response
// @Failure 500 {object} Response
// @Router /v1/cases [post]
func (h *CaseHandler) upsertCase(c *gin.Context) {
	var req upsertCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	kase := &domain.Case{
		ID:      req.ID,
		Title:   req.Title,
		Embargo: req.Embargo,
	}
	if kase.ID == "" {
		kase.ID = uuid.NewString()
	}

	// 已存在的投影保留创建时间与活动时间
	if existing, err := h.store.GetCase(kase.ID); err == nil {
		kase.CreatedAt = existing.CreatedAt
		kase.LastActivityAt = existing.LastActivityAt
	} else {
		kase.CreatedAt = time.Now().UTC()
	}

	if req.Agency != nil {
		agency := &domain.Agency{
			ID:     req.Agency.ID,
			Name:   req.Agency.Name,
			Status: domain.AgencyStatus(req.Agency.Status),
		}
		if agency.ID == "" {
			agency.ID = uuid.NewString()
		}
		if agency.Status == "" {
			agency.Status = domain.AgencyPending
		}
		kase.AgencyID = &agency.ID
		kase.Agency = agency
	}

	if err := h.store.SaveCase(kase); err != nil {
		InternalError(c, MsgInternalError)
		return
	}

	Created(c, kase)
}

// getCase godoc
// @Summary 获取案件投影
// @Description 根据案件 ID 查看投影内容
// @Tags Cases
// @Produce json
// @Param id path string true "案件ID"
// @Success 200 {object} domain.Case
// @Failure 404 {object} Response
// @Router /v1/cases/{id} [get]
func (h *CaseHandler) getCase(c *gin.Context) {
	kase, err := h.store.GetCase(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrCaseNotFound) {
			NotFound(c, MsgCaseNotFound)
			return
		}
		InternalError(c, MsgInternalError)
		return
	}
	Success(c, kase)
}

// listCases godoc
// @Summary 获取案件投影列表
// @Tags Cases
// @Produce json
// @Success 200 {object} object{items=[]domain.Case,count=int}
// @Failure 500 {object} Response
// @Router /v1/cases [get]
func (h *CaseHandler) listCases(c *gin.Context) {
	cases, err := h.store.ListCases()
	if err != nil {
		InternalError(c, MsgInternalError)
		return
	}
	Success(c, gin.H{
		"items": cases,
		"count": len(cases),
	})
}
