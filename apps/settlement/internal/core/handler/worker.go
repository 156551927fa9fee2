package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"paywave.com/apps/settlement/internal/core/service"
	"paywave.com/pkg/common"
	"paywave.com/pkg/xerr"
)

type WorkerHandler struct {
	worker *service.Worker
	status *service.StatusReporter
}

func NewWorkerHandler(worker *service.Worker, status *service.StatusReporter) *WorkerHandler {
	return &WorkerHandler{worker: worker, status: status}
}

type runRequest struct {
	Limit  int  `json:"limit"`
	DryRun bool `json:"dryRun"`
}

// Run 执行一次结算批次
// POST /api/v1/settlement/run
func (h *WorkerHandler) Run(c *gin.Context) {
	var req runRequest
	// body 可以整个省略，全部用默认值
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.Fail(c, http.StatusBadRequest, xerr.RequestParamsError, xerr.MapErrMsg(xerr.RequestParamsError))
			return
		}
	}

	report, err := h.worker.Run(c.Request.Context(), req.Limit, req.DryRun)
	if err != nil {
		if xerr.IsCode(err, xerr.ReconcileFatal) {
			// 状态可能已发散，对调用方明确失败，剩下交给人工对账
			common.FailLogged(c, http.StatusInternalServerError, xerr.ReconcileFatal, xerr.MapErrMsg(xerr.ReconcileFatal), err)
			return
		}
		common.FailLogged(c, http.StatusInternalServerError, xerr.ServerCommonError, xerr.MapErrMsg(xerr.ServerCommonError), err)
		return
	}
	common.Success(c, report)
}

// Status 状态计数
// GET /api/v1/settlement/status
func (h *WorkerHandler) Status(c *gin.Context) {
	summary, err := h.status.Summarize(c.Request.Context())
	if err != nil {
		common.FailLogged(c, http.StatusInternalServerError, xerr.ServerCommonError, xerr.MapErrMsg(xerr.ServerCommonError), err)
		return
	}
	common.Success(c, summary)
}
