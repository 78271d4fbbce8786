package httpservice

import (
	"io"
	"net/http"
	"strconv"

	"github.com/arkade-os/depositd/internal/core/application"
	"github.com/arkade-os/depositd/internal/core/domain"
	"github.com/arkade-os/depositd/pkg/errors"
	"github.com/gin-gonic/gin"
)

const snapshotContentType = "application/octet-stream"

type handler struct {
	svc             application.Service
	maxSnapshotSize int64
}

// NewHandler returns the router serving the deposit index api. metrics is
// mounted at /metrics when not nil.
func NewHandler(
	svc application.Service, metrics http.Handler, maxSnapshotSize int64,
) *gin.Engine {
	h := &handler{svc, maxSnapshotSize}

	router := gin.New()
	router.Use(recovery(), requestLogger())
	router.NoRoute(func(c *gin.Context) {
		abortWithError(c, errors.INVALID_ARGUMENT.New("unknown route %s", c.Request.URL.Path))
	})

	v1 := router.Group("/v1")
	v1.GET("/info", h.getInfo)
	v1.POST("/blocks", h.pushBlock)
	v1.POST("/blocks/deltas", h.applyBlock)
	v1.DELETE("/blocks/tip", h.disconnectBlock)
	v1.POST("/rollback", h.rollback)
	v1.GET("/deposits/full", h.getFullDepositAmount)
	v1.GET("/deposits/height/:height", h.getDepositAmountAtHeight)
	v1.GET("/deposits/entries", h.getEntries)
	v1.GET("/snapshot", h.exportSnapshot)
	v1.PUT("/snapshot", h.importSnapshot)
	v1.POST("/checkpoint", h.checkpoint)

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	return router
}

func (h *handler) getInfo(c *gin.Context) {
	c.JSON(http.StatusOK, toIndexInfo(h.svc.GetInfo(c.Request.Context())))
}

func (h *handler) pushBlock(c *gin.Context) {
	var req pushBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidArgument(c, "invalid request: %s", err)
		return
	}

	info, err := h.svc.PushBlock(c.Request.Context(), *req.Height, *req.Amount)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toIndexInfo(info))
}

func (h *handler) applyBlock(c *gin.Context) {
	var req applyBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidArgument(c, "invalid request: %s", err)
		return
	}

	info, err := h.svc.ApplyBlock(c.Request.Context(), domain.BlockDeposits{
		Height:   *req.Height,
		Hash:     req.Hash,
		Locked:   req.Locked,
		Unlocked: req.Unlocked,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toIndexInfo(info))
}

func (h *handler) disconnectBlock(c *gin.Context) {
	info, err := h.svc.DisconnectBlock(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toIndexInfo(info))
}

func (h *handler) rollback(c *gin.Context) {
	var req rollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidArgument(c, "invalid request: %s", err)
		return
	}

	ctx := c.Request.Context()
	removed, err := h.svc.Rollback(ctx, *req.From)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rollbackResponse{
		Removed: removed,
		Info:    toIndexInfo(h.svc.GetInfo(ctx)),
	})
}

func (h *handler) getFullDepositAmount(c *gin.Context) {
	c.JSON(http.StatusOK, amountResponse{
		Amount: h.svc.GetFullDepositAmount(c.Request.Context()),
	})
}

func (h *handler) getDepositAmountAtHeight(c *gin.Context) {
	height, err := strconv.ParseUint(c.Param("height"), 10, 32)
	if err != nil {
		invalidArgument(c, "invalid height %q", c.Param("height"))
		return
	}
	h32 := uint32(height)
	c.JSON(http.StatusOK, amountResponse{
		Height: &h32,
		Amount: h.svc.GetDepositAmountAtHeight(c.Request.Context(), h32),
	})
}

func (h *handler) getEntries(c *gin.Context) {
	c.JSON(http.StatusOK, entriesResponse{
		Entries: h.svc.GetEntries(c.Request.Context()),
	})
}

func (h *handler) exportSnapshot(c *gin.Context) {
	data, err := h.svc.ExportSnapshot(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, snapshotContentType, data)
}

func (h *handler) importSnapshot(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSnapshotSize)
	data, err := io.ReadAll(body)
	if err != nil {
		invalidArgument(c, "failed to read snapshot: %s", err)
		return
	}

	ctx := c.Request.Context()
	if err := h.svc.ImportSnapshot(ctx, data); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toIndexInfo(h.svc.GetInfo(ctx)))
}

func (h *handler) checkpoint(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.svc.Checkpoint(ctx); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toIndexInfo(h.svc.GetInfo(ctx)))
}
