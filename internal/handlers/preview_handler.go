package handlers

import (
	"net/http"
	"time"

	"insumos-service/internal/models"
	"insumos-service/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PreviewHandler trata as requisições de prévia de custo
type PreviewHandler struct {
	previewService services.PreviewService
	logger         *zap.Logger
}

// NewPreviewHandler cria uma nova instância do handler
func NewPreviewHandler(previewService services.PreviewService, logger *zap.Logger) *PreviewHandler {
	return &PreviewHandler{
		previewService: previewService,
		logger:         logger,
	}
}

// PreviewCusto calcula a prévia de custo de um item sem tocar no estoque.
// Quantidade não positiva ou item desconhecido retornam data nulo; a UI
// interpreta como "limpar a linha".
func (h *PreviewHandler) PreviewCusto(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "preview_custo"))
	start := time.Now()

	var req models.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Error binding JSON", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "❌ Erro no formato dos dados",
			"error":   err.Error(),
		})
		return
	}

	preview, err := h.previewService.PreviewCusto(c.Request.Context(), &req)
	if err != nil {
		responderErro(c, logger, err)
		return
	}

	logger.Debug("Prévia calculada",
		zap.String("item_id", req.ItemID),
		zap.Duration("latency", time.Since(start)))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "✅ Prévia calculada",
		"data":    gin.H{"preview": preview},
	})
}
