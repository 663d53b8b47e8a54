package handlers

import (
	"net/http"
	"time"

	"insumos-service/internal/models"
	"insumos-service/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LancamentoHandler trata as requisições HTTP de lançamentos
type LancamentoHandler struct {
	lancamentoService services.LancamentoService
	logger            *zap.Logger
}

// NewLancamentoHandler cria uma nova instância do handler
func NewLancamentoHandler(lancamentoService services.LancamentoService, logger *zap.Logger) *LancamentoHandler {
	return &LancamentoHandler{
		lancamentoService: lancamentoService,
		logger:            logger,
	}
}

// RegistrarLancamento cria um lançamento aplicando as baixas de estoque
func (h *LancamentoHandler) RegistrarLancamento(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "registrar_lancamento"))
	start := time.Now()

	var req models.LancamentoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Error binding JSON", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "❌ Erro no formato dos dados",
			"error":   err.Error(),
		})
		return
	}

	logger.Info("Lançamento recebido",
		zap.String("safra_id", req.SafraID),
		zap.String("propriedade_id", req.PropriedadeID),
		zap.Int("itens", len(req.Itens)))

	lanc, err := h.lancamentoService.RegistrarLancamento(c.Request.Context(), &req)
	if err != nil {
		responderErro(c, logger, err)
		return
	}

	logger.Info("✅ Lançamento registrado",
		zap.String("lancamento_id", lanc.ID),
		zap.String("custo_total", lanc.CustoTotal().String()),
		zap.Duration("latency", time.Since(start)))

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "✅ Lançamento registrado com sucesso",
		"data": gin.H{
			"lancamento":  lanc,
			"custo_total": lanc.CustoTotal(),
		},
	})
}

// AtualizarLancamento edita um lançamento (estorno e reaplicação atômicos)
func (h *LancamentoHandler) AtualizarLancamento(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "atualizar_lancamento"))
	start := time.Now()

	id := c.Param("id")

	var req models.LancamentoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Error binding JSON", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "❌ Erro no formato dos dados",
			"error":   err.Error(),
		})
		return
	}

	logger.Info("Edição recebida",
		zap.String("lancamento_id", id),
		zap.Int("itens", len(req.Itens)))

	lanc, err := h.lancamentoService.AtualizarLancamento(c.Request.Context(), id, &req)
	if err != nil {
		responderErro(c, logger, err)
		return
	}

	logger.Info("✅ Lançamento atualizado",
		zap.String("lancamento_id", lanc.ID),
		zap.String("custo_total", lanc.CustoTotal().String()),
		zap.Duration("latency", time.Since(start)))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "✅ Lançamento atualizado com sucesso",
		"data": gin.H{
			"lancamento":  lanc,
			"custo_total": lanc.CustoTotal(),
		},
	})
}

// ExcluirLancamento remove um lançamento restaurando os lotes consumidos
func (h *LancamentoHandler) ExcluirLancamento(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "excluir_lancamento"))

	id := c.Param("id")
	logger.Info("Exclusão recebida", zap.String("lancamento_id", id))

	if err := h.lancamentoService.ExcluirLancamento(c.Request.Context(), id); err != nil {
		responderErro(c, logger, err)
		return
	}

	logger.Info("✅ Lançamento excluído", zap.String("lancamento_id", id))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "✅ Lançamento excluído e estoque restaurado",
	})
}

// GetLancamento obtém um lançamento pelo ID
func (h *LancamentoHandler) GetLancamento(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "get_lancamento"))

	id := c.Param("id")

	lanc, err := h.lancamentoService.GetLancamento(c.Request.Context(), id)
	if err != nil {
		responderErro(c, logger, err)
		return
	}
	if lanc == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "❌ Lançamento não encontrado",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "✅ Lançamento obtido com sucesso",
		"data": gin.H{
			"lancamento":  lanc,
			"custo_total": lanc.CustoTotal(),
		},
	})
}

// ListarPorSafra lista os lançamentos de uma safra
func (h *LancamentoHandler) ListarPorSafra(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "listar_lancamentos_safra"))

	safraID := c.Param("id")
	logger.Info("Listando lançamentos", zap.String("safra_id", safraID))

	lancamentos, err := h.lancamentoService.ListarPorSafra(c.Request.Context(), safraID)
	if err != nil {
		responderErro(c, logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "✅ Lançamentos obtidos com sucesso",
		"data": gin.H{
			"safra_id":    safraID,
			"lancamentos": lancamentos,
			"total":       len(lancamentos),
		},
	})
}
