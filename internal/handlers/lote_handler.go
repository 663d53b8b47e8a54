package handlers

import (
	"net/http"

	"insumos-service/internal/cache"
	"insumos-service/internal/models"
	"insumos-service/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LoteHandler trata as requisições HTTP de lotes (entradas de estoque)
type LoteHandler struct {
	lancamentoService services.LancamentoService
	catalogCache      *cache.CatalogoCache
	logger            *zap.Logger
}

// NewLoteHandler cria uma nova instância do handler
func NewLoteHandler(lancamentoService services.LancamentoService, catalogCache *cache.CatalogoCache, logger *zap.Logger) *LoteHandler {
	return &LoteHandler{
		lancamentoService: lancamentoService,
		catalogCache:      catalogCache,
		logger:            logger,
	}
}

// RegistrarLote registra uma entrada de estoque (compra)
func (h *LoteHandler) RegistrarLote(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "registrar_lote"))

	var req models.RegistrarLoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Error binding JSON", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "❌ Erro no formato dos dados",
			"error":   err.Error(),
		})
		return
	}

	logger.Info("Entrada de lote recebida",
		zap.String("produto_id", req.ProdutoID),
		zap.String("quantidade", req.Quantidade.String()))

	lote, err := h.lancamentoService.RegistrarLote(c.Request.Context(), &req)
	if err != nil {
		responderErro(c, logger, err)
		return
	}

	logger.Info("✅ Lote registrado", zap.String("lote_id", lote.ID))

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "✅ Lote registrado com sucesso",
		"data":    gin.H{"lote": lote},
	})
}

// ListarPorProduto lista os lotes de um produto numa propriedade
func (h *LoteHandler) ListarPorProduto(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "listar_lotes_produto"))

	produtoID := c.Param("id")
	propriedadeID := c.Query("propriedade")
	if propriedadeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "❌ Propriedade obrigatória",
			"error":   "informe o query param 'propriedade'",
		})
		return
	}

	somenteDisponiveis := c.Query("disponiveis") == "true"

	lotes, err := h.lancamentoService.ListarLotes(c.Request.Context(), produtoID, propriedadeID, somenteDisponiveis)
	if err != nil {
		responderErro(c, logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "✅ Lotes obtidos com sucesso",
		"data": gin.H{
			"produto_id":     produtoID,
			"propriedade_id": propriedadeID,
			"lotes":          lotes,
			"total":          len(lotes),
		},
	})
}

// EstoqueBaixo lista os produtos abaixo do estoque mínimo numa propriedade
func (h *LoteHandler) EstoqueBaixo(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "estoque_baixo"))

	propriedadeID := c.Param("propriedade")
	logger.Info("Consultando estoque baixo", zap.String("propriedade_id", propriedadeID))

	produtos, err := h.lancamentoService.EstoqueBaixo(c.Request.Context(), propriedadeID)
	if err != nil {
		responderErro(c, logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "✅ Produtos com estoque baixo obtidos",
		"data": gin.H{
			"propriedade_id": propriedadeID,
			"produtos":       produtos,
			"total":          len(produtos),
		},
	})
}

// CacheStats retorna as estatísticas do cache de catálogo
func (h *LoteHandler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "✅ Estatísticas do cache",
		"data":    h.catalogCache.Stats(),
	})
}

// InvalidateCacheItem invalida um item do cache de catálogo
func (h *LoteHandler) InvalidateCacheItem(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "invalidate_cache_item"))

	itemID := c.Param("id")
	if err := h.catalogCache.InvalidateItem(c.Request.Context(), itemID); err != nil {
		logger.Warn("Falha invalidando item no Redis", zap.String("item_id", itemID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "✅ Item invalidado no cache",
		"data":    gin.H{"item_id": itemID},
	})
}
