package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"insumos-service/internal/engine"
)

// responderErro mapeia os erros tipados do motor para o status HTTP certo.
// Insuficiência de estoque é 422 com o detalhe da falta; safra fechada é 409
// porque o conflito é com o estado do recurso, não com o request.
func responderErro(c *gin.Context, logger *zap.Logger, err error) {
	var validacao *engine.ErroValidacao
	if errors.As(err, &validacao) {
		logger.Warn("Request inválido",
			zap.String("campo", validacao.Campo),
			zap.String("motivo", validacao.Motivo))
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "❌ Dados de entrada inválidos",
			"error":   validacao.Error(),
			"campo":   validacao.Campo,
		})
		return
	}

	var insuficiente *engine.ErroEstoqueInsuficiente
	if errors.As(err, &insuficiente) {
		logger.Warn("Estoque insuficiente",
			zap.String("item_id", insuficiente.ItemID),
			zap.String("produto_id", insuficiente.ProdutoID),
			zap.String("faltante", insuficiente.Faltante.String()))
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"message": "❌ Estoque insuficiente",
			"error":   insuficiente.Error(),
			"detalhe": gin.H{
				"item_id":    insuficiente.ItemID,
				"produto_id": insuficiente.ProdutoID,
				"solicitado": insuficiente.Solicitado,
				"disponivel": insuficiente.Disponivel,
				"faltante":   insuficiente.Faltante,
			},
		})
		return
	}

	var fechada *engine.ErroSafraFechada
	if errors.As(err, &fechada) {
		logger.Warn("Safra fechada", zap.String("safra_id", fechada.SafraID))
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"message": "❌ Safra fechada para lançamentos",
			"error":   fechada.Error(),
		})
		return
	}

	var invariante *engine.ErroInvariante
	if errors.As(err, &invariante) {
		logger.Error("Invariante de saldo violada", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "❌ Inconsistência de saldo detectada",
			"error":   invariante.Error(),
		})
		return
	}

	logger.Error("Erro interno", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"message": "❌ Erro interno do servidor",
		"error":   err.Error(),
	})
}
