package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"insumos-service/internal/cache"
	"insumos-service/internal/engine"
	"insumos-service/internal/models"
	"insumos-service/internal/repository"
)

// PreviewService calcula a prévia de custo de um item antes do commit.
// A prévia é puramente especulativa: nunca grava nada e nunca retorna custos
// que o commit reutilize; o commit sempre realoca contra estado travado.
type PreviewService interface {
	PreviewCusto(ctx context.Context, req *models.PreviewRequest) (*models.PreviewResponse, error)
}

type previewService struct {
	loteRepo     repository.LoteRepository
	catalogoRepo repository.CatalogoRepository
	catalogCache *cache.CatalogoCache
	metrics      *EngineMetrics
	logger       *zap.Logger
}

// NewPreviewService cria uma nova instância do service
func NewPreviewService(
	loteRepo repository.LoteRepository,
	catalogoRepo repository.CatalogoRepository,
	catalogCache *cache.CatalogoCache,
	metrics *EngineMetrics,
	logger *zap.Logger,
) PreviewService {
	return &previewService{
		loteRepo:     loteRepo,
		catalogoRepo: catalogoRepo,
		catalogCache: catalogCache,
		metrics:      metrics,
		logger:       logger,
	}
}

// PreviewCusto resolve a prévia de um item. Quantidade não positiva ou item
// inexistente retornam (nil, nil): a UI limpa a linha em vez de ver erro.
// Insuficiência de estoque também não é erro aqui; vem descrita na resposta.
func (s *previewService) PreviewCusto(ctx context.Context, req *models.PreviewRequest) (*models.PreviewResponse, error) {
	if req.ItemID == "" || req.Quantidade.LessThanOrEqual(decimal.Zero) {
		return nil, nil
	}

	item, err := s.resolverItem(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	s.metrics.RecordPreview()

	switch item.Tipo {
	case models.TipoEstoque:
		return s.previewEstoque(ctx, item, req)
	case models.TipoServico, models.TipoHoraMaquina:
		return s.previewTarifa(ctx, item, req)
	default:
		return nil, &engine.ErroValidacao{Campo: "tipo", Motivo: fmt.Sprintf("tipo de item desconhecido: %s", item.Tipo)}
	}
}

// previewEstoque roda o alocador FIFO sobre um snapshot fresco dos lotes
func (s *previewService) previewEstoque(ctx context.Context, item *models.ItemCatalogo, req *models.PreviewRequest) (*models.PreviewResponse, error) {
	if item.ProdutoID == nil {
		return nil, &engine.ErroValidacao{Campo: "produto_id", Motivo: "item de estoque sem produto vinculado"}
	}

	lotes, err := s.loteRepo.ListarDisponiveis(ctx, *item.ProdutoID, req.PropriedadeID)
	if err != nil {
		return nil, err
	}

	res, err := engine.Alocar(lotes, req.Quantidade)
	if err != nil {
		return nil, err
	}

	if !res.Suficiente {
		s.metrics.RecordInsuficiencia()
		s.logger.Debug("prévia com estoque insuficiente",
			zap.String("item_id", item.ID),
			zap.String("produto_id", *item.ProdutoID),
			zap.String("solicitado", req.Quantidade.String()),
			zap.String("disponivel", res.TotalDisponivel.String()))
	}

	disponivel := res.TotalDisponivel
	return &models.PreviewResponse{
		ItemID:             item.ID,
		Tipo:               item.Tipo,
		Quantidade:         req.Quantidade,
		CustoUnitario:      res.CustoUnitarioMedio,
		CustoTotal:         res.CustoTotal,
		Suficiente:         res.Suficiente,
		TotalDisponivel:    &disponivel,
		Faltante:           res.Faltante,
		Consumos:           res.Consumos,
		LimitadoPorEstoque: !res.Suficiente,
	}, nil
}

// previewTarifa calcula custo de itens sem restrição de estoque. Hora de
// máquina usa a tarifa da máquina vinculada e cai na tarifa padrão do item
// quando não há máquina.
func (s *previewService) previewTarifa(ctx context.Context, item *models.ItemCatalogo, req *models.PreviewRequest) (*models.PreviewResponse, error) {
	tarifa, err := s.resolverTarifa(ctx, item)
	if err != nil {
		return nil, err
	}

	return &models.PreviewResponse{
		ItemID:        item.ID,
		Tipo:          item.Tipo,
		Quantidade:    req.Quantidade,
		CustoUnitario: tarifa,
		CustoTotal:    tarifa.Mul(req.Quantidade),
		Suficiente:    true,
		Faltante:      decimal.Zero,
	}, nil
}

func (s *previewService) resolverTarifa(ctx context.Context, item *models.ItemCatalogo) (decimal.Decimal, error) {
	if item.Tipo == models.TipoHoraMaquina && item.MaquinaID != nil {
		maquina, err := s.catalogoRepo.GetMaquina(ctx, *item.MaquinaID)
		if err != nil {
			return decimal.Zero, err
		}
		if maquina != nil {
			return maquina.TarifaHora, nil
		}
	}
	if item.TarifaPadrao != nil {
		return *item.TarifaPadrao, nil
	}
	return decimal.Zero, &engine.ErroValidacao{Campo: "tarifa_padrao", Motivo: fmt.Sprintf("item %s sem tarifa definida", item.ID)}
}

// resolverItem busca o item no cache multi-nível com fallback para o banco
func (s *previewService) resolverItem(ctx context.Context, itemID string) (*models.ItemCatalogo, error) {
	if item, err := s.catalogCache.GetItem(ctx, itemID); err == nil && item != nil {
		return item, nil
	}

	item, err := s.catalogoRepo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	if err := s.catalogCache.SetItem(ctx, itemID, item); err != nil {
		s.logger.Warn("failed to cache item", zap.String("item_id", itemID), zap.Error(err))
	}

	return item, nil
}
