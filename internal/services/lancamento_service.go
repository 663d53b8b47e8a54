package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"insumos-service/internal/cache"
	"insumos-service/internal/engine"
	"insumos-service/internal/models"
	"insumos-service/internal/repository"
)

const formatoData = "2006-01-02"

// LancamentoService orquestra o ciclo de vida de lançamentos e lotes:
// validação, resolução de catálogo, guard de safra fechada e os efeitos
// pós-commit (horímetro, alerta de estoque baixo). A aplicação transacional
// em si vive no repository.
type LancamentoService interface {
	RegistrarLancamento(ctx context.Context, req *models.LancamentoRequest) (*models.Lancamento, error)
	AtualizarLancamento(ctx context.Context, id string, req *models.LancamentoRequest) (*models.Lancamento, error)
	ExcluirLancamento(ctx context.Context, id string) error
	GetLancamento(ctx context.Context, id string) (*models.Lancamento, error)
	ListarPorSafra(ctx context.Context, safraID string) ([]*models.Lancamento, error)

	RegistrarLote(ctx context.Context, req *models.RegistrarLoteRequest) (*models.Lote, error)
	ListarLotes(ctx context.Context, produtoID, propriedadeID string, somenteDisponiveis bool) ([]*models.Lote, error)
	EstoqueBaixo(ctx context.Context, propriedadeID string) ([]*models.EstoqueProduto, error)
}

type lancamentoService struct {
	lancamentoRepo repository.LancamentoRepository
	loteRepo       repository.LoteRepository
	catalogoRepo   repository.CatalogoRepository
	catalogCache   *cache.CatalogoCache
	metrics        *EngineMetrics
	validator      *validator.Validate
	logger         *zap.Logger
}

// NewLancamentoService cria uma nova instância do service
func NewLancamentoService(
	lancamentoRepo repository.LancamentoRepository,
	loteRepo repository.LoteRepository,
	catalogoRepo repository.CatalogoRepository,
	catalogCache *cache.CatalogoCache,
	metrics *EngineMetrics,
	logger *zap.Logger,
) LancamentoService {
	return &lancamentoService{
		lancamentoRepo: lancamentoRepo,
		loteRepo:       loteRepo,
		catalogoRepo:   catalogoRepo,
		catalogCache:   catalogCache,
		metrics:        metrics,
		validator:      validator.New(),
		logger:         logger,
	}
}

// RegistrarLancamento cria um lançamento e aplica as baixas numa transação
// única. A safra é verificada com leitura fresca antes de qualquer acesso a
// lote; numa safra fechada nenhum saldo chega a ser lido.
func (s *lancamentoService) RegistrarLancamento(ctx context.Context, req *models.LancamentoRequest) (*models.Lancamento, error) {
	lanc, err := s.montarLancamento(ctx, uuid.New().String(), req)
	if err != nil {
		return nil, err
	}

	if err := s.lancamentoRepo.CriarLancamento(ctx, lanc, engine.Alocar); err != nil {
		s.registrarFalha(err)
		return nil, err
	}

	s.metrics.RecordCommit()
	s.logger.Info("lançamento registrado",
		zap.String("lancamento_id", lanc.ID),
		zap.String("safra_id", lanc.SafraID),
		zap.Int("itens", len(lanc.Itens)),
		zap.String("custo_total", lanc.CustoTotal().String()))

	s.aplicarEfeitosPosCommit(ctx, lanc)

	return lanc, nil
}

// AtualizarLancamento edita um lançamento como estorno-e-reaplicação numa
// única transação. A alocação dos novos valores roda sobre o estoque já
// liberado pelo estorno; se falhar, o original permanece intacto.
func (s *lancamentoService) AtualizarLancamento(ctx context.Context, id string, req *models.LancamentoRequest) (*models.Lancamento, error) {
	if id == "" {
		return nil, &engine.ErroValidacao{Campo: "id", Motivo: "obrigatório"}
	}

	lanc, err := s.montarLancamento(ctx, id, req)
	if err != nil {
		return nil, err
	}

	estorno, err := s.lancamentoRepo.AtualizarLancamento(ctx, lanc, engine.Alocar)
	if err != nil {
		s.registrarFalha(err)
		return nil, err
	}

	s.metrics.RecordEdicao()
	s.metrics.RecordRestauracoesClampadas(len(estorno.RestauracoesClampadas))
	s.logger.Info("lançamento atualizado",
		zap.String("lancamento_id", lanc.ID),
		zap.Int("lotes_restaurados", estorno.LotesRestaurados),
		zap.Int("lotes_ignorados", len(estorno.LotesIgnorados)))

	s.aplicarEfeitosPosCommit(ctx, lanc)

	return lanc, nil
}

// ExcluirLancamento remove um lançamento restaurando os lotes consumidos.
// A exclusão não mexe em horímetro: horas já trabalhadas não deixam de ter
// acontecido.
func (s *lancamentoService) ExcluirLancamento(ctx context.Context, id string) error {
	if id == "" {
		return &engine.ErroValidacao{Campo: "id", Motivo: "obrigatório"}
	}

	estorno, err := s.lancamentoRepo.ExcluirLancamento(ctx, id)
	if err != nil {
		return err
	}

	s.metrics.RecordEstorno()
	s.metrics.RecordRestauracoesClampadas(len(estorno.RestauracoesClampadas))
	s.logger.Info("lançamento excluído",
		zap.String("lancamento_id", id),
		zap.Int("lotes_restaurados", estorno.LotesRestaurados),
		zap.Int("lotes_ignorados", len(estorno.LotesIgnorados)))

	return nil
}

// GetLancamento obtém um lançamento com itens; nil quando não existe
func (s *lancamentoService) GetLancamento(ctx context.Context, id string) (*models.Lancamento, error) {
	return s.lancamentoRepo.GetLancamento(ctx, id)
}

// ListarPorSafra lista os lançamentos de uma safra
func (s *lancamentoService) ListarPorSafra(ctx context.Context, safraID string) ([]*models.Lancamento, error) {
	return s.lancamentoRepo.ListarPorSafra(ctx, safraID)
}

// RegistrarLote registra uma entrada de estoque (compra). A quantidade
// restante nasce igual à original e o custo unitário fica congelado no lote.
func (s *lancamentoService) RegistrarLote(ctx context.Context, req *models.RegistrarLoteRequest) (*models.Lote, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, &engine.ErroValidacao{Campo: "request", Motivo: err.Error()}
	}
	if req.Quantidade.LessThanOrEqual(decimal.Zero) {
		return nil, &engine.ErroValidacao{Campo: "quantidade", Motivo: "deve ser maior que zero"}
	}
	if req.CustoUnitario.IsNegative() {
		return nil, &engine.ErroValidacao{Campo: "custo_unitario", Motivo: "não pode ser negativo"}
	}

	recebidoEm, err := time.Parse(formatoData, req.RecebidoEm)
	if err != nil {
		return nil, &engine.ErroValidacao{Campo: "recebido_em", Motivo: "data inválida, use o formato AAAA-MM-DD"}
	}

	var validadeEm *time.Time
	if req.ValidadeEm != nil {
		v, err := time.Parse(formatoData, *req.ValidadeEm)
		if err != nil {
			return nil, &engine.ErroValidacao{Campo: "validade_em", Motivo: "data inválida, use o formato AAAA-MM-DD"}
		}
		validadeEm = &v
	}

	if err := s.verificarSafraAberta(ctx, req.SafraID); err != nil {
		return nil, err
	}

	produto, err := s.catalogoRepo.GetProduto(ctx, req.ProdutoID)
	if err != nil {
		return nil, err
	}
	if produto == nil || !produto.Ativo {
		return nil, &engine.ErroValidacao{Campo: "produto_id", Motivo: "produto não encontrado ou inativo"}
	}

	lote := &models.Lote{
		ID:                 uuid.New().String(),
		ProdutoID:          req.ProdutoID,
		PropriedadeID:      req.PropriedadeID,
		SafraID:            req.SafraID,
		QuantidadeOriginal: req.Quantidade,
		QuantidadeRestante: req.Quantidade,
		CustoUnitario:      req.CustoUnitario,
		RecebidoEm:         recebidoEm,
		ValidadeEm:         validadeEm,
		NotaFiscal:         req.NotaFiscal,
		Fornecedor:         req.Fornecedor,
	}

	if err := s.loteRepo.RegistrarLote(ctx, lote); err != nil {
		return nil, err
	}

	s.logger.Info("lote registrado",
		zap.String("lote_id", lote.ID),
		zap.String("produto_id", lote.ProdutoID),
		zap.String("quantidade", lote.QuantidadeOriginal.String()),
		zap.String("custo_unitario", lote.CustoUnitario.String()))

	return lote, nil
}

// ListarLotes lista os lotes de um produto numa propriedade
func (s *lancamentoService) ListarLotes(ctx context.Context, produtoID, propriedadeID string, somenteDisponiveis bool) ([]*models.Lote, error) {
	return s.loteRepo.ListarPorProduto(ctx, produtoID, propriedadeID, somenteDisponiveis)
}

// EstoqueBaixo lista os produtos de uma propriedade abaixo do estoque mínimo
func (s *lancamentoService) EstoqueBaixo(ctx context.Context, propriedadeID string) ([]*models.EstoqueProduto, error) {
	return s.loteRepo.EstoqueBaixo(ctx, propriedadeID)
}

// ===== helpers =====

// montarLancamento valida o request, verifica a safra e resolve cada item do
// catálogo. Itens de tarifa saem com custos resolvidos; itens de estoque saem
// só com o produto vinculado, os custos são decididos dentro da transação.
func (s *lancamentoService) montarLancamento(ctx context.Context, id string, req *models.LancamentoRequest) (*models.Lancamento, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, &engine.ErroValidacao{Campo: "request", Motivo: err.Error()}
	}

	dataExecucao, err := time.Parse(formatoData, req.DataExecucao)
	if err != nil {
		return nil, &engine.ErroValidacao{Campo: "data_execucao", Motivo: "data inválida, use o formato AAAA-MM-DD"}
	}

	// Guard de safra antes de qualquer leitura de lote ou catálogo
	if err := s.verificarSafraAberta(ctx, req.SafraID); err != nil {
		return nil, err
	}

	lanc := &models.Lancamento{
		ID:            id,
		PropriedadeID: req.PropriedadeID,
		SafraID:       req.SafraID,
		ServicoID:     req.ServicoID,
		TalhaoID:      req.TalhaoID,
		DataExecucao:  dataExecucao,
		Observacoes:   req.Observacoes,
	}

	for i, itemReq := range req.Itens {
		if itemReq.Quantidade.LessThanOrEqual(decimal.Zero) {
			return nil, &engine.ErroValidacao{
				Campo:  fmt.Sprintf("itens[%d].quantidade", i),
				Motivo: "deve ser maior que zero",
			}
		}

		catItem, err := s.resolverItem(ctx, itemReq.ItemID)
		if err != nil {
			return nil, err
		}
		if catItem == nil {
			return nil, &engine.ErroValidacao{
				Campo:  fmt.Sprintf("itens[%d].item_id", i),
				Motivo: fmt.Sprintf("item %s não encontrado no catálogo", itemReq.ItemID),
			}
		}

		item := &models.ItemLancamento{
			ID:         uuid.New().String(),
			ItemID:     catItem.ID,
			Tipo:       catItem.Tipo,
			Quantidade: itemReq.Quantidade,
		}

		switch catItem.Tipo {
		case models.TipoEstoque:
			if catItem.ProdutoID == nil {
				return nil, &engine.ErroValidacao{
					Campo:  fmt.Sprintf("itens[%d].item_id", i),
					Motivo: "item de estoque sem produto vinculado",
				}
			}
			item.ProdutoID = catItem.ProdutoID

		case models.TipoServico, models.TipoHoraMaquina:
			tarifa, err := s.resolverTarifa(ctx, catItem)
			if err != nil {
				return nil, err
			}
			item.CustoUnitario = tarifa
			item.CustoTotal = tarifa.Mul(itemReq.Quantidade)

		default:
			return nil, &engine.ErroValidacao{
				Campo:  fmt.Sprintf("itens[%d].item_id", i),
				Motivo: fmt.Sprintf("tipo de item desconhecido: %s", catItem.Tipo),
			}
		}

		lanc.Itens = append(lanc.Itens, item)
	}

	return lanc, nil
}

// verificarSafraAberta faz a pré-checagem de safra com leitura fresca. O
// repository repete a verificação dentro da transação.
func (s *lancamentoService) verificarSafraAberta(ctx context.Context, safraID string) error {
	safra, err := s.catalogoRepo.GetSafra(ctx, safraID)
	if err != nil {
		return err
	}
	if safra == nil {
		return &engine.ErroValidacao{Campo: "safra_id", Motivo: "safra não encontrada"}
	}
	if safra.Fechada {
		return &engine.ErroSafraFechada{SafraID: safraID}
	}
	return nil
}

func (s *lancamentoService) resolverTarifa(ctx context.Context, item *models.ItemCatalogo) (decimal.Decimal, error) {
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
func (s *lancamentoService) resolverItem(ctx context.Context, itemID string) (*models.ItemCatalogo, error) {
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

func (s *lancamentoService) registrarFalha(err error) {
	var insuficiente *engine.ErroEstoqueInsuficiente
	if errors.As(err, &insuficiente) {
		s.metrics.RecordInsuficiencia()
	}
}

// aplicarEfeitosPosCommit executa os efeitos colaterais que nunca revertem o
// lançamento: incremento de horímetro e alerta de estoque baixo. Falhas aqui
// viram warning, o commit já aconteceu.
func (s *lancamentoService) aplicarEfeitosPosCommit(ctx context.Context, lanc *models.Lancamento) {
	produtosTocados := make(map[string]bool)

	for _, item := range lanc.Itens {
		switch item.Tipo {
		case models.TipoHoraMaquina:
			s.incrementarHorimetro(ctx, item)
		case models.TipoEstoque:
			if item.ProdutoID != nil {
				produtosTocados[*item.ProdutoID] = true
			}
		}
	}

	for produtoID := range produtosTocados {
		s.avisarEstoqueBaixo(ctx, produtoID, lanc.PropriedadeID)
	}
}

func (s *lancamentoService) incrementarHorimetro(ctx context.Context, item *models.ItemLancamento) {
	catItem, err := s.resolverItem(ctx, item.ItemID)
	if err != nil || catItem == nil || catItem.MaquinaID == nil {
		return
	}

	if err := s.catalogoRepo.IncrementarHorimetro(ctx, *catItem.MaquinaID, item.Quantidade); err != nil {
		s.logger.Warn("failed to increment horimetro",
			zap.String("maquina_id", *catItem.MaquinaID),
			zap.String("horas", item.Quantidade.String()),
			zap.Error(err))
		return
	}

	s.logger.Debug("horímetro incrementado",
		zap.String("maquina_id", *catItem.MaquinaID),
		zap.String("horas", item.Quantidade.String()))
}

func (s *lancamentoService) avisarEstoqueBaixo(ctx context.Context, produtoID, propriedadeID string) {
	produto, err := s.catalogoRepo.GetProduto(ctx, produtoID)
	if err != nil || produto == nil {
		return
	}

	total, err := s.loteRepo.TotalDisponivel(ctx, produtoID, propriedadeID)
	if err != nil {
		return
	}

	if total.LessThanOrEqual(produto.EstoqueMinimo) {
		s.logger.Warn("produto abaixo do estoque mínimo",
			zap.String("produto_id", produtoID),
			zap.String("produto", produto.Nome),
			zap.String("disponivel", total.String()),
			zap.String("estoque_minimo", produto.EstoqueMinimo.String()))
	}
}
