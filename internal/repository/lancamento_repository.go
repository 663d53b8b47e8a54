package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"insumos-service/internal/engine"
	"insumos-service/internal/models"
)

// AlocarFunc é a função de alocação injetada nas operações de escrita. O
// repository a executa dentro da transação, sobre os lotes já travados, de
// forma que prévia e commit compartilham exatamente a mesma implementação.
type AlocarFunc func(lotes []*models.Lote, quantidade decimal.Decimal) (*engine.ResultadoAlocacao, error)

// ResultadoEstorno relata o que a restauração de um lançamento encontrou.
// Lotes removidos são pulados com warning (o estorno prossegue); restaurações
// que bateram no clamp indicam estorno contra estado já restaurado.
type ResultadoEstorno struct {
	LotesRestaurados      int
	LotesIgnorados        []string
	RestauracoesClampadas []string
}

// LancamentoRepository define o acesso transacional a lançamentos. Cada
// operação de escrita é uma única transação: cabeçalho, itens e mutações de
// lote são aplicados como unidade ou revertidos juntos.
type LancamentoRepository interface {
	CriarLancamento(ctx context.Context, lanc *models.Lancamento, alocar AlocarFunc) error
	AtualizarLancamento(ctx context.Context, lanc *models.Lancamento, alocar AlocarFunc) (*ResultadoEstorno, error)
	ExcluirLancamento(ctx context.Context, id string) (*ResultadoEstorno, error)
	GetLancamento(ctx context.Context, id string) (*models.Lancamento, error)
	ListarPorSafra(ctx context.Context, safraID string) ([]*models.Lancamento, error)
}

// lancamentoRepository implementa LancamentoRepository
type lancamentoRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLancamentoRepository cria uma nova instância do repository
func NewLancamentoRepository(db *sql.DB, logger *zap.Logger) LancamentoRepository {
	return &lancamentoRepository{db: db, logger: logger}
}

const colunasItem = `id, lancamento_id, item_id, tipo, produto_id, quantidade,
		   custo_unitario, custo_total, consumos, criado_em`

// CriarLancamento persiste o lançamento e aplica as baixas de estoque numa
// única transação. Para cada item de estoque a alocação é reexecutada aqui
// dentro, contra os lotes travados — valores de prévia do cliente nunca são
// confiados.
func (r *lancamentoRepository) CriarLancamento(ctx context.Context, lanc *models.Lancamento, alocar AlocarFunc) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.verificarSafraAbertaTx(ctx, tx, lanc.SafraID); err != nil {
		return err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO lancamentos
		(id, propriedade_id, safra_id, servico_id, talhao_id, data_execucao, observacoes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING criado_em, atualizado_em
	`, lanc.ID, lanc.PropriedadeID, lanc.SafraID, lanc.ServicoID, lanc.TalhaoID,
		lanc.DataExecucao, lanc.Observacoes,
	).Scan(&lanc.CriadoEm, &lanc.AtualizadoEm)
	if err != nil {
		return fmt.Errorf("failed to insert lancamento: %w", err)
	}

	if err := r.aplicarItensTx(ctx, tx, lanc, alocar); err != nil {
		return err
	}

	return tx.Commit()
}

// ExcluirLancamento restaura todos os lotes tocados replayando o breakdown
// persistido em ordem reversa e só então remove itens e cabeçalho, tudo numa
// transação. Um lote que não existe mais é pulado com warning para que a
// exclusão prossiga.
func (r *lancamentoRepository) ExcluirLancamento(ctx context.Context, id string) (*ResultadoEstorno, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	safraID, err := r.getSafraDoLancamentoTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := r.verificarSafraAbertaTx(ctx, tx, safraID); err != nil {
		return nil, err
	}

	estorno, err := r.reverterItensTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM lancamentos WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to delete lancamento: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return estorno, nil
}

// AtualizarLancamento trata edição como estorno-e-reaplicação dentro de uma
// única transação: o breakdown antigo é restaurado primeiro, e a alocação dos
// novos valores roda contra o estado já liberado. Se qualquer metade falhar,
// o rollback preserva o lançamento original intacto.
func (r *lancamentoRepository) AtualizarLancamento(ctx context.Context, lanc *models.Lancamento, alocar AlocarFunc) (*ResultadoEstorno, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	safraAnterior, err := r.getSafraDoLancamentoTx(ctx, tx, lanc.ID)
	if err != nil {
		return nil, err
	}
	if err := r.verificarSafraAbertaTx(ctx, tx, safraAnterior); err != nil {
		return nil, err
	}
	if lanc.SafraID != safraAnterior {
		if err := r.verificarSafraAbertaTx(ctx, tx, lanc.SafraID); err != nil {
			return nil, err
		}
	}

	estorno, err := r.reverterItensTx(ctx, tx, lanc.ID)
	if err != nil {
		return nil, err
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE lancamentos
		SET propriedade_id = $1, safra_id = $2, servico_id = $3, talhao_id = $4,
			data_execucao = $5, observacoes = $6, atualizado_em = NOW()
		WHERE id = $7
		RETURNING criado_em, atualizado_em
	`, lanc.PropriedadeID, lanc.SafraID, lanc.ServicoID, lanc.TalhaoID,
		lanc.DataExecucao, lanc.Observacoes, lanc.ID,
	).Scan(&lanc.CriadoEm, &lanc.AtualizadoEm)
	if err != nil {
		return nil, fmt.Errorf("failed to update lancamento: %w", err)
	}

	if err := r.aplicarItensTx(ctx, tx, lanc, alocar); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return estorno, nil
}

// GetLancamento obtém um lançamento com seus itens; retorna nil quando não existe
func (r *lancamentoRepository) GetLancamento(ctx context.Context, id string) (*models.Lancamento, error) {
	lanc, err := r.scanLancamento(r.db.QueryRowContext(ctx, `
		SELECT id, propriedade_id, safra_id, servico_id, talhao_id, data_execucao,
			   observacoes, criado_em, atualizado_em
		FROM lancamentos
		WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lancamento: %w", err)
	}

	if err := r.carregarItens(ctx, []*models.Lancamento{lanc}); err != nil {
		return nil, err
	}
	return lanc, nil
}

// ListarPorSafra lista os lançamentos de uma safra com seus itens
func (r *lancamentoRepository) ListarPorSafra(ctx context.Context, safraID string) ([]*models.Lancamento, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, propriedade_id, safra_id, servico_id, talhao_id, data_execucao,
			   observacoes, criado_em, atualizado_em
		FROM lancamentos
		WHERE safra_id = $1
		ORDER BY data_execucao DESC, criado_em DESC
	`, safraID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lancamentos: %w", err)
	}
	defer rows.Close()

	var lancamentos []*models.Lancamento
	for rows.Next() {
		lanc, err := r.scanLancamento(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lancamento: %w", err)
		}
		lancamentos = append(lancamentos, lanc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.carregarItens(ctx, lancamentos); err != nil {
		return nil, err
	}
	return lancamentos, nil
}

// ===== helpers transacionais =====

// verificarSafraAbertaTx relê o estado da safra dentro da transação. A camada
// de serviço já fez uma pré-checagem com leitura fresca; esta repetição fecha
// a janela entre checagem e commit.
func (r *lancamentoRepository) verificarSafraAbertaTx(ctx context.Context, tx *sql.Tx, safraID string) error {
	var fechada bool
	err := tx.QueryRowContext(ctx, `SELECT fechada FROM safras WHERE id = $1`, safraID).Scan(&fechada)
	if err == sql.ErrNoRows {
		return &engine.ErroValidacao{Campo: "safra_id", Motivo: "safra não encontrada"}
	}
	if err != nil {
		return fmt.Errorf("failed to check safra: %w", err)
	}
	if fechada {
		return &engine.ErroSafraFechada{SafraID: safraID}
	}
	return nil
}

func (r *lancamentoRepository) getSafraDoLancamentoTx(ctx context.Context, tx *sql.Tx, lancamentoID string) (string, error) {
	var safraID string
	err := tx.QueryRowContext(ctx, `
		SELECT safra_id FROM lancamentos WHERE id = $1 FOR UPDATE
	`, lancamentoID).Scan(&safraID)
	if err == sql.ErrNoRows {
		return "", &engine.ErroValidacao{Campo: "lancamento_id", Motivo: "lançamento não encontrado"}
	}
	if err != nil {
		return "", fmt.Errorf("failed to get lancamento: %w", err)
	}
	return safraID, nil
}

// aplicarItensTx insere os itens e aplica as baixas. Os itens de tarifa já
// chegam com os custos resolvidos pelo serviço; itens de estoque são alocados
// aqui, contra os lotes travados com FOR UPDATE.
func (r *lancamentoRepository) aplicarItensTx(ctx context.Context, tx *sql.Tx, lanc *models.Lancamento, alocar AlocarFunc) error {
	for _, item := range lanc.Itens {
		if item.Tipo == models.TipoEstoque {
			if item.ProdutoID == nil {
				return &engine.ErroValidacao{Campo: "produto_id", Motivo: "item de estoque sem produto vinculado"}
			}

			lotes, err := r.lotesDisponiveisParaUpdateTx(ctx, tx, *item.ProdutoID, lanc.PropriedadeID)
			if err != nil {
				return err
			}

			res, err := alocar(lotes, item.Quantidade)
			if err != nil {
				return err
			}
			if !res.Suficiente {
				return &engine.ErroEstoqueInsuficiente{
					ItemID:     item.ItemID,
					ProdutoID:  *item.ProdutoID,
					Solicitado: item.Quantidade,
					Disponivel: res.TotalDisponivel,
					Faltante:   res.Faltante,
				}
			}

			item.CustoUnitario = res.CustoUnitarioMedio
			item.CustoTotal = res.CustoTotal
			item.Consumos = models.ConsumoBreakdown{
				Versao:   models.VersaoConsumoAtual,
				Consumos: res.Consumos,
			}
		}

		item.LancamentoID = lanc.ID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO lancamento_itens
			(id, lancamento_id, item_id, tipo, produto_id, quantidade,
			 custo_unitario, custo_total, consumos)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING criado_em
		`, item.ID, item.LancamentoID, item.ItemID, item.Tipo, item.ProdutoID,
			item.Quantidade, item.CustoUnitario, item.CustoTotal, item.Consumos,
		).Scan(&item.CriadoEm)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}

		for _, consumo := range item.Consumos.Consumos {
			if err := r.depletarTx(ctx, tx, consumo.LoteID, consumo.QuantidadeConsumida); err != nil {
				return err
			}
		}
	}

	return nil
}

// depletarTx decrementa quantidade_restante com guarda no próprio UPDATE.
// Com os lotes travados isso não deve falhar; se falhar, há corrida ou dado
// corrompido e a transação inteira volta atrás.
func (r *lancamentoRepository) depletarTx(ctx context.Context, tx *sql.Tx, loteID string, quantidade decimal.Decimal) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE lotes_insumos
		SET quantidade_restante = quantidade_restante - $1, atualizado_em = NOW()
		WHERE id = $2 AND quantidade_restante >= $1
	`, quantidade, loteID)
	if err != nil {
		return fmt.Errorf("failed to deplete lote %s: %w", loteID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		r.logger.Error("baixa violaria o saldo do lote",
			zap.String("lote_id", loteID),
			zap.String("quantidade", quantidade.String()))
		return &engine.ErroInvariante{LoteID: loteID, Operacao: "baixa", Quantidade: quantidade}
	}

	return nil
}

// reverterItensTx restaura cada lote do breakdown persistido (com clamp na
// quantidade original) e remove os itens. Lotes removidos são pulados com
// warning; bater no clamp indica estorno contra estado já restaurado e também
// vira warning.
func (r *lancamentoRepository) reverterItensTx(ctx context.Context, tx *sql.Tx, lancamentoID string) (*ResultadoEstorno, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT consumos FROM lancamento_itens WHERE lancamento_id = $1 ORDER BY criado_em
	`, lancamentoID)
	if err != nil {
		return nil, fmt.Errorf("failed to load itens: %w", err)
	}

	var breakdowns []models.ConsumoBreakdown
	for rows.Next() {
		var b models.ConsumoBreakdown
		if err := rows.Scan(&b); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan consumos: %w", err)
		}
		breakdowns = append(breakdowns, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	estorno := &ResultadoEstorno{}
	for _, b := range breakdowns {
		for _, consumo := range b.Consumos {
			var restante, original decimal.Decimal
			err := tx.QueryRowContext(ctx, `
				SELECT quantidade_restante, quantidade_original
				FROM lotes_insumos WHERE id = $1 FOR UPDATE
			`, consumo.LoteID).Scan(&restante, &original)
			if err == sql.ErrNoRows {
				r.logger.Warn("lote do breakdown não existe mais; restauração pulada",
					zap.String("lancamento_id", lancamentoID),
					zap.String("lote_id", consumo.LoteID))
				estorno.LotesIgnorados = append(estorno.LotesIgnorados, consumo.LoteID)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to lock lote %s: %w", consumo.LoteID, err)
			}

			nova := restante.Add(consumo.QuantidadeConsumida)
			if nova.GreaterThan(original) {
				r.logger.Warn("restauração excederia a quantidade original; aplicando clamp",
					zap.String("lancamento_id", lancamentoID),
					zap.String("lote_id", consumo.LoteID),
					zap.String("restante", restante.String()),
					zap.String("original", original.String()))
				estorno.RestauracoesClampadas = append(estorno.RestauracoesClampadas, consumo.LoteID)
				nova = original
			}

			_, err = tx.ExecContext(ctx, `
				UPDATE lotes_insumos
				SET quantidade_restante = $1, atualizado_em = NOW()
				WHERE id = $2
			`, nova, consumo.LoteID)
			if err != nil {
				return nil, fmt.Errorf("failed to restore lote %s: %w", consumo.LoteID, err)
			}
			estorno.LotesRestaurados++
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM lancamento_itens WHERE lancamento_id = $1`, lancamentoID); err != nil {
		return nil, fmt.Errorf("failed to delete itens: %w", err)
	}

	return estorno, nil
}

func (r *lancamentoRepository) lotesDisponiveisParaUpdateTx(ctx context.Context, tx *sql.Tx, produtoID, propriedadeID string) ([]*models.Lote, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+colunasLote+`
		FROM lotes_insumos
		WHERE produto_id = $1 AND propriedade_id = $2 AND quantidade_restante > 0
		ORDER BY recebido_em ASC, criado_em ASC
		FOR UPDATE
	`, produtoID, propriedadeID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock lotes: %w", err)
	}
	defer rows.Close()

	return scanLotes(rows)
}

func (r *lancamentoRepository) scanLancamento(row rowScanner) (*models.Lancamento, error) {
	var lanc models.Lancamento
	err := row.Scan(
		&lanc.ID, &lanc.PropriedadeID, &lanc.SafraID, &lanc.ServicoID,
		&lanc.TalhaoID, &lanc.DataExecucao, &lanc.Observacoes,
		&lanc.CriadoEm, &lanc.AtualizadoEm,
	)
	if err != nil {
		return nil, err
	}
	return &lanc, nil
}

// carregarItens carrega os itens de um conjunto de lançamentos numa única consulta
func (r *lancamentoRepository) carregarItens(ctx context.Context, lancamentos []*models.Lancamento) error {
	if len(lancamentos) == 0 {
		return nil
	}

	ids := make([]string, len(lancamentos))
	porID := make(map[string]*models.Lancamento, len(lancamentos))
	for i, lanc := range lancamentos {
		ids[i] = lanc.ID
		porID[lanc.ID] = lanc
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+colunasItem+`
		FROM lancamento_itens
		WHERE lancamento_id = ANY($1)
		ORDER BY criado_em
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load itens: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.ItemLancamento
		err := rows.Scan(
			&item.ID, &item.LancamentoID, &item.ItemID, &item.Tipo, &item.ProdutoID,
			&item.Quantidade, &item.CustoUnitario, &item.CustoTotal, &item.Consumos,
			&item.CriadoEm,
		)
		if err != nil {
			return fmt.Errorf("failed to scan item: %w", err)
		}
		if lanc, ok := porID[item.LancamentoID]; ok {
			lanc.Itens = append(lanc.Itens, &item)
		}
	}

	return rows.Err()
}
