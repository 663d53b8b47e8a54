package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"insumos-service/internal/models"
)

// CatalogoRepository define o acesso de leitura ao catálogo (itens, produtos,
// máquinas e safras) e a atualização de horímetro
type CatalogoRepository interface {
	GetItem(ctx context.Context, id string) (*models.ItemCatalogo, error)
	GetProduto(ctx context.Context, id string) (*models.Produto, error)
	GetMaquina(ctx context.Context, id string) (*models.Maquina, error)
	GetSafra(ctx context.Context, id string) (*models.Safra, error)
	IncrementarHorimetro(ctx context.Context, maquinaID string, horas decimal.Decimal) error
}

// catalogoRepository implementa CatalogoRepository
type catalogoRepository struct {
	db            *sql.DB
	logger        *zap.Logger
	preparedStmts map[string]*sql.Stmt
}

// NewCatalogoRepository cria uma nova instância do repository
func NewCatalogoRepository(db *sql.DB, logger *zap.Logger) (CatalogoRepository, error) {
	repo := &catalogoRepository{
		db:            db,
		logger:        logger,
		preparedStmts: make(map[string]*sql.Stmt),
	}

	if err := repo.prepareStatements(); err != nil {
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return repo, nil
}

// prepareStatements prepara as consultas mais frequentes
func (r *catalogoRepository) prepareStatements() error {
	queries := map[string]string{
		"get_item": `
			SELECT id, nome, tipo, produto_id, maquina_id, tarifa_padrao, ativo, criado_em
			FROM itens_catalogo
			WHERE id = $1 AND ativo = true
		`,
		"get_produto": `
			SELECT id, nome, unidade, estoque_minimo, ativo, criado_em, atualizado_em
			FROM produtos
			WHERE id = $1
		`,
		"get_maquina": `
			SELECT id, nome, tarifa_hora, horimetro, ativo, criado_em, atualizado_em
			FROM maquinas
			WHERE id = $1
		`,
		"get_safra": `
			SELECT id, propriedade_id, nome, fechada, fechada_em, criado_em
			FROM safras
			WHERE id = $1
		`,
		"incrementar_horimetro": `
			UPDATE maquinas
			SET horimetro = horimetro + $1, atualizado_em = NOW()
			WHERE id = $2
		`,
	}

	for name, query := range queries {
		stmt, err := r.db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare %s: %w", name, err)
		}
		r.preparedStmts[name] = stmt
	}

	return nil
}

// GetItem obtém um item ativo do catálogo; retorna nil quando não existe
func (r *catalogoRepository) GetItem(ctx context.Context, id string) (*models.ItemCatalogo, error) {
	var item models.ItemCatalogo
	err := r.preparedStmts["get_item"].QueryRowContext(ctx, id).Scan(
		&item.ID, &item.Nome, &item.Tipo, &item.ProdutoID, &item.MaquinaID,
		&item.TarifaPadrao, &item.Ativo, &item.CriadoEm,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &item, nil
}

// GetProduto obtém um produto; retorna nil quando não existe
func (r *catalogoRepository) GetProduto(ctx context.Context, id string) (*models.Produto, error) {
	var produto models.Produto
	err := r.preparedStmts["get_produto"].QueryRowContext(ctx, id).Scan(
		&produto.ID, &produto.Nome, &produto.Unidade, &produto.EstoqueMinimo,
		&produto.Ativo, &produto.CriadoEm, &produto.AtualizadoEm,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get produto: %w", err)
	}
	return &produto, nil
}

// GetMaquina obtém uma máquina; retorna nil quando não existe
func (r *catalogoRepository) GetMaquina(ctx context.Context, id string) (*models.Maquina, error) {
	var maquina models.Maquina
	err := r.preparedStmts["get_maquina"].QueryRowContext(ctx, id).Scan(
		&maquina.ID, &maquina.Nome, &maquina.TarifaHora, &maquina.Horimetro,
		&maquina.Ativo, &maquina.CriadoEm, &maquina.AtualizadoEm,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get maquina: %w", err)
	}
	return &maquina, nil
}

// GetSafra obtém uma safra; retorna nil quando não existe
func (r *catalogoRepository) GetSafra(ctx context.Context, id string) (*models.Safra, error) {
	var safra models.Safra
	err := r.preparedStmts["get_safra"].QueryRowContext(ctx, id).Scan(
		&safra.ID, &safra.PropriedadeID, &safra.Nome, &safra.Fechada,
		&safra.FechadaEm, &safra.CriadoEm,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get safra: %w", err)
	}
	return &safra, nil
}

// IncrementarHorimetro soma horas ao horímetro acumulado da máquina
func (r *catalogoRepository) IncrementarHorimetro(ctx context.Context, maquinaID string, horas decimal.Decimal) error {
	result, err := r.preparedStmts["incrementar_horimetro"].ExecContext(ctx, horas, maquinaID)
	if err != nil {
		return fmt.Errorf("failed to increment horimetro: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("maquina %s not found", maquinaID)
	}

	return nil
}
