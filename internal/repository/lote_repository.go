package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"insumos-service/internal/models"
)

// LoteRepository define a interface de acesso ao razão de lotes. Baixas e
// restaurações não aparecem aqui: elas só acontecem dentro da transação de um
// lançamento (ver LancamentoRepository), nunca como chamadas avulsas.
type LoteRepository interface {
	RegistrarLote(ctx context.Context, lote *models.Lote) error
	GetLote(ctx context.Context, id string) (*models.Lote, error)
	ListarPorProduto(ctx context.Context, produtoID, propriedadeID string, somenteDisponiveis bool) ([]*models.Lote, error)
	ListarDisponiveis(ctx context.Context, produtoID, propriedadeID string) ([]*models.Lote, error)
	TotalDisponivel(ctx context.Context, produtoID, propriedadeID string) (decimal.Decimal, error)
	EstoqueBaixo(ctx context.Context, propriedadeID string) ([]*models.EstoqueProduto, error)
}

// loteRepository implementa LoteRepository
type loteRepository struct {
	db    *sql.DB
	stmts map[string]*sql.Stmt
}

// NewLoteRepository cria uma nova instância do repository
func NewLoteRepository(db *sql.DB) (LoteRepository, error) {
	repo := &loteRepository{
		db:    db,
		stmts: make(map[string]*sql.Stmt),
	}

	if err := repo.prepareStatements(); err != nil {
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return repo, nil
}

const colunasLote = `id, produto_id, propriedade_id, safra_id, quantidade_original,
		   quantidade_restante, custo_unitario, recebido_em, validade_em,
		   nota_fiscal, fornecedor, criado_em, atualizado_em`

// prepareStatements prepara as consultas SQL para melhor desempenho
func (r *loteRepository) prepareStatements() error {
	statements := map[string]string{
		"create_lote": `
			INSERT INTO lotes_insumos
			(id, produto_id, propriedade_id, safra_id, quantidade_original,
			 quantidade_restante, custo_unitario, recebido_em, validade_em,
			 nota_fiscal, fornecedor)
			VALUES ($1, $2, $3, $4, $5, $5, $6, $7, $8, $9, $10)
			RETURNING criado_em, atualizado_em
		`,
		"get_lote": `
			SELECT ` + colunasLote + `
			FROM lotes_insumos
			WHERE id = $1
		`,
		"listar_por_produto": `
			SELECT ` + colunasLote + `
			FROM lotes_insumos
			WHERE produto_id = $1 AND propriedade_id = $2
			ORDER BY recebido_em ASC, criado_em ASC
		`,
		"listar_disponiveis": `
			SELECT ` + colunasLote + `
			FROM lotes_insumos
			WHERE produto_id = $1 AND propriedade_id = $2 AND quantidade_restante > 0
			ORDER BY recebido_em ASC, criado_em ASC
		`,
		"total_disponivel": `
			SELECT COALESCE(SUM(quantidade_restante), 0)
			FROM lotes_insumos
			WHERE produto_id = $1 AND propriedade_id = $2 AND quantidade_restante > 0
		`,
		"estoque_baixo": `
			SELECT p.id, p.nome, p.unidade, p.estoque_minimo,
				   COALESCE(SUM(l.quantidade_restante), 0) AS total_disponivel,
				   COUNT(l.id) FILTER (WHERE l.quantidade_restante > 0) AS total_lotes
			FROM produtos p
			LEFT JOIN lotes_insumos l ON l.produto_id = p.id AND l.propriedade_id = $1
			WHERE p.ativo = true
			GROUP BY p.id, p.nome, p.unidade, p.estoque_minimo
			HAVING COALESCE(SUM(l.quantidade_restante), 0) <= p.estoque_minimo
			ORDER BY total_disponivel ASC
		`,
	}

	for name, query := range statements {
		stmt, err := r.db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare %s: %w", name, err)
		}
		r.stmts[name] = stmt
	}

	return nil
}

// RegistrarLote cria um lote novo com quantidade_restante = quantidade_original
func (r *loteRepository) RegistrarLote(ctx context.Context, lote *models.Lote) error {
	err := r.stmts["create_lote"].QueryRowContext(ctx,
		lote.ID, lote.ProdutoID, lote.PropriedadeID, lote.SafraID,
		lote.QuantidadeOriginal, lote.CustoUnitario, lote.RecebidoEm,
		lote.ValidadeEm, lote.NotaFiscal, lote.Fornecedor,
	).Scan(&lote.CriadoEm, &lote.AtualizadoEm)

	if err != nil {
		return fmt.Errorf("failed to create lote: %w", err)
	}

	lote.QuantidadeRestante = lote.QuantidadeOriginal
	return nil
}

// GetLote obtém um lote por id; retorna nil quando não existe
func (r *loteRepository) GetLote(ctx context.Context, id string) (*models.Lote, error) {
	lote, err := scanLote(r.stmts["get_lote"].QueryRowContext(ctx, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lote: %w", err)
	}
	return lote, nil
}

// ListarPorProduto lista os lotes de um produto numa propriedade, em ordem FIFO
func (r *loteRepository) ListarPorProduto(ctx context.Context, produtoID, propriedadeID string, somenteDisponiveis bool) ([]*models.Lote, error) {
	stmt := r.stmts["listar_por_produto"]
	if somenteDisponiveis {
		stmt = r.stmts["listar_disponiveis"]
	}

	rows, err := stmt.QueryContext(ctx, produtoID, propriedadeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lotes: %w", err)
	}
	defer rows.Close()

	return scanLotes(rows)
}

// ListarDisponiveis lista os lotes com saldo, em ordem FIFO
func (r *loteRepository) ListarDisponiveis(ctx context.Context, produtoID, propriedadeID string) ([]*models.Lote, error) {
	return r.ListarPorProduto(ctx, produtoID, propriedadeID, true)
}

// TotalDisponivel soma o restante de todos os lotes com saldo de um produto
func (r *loteRepository) TotalDisponivel(ctx context.Context, produtoID, propriedadeID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.stmts["total_disponivel"].QueryRowContext(ctx, produtoID, propriedadeID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get total disponivel: %w", err)
	}
	return total, nil
}

// EstoqueBaixo lista produtos com estoque no nível mínimo ou abaixo
func (r *loteRepository) EstoqueBaixo(ctx context.Context, propriedadeID string) ([]*models.EstoqueProduto, error) {
	rows, err := r.stmts["estoque_baixo"].QueryContext(ctx, propriedadeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get estoque baixo: %w", err)
	}
	defer rows.Close()

	var resultado []*models.EstoqueProduto
	for rows.Next() {
		var e models.EstoqueProduto
		err := rows.Scan(&e.ProdutoID, &e.Nome, &e.Unidade, &e.EstoqueMinimo,
			&e.TotalDisponivel, &e.TotalLotes)
		if err != nil {
			return nil, fmt.Errorf("failed to scan estoque: %w", err)
		}
		resultado = append(resultado, &e)
	}

	return resultado, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLote(row rowScanner) (*models.Lote, error) {
	var lote models.Lote
	err := row.Scan(
		&lote.ID, &lote.ProdutoID, &lote.PropriedadeID, &lote.SafraID,
		&lote.QuantidadeOriginal, &lote.QuantidadeRestante, &lote.CustoUnitario,
		&lote.RecebidoEm, &lote.ValidadeEm, &lote.NotaFiscal, &lote.Fornecedor,
		&lote.CriadoEm, &lote.AtualizadoEm,
	)
	if err != nil {
		return nil, err
	}
	return &lote, nil
}

func scanLotes(rows *sql.Rows) ([]*models.Lote, error) {
	var lotes []*models.Lote
	for rows.Next() {
		lote, err := scanLote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lote: %w", err)
		}
		lotes = append(lotes, lote)
	}
	return lotes, rows.Err()
}
