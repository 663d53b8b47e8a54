package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lote representa a tabela lotes_insumos: um recebimento precificado de
// estoque de um produto. A quantidade original é fixada na criação; apenas
// quantidade_restante muda, por baixa (alocação) ou restauração (estorno).
type Lote struct {
	ID                 string          `json:"id" db:"id"`
	ProdutoID          string          `json:"produto_id" db:"produto_id"`
	PropriedadeID      string          `json:"propriedade_id" db:"propriedade_id"`
	SafraID            string          `json:"safra_id" db:"safra_id"`
	QuantidadeOriginal decimal.Decimal `json:"quantidade_original" db:"quantidade_original"`
	QuantidadeRestante decimal.Decimal `json:"quantidade_restante" db:"quantidade_restante"`
	CustoUnitario      decimal.Decimal `json:"custo_unitario" db:"custo_unitario"`
	RecebidoEm         time.Time       `json:"recebido_em" db:"recebido_em"`
	ValidadeEm         *time.Time      `json:"validade_em,omitempty" db:"validade_em"`
	NotaFiscal         *string         `json:"nota_fiscal,omitempty" db:"nota_fiscal"`
	Fornecedor         *string         `json:"fornecedor,omitempty" db:"fornecedor"`
	CriadoEm           time.Time       `json:"criado_em" db:"criado_em"`
	AtualizadoEm       time.Time       `json:"atualizado_em" db:"atualizado_em"`
}

// Esgotado indica se o lote já foi totalmente consumido. Lotes esgotados
// nunca são removidos; ficam com quantidade_restante = 0 para histórico.
func (l *Lote) Esgotado() bool {
	return l.QuantidadeRestante.LessThanOrEqual(decimal.Zero)
}

// EstoqueProduto resumo do estoque disponível de um produto numa propriedade
type EstoqueProduto struct {
	ProdutoID       string          `json:"produto_id" db:"produto_id"`
	Nome            string          `json:"nome" db:"nome"`
	Unidade         string          `json:"unidade" db:"unidade"`
	EstoqueMinimo   decimal.Decimal `json:"estoque_minimo" db:"estoque_minimo"`
	TotalDisponivel decimal.Decimal `json:"total_disponivel" db:"total_disponivel"`
	TotalLotes      int             `json:"total_lotes" db:"total_lotes"`
}
