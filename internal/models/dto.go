package models

import (
	"github.com/shopspring/decimal"
)

// ===== REQUEST DTOs =====

// RegistrarLoteRequest DTO para registro de lote (entrada de estoque)
type RegistrarLoteRequest struct {
	ProdutoID     string          `json:"produto_id" validate:"required"`
	PropriedadeID string          `json:"propriedade_id" validate:"required"`
	SafraID       string          `json:"safra_id" validate:"required"`
	Quantidade    decimal.Decimal `json:"quantidade" validate:"required"`
	CustoUnitario decimal.Decimal `json:"custo_unitario"`
	RecebidoEm    string          `json:"recebido_em" validate:"required"` // formato 2006-01-02
	ValidadeEm    *string         `json:"validade_em,omitempty"`
	NotaFiscal    *string         `json:"nota_fiscal,omitempty"`
	Fornecedor    *string         `json:"fornecedor,omitempty"`
}

// ItemLancamentoRequest um item dentro de um lançamento
type ItemLancamentoRequest struct {
	ItemID     string          `json:"item_id" validate:"required"`
	Quantidade decimal.Decimal `json:"quantidade" validate:"required"`
}

// LancamentoRequest DTO para criação/edição de lançamento. A propriedade e a
// safra são sempre explícitas; o motor não lê contexto ambiente.
type LancamentoRequest struct {
	PropriedadeID string                  `json:"propriedade_id" validate:"required"`
	SafraID       string                  `json:"safra_id" validate:"required"`
	ServicoID     string                  `json:"servico_id" validate:"required"`
	TalhaoID      *string                 `json:"talhao_id,omitempty"`
	DataExecucao  string                  `json:"data_execucao" validate:"required"` // formato 2006-01-02
	Observacoes   string                  `json:"observacoes"`
	Itens         []ItemLancamentoRequest `json:"itens" validate:"required,min=1,dive"`
}

// PreviewRequest DTO para prévia de custo
type PreviewRequest struct {
	PropriedadeID string          `json:"propriedade_id" validate:"required"`
	ItemID        string          `json:"item_id"`
	Quantidade    decimal.Decimal `json:"quantidade"`
}

// ===== RESPONSE DTOs =====

// PreviewResponse resultado da prévia de custo de um item. Para itens de
// tarifa (serviço, hora de máquina) não há restrição de estoque e
// TotalDisponivel vem nulo. Para itens de estoque o resultado espelha o
// alocador FIFO: insuficiência é dado, não erro.
type PreviewResponse struct {
	ItemID             string           `json:"item_id"`
	Tipo               TipoItem         `json:"tipo"`
	Quantidade         decimal.Decimal  `json:"quantidade"`
	CustoUnitario      decimal.Decimal  `json:"custo_unitario"`
	CustoTotal         decimal.Decimal  `json:"custo_total"`
	Suficiente         bool             `json:"suficiente"`
	TotalDisponivel    *decimal.Decimal `json:"total_disponivel,omitempty"`
	Faltante           decimal.Decimal  `json:"faltante"`
	Consumos           []ConsumoLote    `json:"consumos,omitempty"`
	LimitadoPorEstoque bool             `json:"limitado_por_estoque"`
}
