package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TipoItem classifica um item de catálogo quanto à forma de custeio.
type TipoItem string

const (
	// TipoEstoque item vinculado a um produto com lotes; custo via FIFO
	TipoEstoque TipoItem = "estoque"
	// TipoServico item de tarifa fixa, sem baixa de estoque
	TipoServico TipoItem = "servico"
	// TipoHoraMaquina item custeado por hora de máquina
	TipoHoraMaquina TipoItem = "hora_maquina"
)

// Lancamento representa a tabela lancamentos: um evento operacional (ex.:
// uma aplicação de insumos) com seus itens de custo.
type Lancamento struct {
	ID            string            `json:"id" db:"id"`
	PropriedadeID string            `json:"propriedade_id" db:"propriedade_id"`
	SafraID       string            `json:"safra_id" db:"safra_id"`
	ServicoID     string            `json:"servico_id" db:"servico_id"`
	TalhaoID      *string           `json:"talhao_id,omitempty" db:"talhao_id"`
	DataExecucao  time.Time         `json:"data_execucao" db:"data_execucao"`
	Observacoes   string            `json:"observacoes" db:"observacoes"`
	Itens         []*ItemLancamento `json:"itens"`
	CriadoEm      time.Time         `json:"criado_em" db:"criado_em"`
	AtualizadoEm  time.Time         `json:"atualizado_em" db:"atualizado_em"`
}

// CustoTotal soma o custo de todos os itens do lançamento.
func (l *Lancamento) CustoTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range l.Itens {
		total = total.Add(item.CustoTotal)
	}
	return total
}

// ItemLancamento representa a tabela lancamento_itens: um item consumido ou
// executado dentro de um lançamento. Para itens de estoque, Consumos guarda o
// breakdown lote a lote resolvido no commit; CustoUnitario é a média
// ponderada (apenas exibição) e CustoTotal a soma dos custos parciais. Para
// itens de tarifa, CustoTotal = Quantidade × CustoUnitario.
type ItemLancamento struct {
	ID            string           `json:"id" db:"id"`
	LancamentoID  string           `json:"lancamento_id" db:"lancamento_id"`
	ItemID        string           `json:"item_id" db:"item_id"`
	Tipo          TipoItem         `json:"tipo" db:"tipo"`
	ProdutoID     *string          `json:"produto_id,omitempty" db:"produto_id"`
	Quantidade    decimal.Decimal  `json:"quantidade" db:"quantidade"`
	CustoUnitario decimal.Decimal  `json:"custo_unitario" db:"custo_unitario"`
	CustoTotal    decimal.Decimal  `json:"custo_total" db:"custo_total"`
	Consumos      ConsumoBreakdown `json:"consumos" db:"consumos"`
	CriadoEm      time.Time        `json:"criado_em" db:"criado_em"`
}
