package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Produto representa a tabela produtos: um insumo controlado por estoque
type Produto struct {
	ID            string          `json:"id" db:"id"`
	Nome          string          `json:"nome" db:"nome"`
	Unidade       string          `json:"unidade" db:"unidade"`
	EstoqueMinimo decimal.Decimal `json:"estoque_minimo" db:"estoque_minimo"`
	Ativo         bool            `json:"ativo" db:"ativo"`
	CriadoEm      time.Time       `json:"criado_em" db:"criado_em"`
	AtualizadoEm  time.Time       `json:"atualizado_em" db:"atualizado_em"`
}

// Maquina representa a tabela maquinas. O horímetro acumula as horas
// registradas em lançamentos de hora_maquina.
type Maquina struct {
	ID           string          `json:"id" db:"id"`
	Nome         string          `json:"nome" db:"nome"`
	TarifaHora   decimal.Decimal `json:"tarifa_hora" db:"tarifa_hora"`
	Horimetro    decimal.Decimal `json:"horimetro" db:"horimetro"`
	Ativo        bool            `json:"ativo" db:"ativo"`
	CriadoEm     time.Time       `json:"criado_em" db:"criado_em"`
	AtualizadoEm time.Time       `json:"atualizado_em" db:"atualizado_em"`
}

// ItemCatalogo representa a tabela itens_catalogo: o que pode compor um
// lançamento. Itens de estoque apontam para um Produto, itens de hora de
// máquina para uma Maquina, e serviços de tarifa fixa para nenhum dos dois.
type ItemCatalogo struct {
	ID           string           `json:"id" db:"id"`
	Nome         string           `json:"nome" db:"nome"`
	Tipo         TipoItem         `json:"tipo" db:"tipo"`
	ProdutoID    *string          `json:"produto_id,omitempty" db:"produto_id"`
	MaquinaID    *string          `json:"maquina_id,omitempty" db:"maquina_id"`
	TarifaPadrao *decimal.Decimal `json:"tarifa_padrao,omitempty" db:"tarifa_padrao"`
	Ativo        bool             `json:"ativo" db:"ativo"`
	CriadoEm     time.Time        `json:"criado_em" db:"criado_em"`
}

// Safra representa a tabela safras. Uma safra fechada congela lançamentos e
// lotes: nenhuma mutação é permitida até a reabertura.
type Safra struct {
	ID            string     `json:"id" db:"id"`
	PropriedadeID string     `json:"propriedade_id" db:"propriedade_id"`
	Nome          string     `json:"nome" db:"nome"`
	Fechada       bool       `json:"fechada" db:"fechada"`
	FechadaEm     *time.Time `json:"fechada_em,omitempty" db:"fechada_em"`
	CriadoEm      time.Time  `json:"criado_em" db:"criado_em"`
}
