package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// VersaoConsumoAtual versão corrente do registro de consumo persistido.
// O breakdown é relido literalmente no estorno, então o esquema só pode
// evoluir de forma retrocompatível.
const VersaoConsumoAtual = 1

// ConsumoLote registra quanto foi retirado de um lote específico dentro de
// uma alocação. O custo_unitario é sempre o custo original do lote, nunca a
// média ponderada.
type ConsumoLote struct {
	LoteID              string          `json:"lote_id"`
	QuantidadeConsumida decimal.Decimal `json:"quantidade_consumida"`
	CustoUnitario       decimal.Decimal `json:"custo_unitario"`
	CustoParcial        decimal.Decimal `json:"custo_parcial"`
}

// ConsumoBreakdown é o registro versionado e ordenado de consumo por lote de
// um item de lançamento. Persistido como JSONB; é a única fonte de verdade
// para qualquer estorno posterior.
type ConsumoBreakdown struct {
	Versao   int           `json:"versao"`
	Consumos []ConsumoLote `json:"consumos"`
}

// Vazio indica ausência de consumo registrado. Para itens de estoque com
// quantidade > 0 isso sinaliza alocação não resolvida e bloqueia o commit.
func (c ConsumoBreakdown) Vazio() bool {
	return len(c.Consumos) == 0
}

// Value implementa driver.Valuer para gravação em coluna JSONB.
func (c ConsumoBreakdown) Value() (driver.Value, error) {
	if c.Versao == 0 {
		c.Versao = VersaoConsumoAtual
	}
	return json.Marshal(c)
}

// Scan implementa sql.Scanner. Registros históricos gravados sem campo de
// versão são lidos como versão 1.
func (c *ConsumoBreakdown) Scan(src interface{}) error {
	if src == nil {
		*c = ConsumoBreakdown{Versao: VersaoConsumoAtual}
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("tipo inesperado para consumo breakdown: %T", src)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to scan consumo breakdown: %w", err)
	}
	if c.Versao == 0 {
		c.Versao = VersaoConsumoAtual
	}
	return nil
}
