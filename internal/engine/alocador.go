package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"insumos-service/internal/models"
)

// CasasDecimaisCustoMedio precisão do custo unitário médio (apenas exibição;
// os custos parciais persistidos usam o custo original de cada lote e somam
// exato).
const CasasDecimaisCustoMedio = 6

// ResultadoAlocacao resultado da partição FIFO de uma quantidade solicitada
// sobre os lotes de um produto.
type ResultadoAlocacao struct {
	Consumos           []models.ConsumoLote `json:"consumos"`
	CustoTotal         decimal.Decimal      `json:"custo_total"`
	CustoUnitarioMedio decimal.Decimal      `json:"custo_unitario_medio"`
	TotalDisponivel    decimal.Decimal      `json:"total_disponivel"`
	Suficiente         bool                 `json:"suficiente"`
	Faltante           decimal.Decimal      `json:"faltante"`
}

// Alocar particiona a quantidade solicitada sobre os lotes em ordem FIFO
// (recebido_em, criado_em). É a única implementação de alocação do serviço:
// a prévia a executa sobre um snapshot fresco e o commit a reexecuta dentro
// da transação, sobre os lotes travados.
//
// Função pura: não muta os lotes recebidos e pode ser chamada
// especulativamente. Lotes com restante zero são ignorados; entradas com
// consumo zero não aparecem no breakdown. Mesmo quando o pedido já foi
// coberto, a varredura continua para computar o total disponível do relatório
// de insuficiência — e, no caminho insuficiente, o breakdown esgota tudo que
// havia, para que o chamador possa mostrar o que seria coberto.
func Alocar(lotes []*models.Lote, quantidade decimal.Decimal) (*ResultadoAlocacao, error) {
	if quantidade.LessThanOrEqual(decimal.Zero) {
		return nil, &ErroValidacao{Campo: "quantidade", Motivo: "deve ser maior que zero"}
	}

	// Cópia + ordenação estável: o chamador pode não ter pré-ordenado, e o
	// desempate de recebimentos no mesmo dia é a ordem de inserção.
	ordenados := make([]*models.Lote, len(lotes))
	copy(ordenados, lotes)
	sort.SliceStable(ordenados, func(i, j int) bool {
		if !ordenados[i].RecebidoEm.Equal(ordenados[j].RecebidoEm) {
			return ordenados[i].RecebidoEm.Before(ordenados[j].RecebidoEm)
		}
		return ordenados[i].CriadoEm.Before(ordenados[j].CriadoEm)
	})

	restante := quantidade
	consumos := make([]models.ConsumoLote, 0, len(ordenados))
	custoTotal := decimal.Zero
	disponivel := decimal.Zero

	for _, lote := range ordenados {
		if lote.QuantidadeRestante.LessThanOrEqual(decimal.Zero) {
			continue
		}
		disponivel = disponivel.Add(lote.QuantidadeRestante)

		if restante.LessThanOrEqual(decimal.Zero) {
			continue
		}

		consumo := decimal.Min(restante, lote.QuantidadeRestante)
		parcial := consumo.Mul(lote.CustoUnitario)

		consumos = append(consumos, models.ConsumoLote{
			LoteID:              lote.ID,
			QuantidadeConsumida: consumo,
			CustoUnitario:       lote.CustoUnitario,
			CustoParcial:        parcial,
		})

		custoTotal = custoTotal.Add(parcial)
		restante = restante.Sub(consumo)
	}

	suficiente := disponivel.GreaterThanOrEqual(quantidade)
	faltante := decimal.Zero
	if !suficiente {
		faltante = quantidade.Sub(disponivel)
	}

	return &ResultadoAlocacao{
		Consumos:           consumos,
		CustoTotal:         custoTotal,
		CustoUnitarioMedio: custoTotal.DivRound(quantidade, CasasDecimaisCustoMedio),
		TotalDisponivel:    disponivel,
		Suficiente:         suficiente,
		Faltante:           faltante,
	}, nil
}
