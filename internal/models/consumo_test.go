package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumoBreakdown_ScanDefaultVersao(t *testing.T) {
	// Registros antigos foram gravados sem campo de versão
	var b ConsumoBreakdown
	require.NoError(t, b.Scan([]byte(`{"consumos":[{"lote_id":"l1","quantidade_consumida":"5","custo_unitario":"2.5","custo_parcial":"12.5"}]}`)))

	assert.Equal(t, VersaoConsumoAtual, b.Versao)
	require.Len(t, b.Consumos, 1)
	assert.Equal(t, "l1", b.Consumos[0].LoteID)
	assert.True(t, b.Consumos[0].QuantidadeConsumida.Equal(decimal.NewFromInt(5)))
}

func TestConsumoBreakdown_ScanNil(t *testing.T) {
	var b ConsumoBreakdown
	require.NoError(t, b.Scan(nil))
	assert.True(t, b.Vazio())
}

func TestConsumoBreakdown_ValueEScanRoundTrip(t *testing.T) {
	original := ConsumoBreakdown{
		Versao: VersaoConsumoAtual,
		Consumos: []ConsumoLote{
			{LoteID: "l1", QuantidadeConsumida: decimal.NewFromInt(10), CustoUnitario: decimal.RequireFromString("5.00"), CustoParcial: decimal.RequireFromString("50.00")},
			{LoteID: "l2", QuantidadeConsumida: decimal.NewFromInt(5), CustoUnitario: decimal.RequireFromString("6.00"), CustoParcial: decimal.RequireFromString("30.00")},
		},
	}

	v, err := original.Value()
	require.NoError(t, err)

	var lido ConsumoBreakdown
	require.NoError(t, lido.Scan(v))

	assert.Equal(t, VersaoConsumoAtual, lido.Versao)
	require.Len(t, lido.Consumos, 2)
	// A ordem do breakdown é a ordem FIFO do consumo e deve sobreviver à persistência
	assert.Equal(t, "l1", lido.Consumos[0].LoteID)
	assert.Equal(t, "l2", lido.Consumos[1].LoteID)
	assert.True(t, lido.Consumos[1].CustoParcial.Equal(decimal.RequireFromString("30.00")))
}
