package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insumos-service/internal/models"
)

func TestPreviewCusto_QuantidadeNaoPositiva_RetornaNil(t *testing.T) {
	fx := newFixture().comItemServico("item-servico", "10.00")

	preview, err := fx.preview.PreviewCusto(context.Background(), &models.PreviewRequest{
		PropriedadeID: "prop-1",
		ItemID:        "item-servico",
		Quantidade:    dec("0"),
	})
	require.NoError(t, err)
	assert.Nil(t, preview)
}

func TestPreviewCusto_ItemInexistente_RetornaNil(t *testing.T) {
	fx := newFixture()

	preview, err := fx.preview.PreviewCusto(context.Background(), &models.PreviewRequest{
		PropriedadeID: "prop-1",
		ItemID:        "item-fantasma",
		Quantidade:    dec("5"),
	})
	require.NoError(t, err)
	assert.Nil(t, preview)
}

func TestPreviewCusto_Servico_UsaTarifaPadrao(t *testing.T) {
	fx := newFixture().comItemServico("item-pulverizacao", "55.50")

	preview, err := fx.preview.PreviewCusto(context.Background(), &models.PreviewRequest{
		PropriedadeID: "prop-1",
		ItemID:        "item-pulverizacao",
		Quantidade:    dec("3"),
	})
	require.NoError(t, err)
	require.NotNil(t, preview)
	assert.True(t, preview.CustoUnitario.Equal(dec("55.50")))
	assert.True(t, preview.CustoTotal.Equal(dec("166.50")))
	assert.True(t, preview.Suficiente)
	assert.Nil(t, preview.TotalDisponivel)
	assert.False(t, preview.LimitadoPorEstoque)
}

func TestPreviewCusto_HoraMaquina_UsaTarifaDaMaquina(t *testing.T) {
	fx := newFixture().
		comMaquina("maq-1", "150.00").
		comItemHoraMaquina("item-colheitadeira", "maq-1", "99.00")

	preview, err := fx.preview.PreviewCusto(context.Background(), &models.PreviewRequest{
		PropriedadeID: "prop-1",
		ItemID:        "item-colheitadeira",
		Quantidade:    dec("2"),
	})
	require.NoError(t, err)
	require.NotNil(t, preview)
	// Tarifa da máquina vence a tarifa padrão do item
	assert.True(t, preview.CustoUnitario.Equal(dec("150.00")))
	assert.True(t, preview.CustoTotal.Equal(dec("300.00")))
}

func TestPreviewCusto_HoraMaquina_SemMaquinaCaiNaTarifaPadrao(t *testing.T) {
	fx := newFixture().comItemHoraMaquina("item-terceirizado", "", "80.00")

	preview, err := fx.preview.PreviewCusto(context.Background(), &models.PreviewRequest{
		PropriedadeID: "prop-1",
		ItemID:        "item-terceirizado",
		Quantidade:    dec("4"),
	})
	require.NoError(t, err)
	require.NotNil(t, preview)
	assert.True(t, preview.CustoTotal.Equal(dec("320.00")))
}

func TestPreviewCusto_Estoque_BreakdownFIFO(t *testing.T) {
	fx := newFixture().
		comProduto("prod-a", "Adubo NPK", "0").
		comItemEstoque("item-adubo", "prod-a").
		comLote("lote-1", "prod-a", "10", "5.00", dia1).
		comLote("lote-2", "prod-a", "10", "6.00", dia2)

	preview, err := fx.preview.PreviewCusto(context.Background(), &models.PreviewRequest{
		PropriedadeID: "prop-1",
		ItemID:        "item-adubo",
		Quantidade:    dec("15"),
	})
	require.NoError(t, err)
	require.NotNil(t, preview)

	assert.True(t, preview.Suficiente)
	assert.True(t, preview.CustoTotal.Equal(dec("80.00")))
	assert.True(t, preview.CustoUnitario.Equal(dec("5.333333")))
	require.Len(t, preview.Consumos, 2)
	assert.Equal(t, "lote-1", preview.Consumos[0].LoteID)
	assert.Equal(t, "lote-2", preview.Consumos[1].LoteID)
	require.NotNil(t, preview.TotalDisponivel)
	assert.True(t, preview.TotalDisponivel.Equal(dec("20")))
}

func TestPreviewCusto_Insuficiente_RelataFaltante(t *testing.T) {
	fx := newFixture().
		comProduto("prod-a", "Adubo NPK", "0").
		comItemEstoque("item-adubo", "prod-a").
		comLote("lote-1", "prod-a", "10", "5.00", dia1).
		comLote("lote-2", "prod-a", "10", "6.00", dia2)

	preview, err := fx.preview.PreviewCusto(context.Background(), &models.PreviewRequest{
		PropriedadeID: "prop-1",
		ItemID:        "item-adubo",
		Quantidade:    dec("25"),
	})
	require.NoError(t, err)
	require.NotNil(t, preview)

	assert.False(t, preview.Suficiente)
	assert.True(t, preview.LimitadoPorEstoque)
	assert.True(t, preview.Faltante.Equal(dec("5")))
	// O breakdown esgota tudo que existe
	assert.True(t, preview.CustoTotal.Equal(dec("110.00")))
	require.NotNil(t, preview.TotalDisponivel)
	assert.True(t, preview.TotalDisponivel.Equal(dec("20")))
}

func TestPreviewCusto_NaoMutaSaldos(t *testing.T) {
	fx := newFixture().
		comProduto("prod-a", "Adubo NPK", "0").
		comItemEstoque("item-adubo", "prod-a").
		comLote("lote-1", "prod-a", "10", "5.00", dia1)

	_, err := fx.preview.PreviewCusto(context.Background(), &models.PreviewRequest{
		PropriedadeID: "prop-1",
		ItemID:        "item-adubo",
		Quantidade:    dec("8"),
	})
	require.NoError(t, err)

	lote, _ := fx.store.GetLote(context.Background(), "lote-1")
	assert.True(t, lote.QuantidadeRestante.Equal(dec("10")))
}
