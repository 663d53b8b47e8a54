package engine_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insumos-service/internal/engine"
	"insumos-service/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func lote(id string, recebido string, restante, custo string) *models.Lote {
	dia, err := time.Parse("2006-01-02", recebido)
	if err != nil {
		panic(err)
	}
	return &models.Lote{
		ID:                 id,
		ProdutoID:          "prod-1",
		QuantidadeOriginal: dec(restante),
		QuantidadeRestante: dec(restante),
		CustoUnitario:      dec(custo),
		RecebidoEm:         dia,
		CriadoEm:           dia,
	}
}

func TestAlocar_DoisLotes_ConsumoParcialDoSegundo(t *testing.T) {
	// B1 recebido 2024-01-01 (10 un a 5.00), B2 recebido 2024-02-01 (10 un a 6.00)
	lotes := []*models.Lote{
		lote("B1", "2024-01-01", "10", "5.00"),
		lote("B2", "2024-02-01", "10", "6.00"),
	}

	res, err := engine.Alocar(lotes, dec("15"))
	require.NoError(t, err)

	require.Len(t, res.Consumos, 2)
	assert.Equal(t, "B1", res.Consumos[0].LoteID)
	assert.True(t, res.Consumos[0].QuantidadeConsumida.Equal(dec("10")))
	assert.True(t, res.Consumos[0].CustoParcial.Equal(dec("50.00")))
	assert.Equal(t, "B2", res.Consumos[1].LoteID)
	assert.True(t, res.Consumos[1].QuantidadeConsumida.Equal(dec("5")))
	assert.True(t, res.Consumos[1].CustoParcial.Equal(dec("30.00")))

	assert.True(t, res.CustoTotal.Equal(dec("80.00")))
	assert.True(t, res.Suficiente)
	assert.True(t, res.Faltante.IsZero())
	assert.True(t, res.TotalDisponivel.Equal(dec("20")))
	// 80 / 15 arredondado a 6 casas
	assert.True(t, res.CustoUnitarioMedio.Equal(dec("5.333333")))
}

func TestAlocar_EstoqueInsuficiente_EsgotaTudoEReportaFalta(t *testing.T) {
	lotes := []*models.Lote{
		lote("B1", "2024-01-01", "10", "5.00"),
		lote("B2", "2024-02-01", "10", "6.00"),
	}

	res, err := engine.Alocar(lotes, dec("25"))
	require.NoError(t, err)

	assert.False(t, res.Suficiente)
	assert.True(t, res.Faltante.Equal(dec("5")))
	assert.True(t, res.TotalDisponivel.Equal(dec("20")))
	assert.True(t, res.CustoTotal.Equal(dec("110.00")))

	// Mesmo insuficiente, o breakdown consome tudo que havia.
	require.Len(t, res.Consumos, 2)
	assert.True(t, res.Consumos[0].QuantidadeConsumida.Equal(dec("10")))
	assert.True(t, res.Consumos[1].QuantidadeConsumida.Equal(dec("10")))
}

func TestAlocar_SemLotes(t *testing.T) {
	res, err := engine.Alocar(nil, dec("7"))
	require.NoError(t, err)

	assert.False(t, res.Suficiente)
	assert.Empty(t, res.Consumos)
	assert.True(t, res.Faltante.Equal(dec("7")))
	assert.True(t, res.TotalDisponivel.IsZero())
	assert.True(t, res.CustoTotal.IsZero())
}

func TestAlocar_QuantidadeExata_EsgotaUltimoLoteSemCasoEspecial(t *testing.T) {
	lotes := []*models.Lote{
		lote("B1", "2024-01-01", "10", "5.00"),
		lote("B2", "2024-02-01", "10", "6.00"),
	}

	res, err := engine.Alocar(lotes, dec("20"))
	require.NoError(t, err)

	assert.True(t, res.Suficiente)
	require.Len(t, res.Consumos, 2)
	assert.True(t, res.Consumos[1].QuantidadeConsumida.Equal(dec("10")))
	assert.True(t, res.CustoTotal.Equal(dec("110.00")))
}

func TestAlocar_QuantidadeInvalida(t *testing.T) {
	lotes := []*models.Lote{lote("B1", "2024-01-01", "10", "5.00")}

	_, err := engine.Alocar(lotes, decimal.Zero)
	var ev *engine.ErroValidacao
	require.ErrorAs(t, err, &ev)
	assert.Equal(t, "quantidade", ev.Campo)

	_, err = engine.Alocar(lotes, dec("-3"))
	require.ErrorAs(t, err, &ev)
}

func TestAlocar_OrdenaEntradaDesordenada(t *testing.T) {
	// Entrada fora de ordem: o alocador deve ordenar por recebido_em antes de
	// consumir. Nenhum lote mais novo pode ser tocado enquanto um mais antigo
	// tem restante.
	lotes := []*models.Lote{
		lote("B3", "2024-03-01", "10", "7.00"),
		lote("B1", "2024-01-01", "10", "5.00"),
		lote("B2", "2024-02-01", "10", "6.00"),
	}

	res, err := engine.Alocar(lotes, dec("12"))
	require.NoError(t, err)

	require.Len(t, res.Consumos, 2)
	assert.Equal(t, "B1", res.Consumos[0].LoteID)
	assert.Equal(t, "B2", res.Consumos[1].LoteID)
}

func TestAlocar_MesmoDia_DesempataPorCriacao(t *testing.T) {
	a := lote("A", "2024-01-01", "5", "5.00")
	b := lote("B", "2024-01-01", "5", "6.00")
	b.CriadoEm = a.CriadoEm.Add(time.Minute)

	// B vem primeiro na fatia, mas A foi inserido antes.
	res, err := engine.Alocar([]*models.Lote{b, a}, dec("6"))
	require.NoError(t, err)

	require.Len(t, res.Consumos, 2)
	assert.Equal(t, "A", res.Consumos[0].LoteID)
	assert.Equal(t, "B", res.Consumos[1].LoteID)
}

func TestAlocar_Conservacao(t *testing.T) {
	lotes := []*models.Lote{
		lote("B1", "2024-01-01", "3.5", "2.10"),
		lote("B2", "2024-01-15", "1.25", "2.35"),
		lote("B3", "2024-02-01", "8", "1.99"),
	}

	for _, pedido := range []string{"0.5", "3.5", "4.75", "12.75", "20"} {
		res, err := engine.Alocar(lotes, dec(pedido))
		require.NoError(t, err)

		somaQtd := decimal.Zero
		somaCusto := decimal.Zero
		for _, c := range res.Consumos {
			somaQtd = somaQtd.Add(c.QuantidadeConsumida)
			somaCusto = somaCusto.Add(c.CustoParcial)
		}

		esperado := decimal.Min(dec(pedido), res.TotalDisponivel)
		assert.True(t, somaQtd.Equal(esperado), "pedido %s: soma %s != %s", pedido, somaQtd, esperado)
		assert.True(t, somaCusto.Equal(res.CustoTotal), "pedido %s: custo %s != %s", pedido, somaCusto, res.CustoTotal)
	}
}

func TestAlocar_NaoMutaLotes(t *testing.T) {
	lotes := []*models.Lote{
		lote("B1", "2024-01-01", "10", "5.00"),
		lote("B2", "2024-02-01", "10", "6.00"),
	}

	_, err := engine.Alocar(lotes, dec("15"))
	require.NoError(t, err)
	res2, err := engine.Alocar(lotes, dec("15"))
	require.NoError(t, err)

	assert.True(t, lotes[0].QuantidadeRestante.Equal(dec("10")))
	assert.True(t, lotes[1].QuantidadeRestante.Equal(dec("10")))
	assert.True(t, res2.CustoTotal.Equal(dec("80.00")))
}

func TestAlocar_IgnoraLotesEsgotados(t *testing.T) {
	vazio := lote("B0", "2023-12-01", "0", "4.00")
	lotes := []*models.Lote{vazio, lote("B1", "2024-01-01", "10", "5.00")}

	res, err := engine.Alocar(lotes, dec("4"))
	require.NoError(t, err)

	require.Len(t, res.Consumos, 1)
	assert.Equal(t, "B1", res.Consumos[0].LoteID)
}
