package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ErroValidacao entrada malformada (quantidade não positiva, custo negativo,
// campo obrigatório ausente). Levantado antes de qualquer chamada de
// persistência; nunca parcialmente aplicado.
type ErroValidacao struct {
	Campo  string
	Motivo string
}

func (e *ErroValidacao) Error() string {
	return fmt.Sprintf("validação falhou no campo %s: %s", e.Campo, e.Motivo)
}

// ErroEstoqueInsuficiente a alocação não cobriu a quantidade solicitada de um
// item de estoque. Bloqueia o commit do lançamento inteiro (tudo ou nada).
type ErroEstoqueInsuficiente struct {
	ItemID     string
	ProdutoID  string
	Solicitado decimal.Decimal
	Disponivel decimal.Decimal
	Faltante   decimal.Decimal
}

func (e *ErroEstoqueInsuficiente) Error() string {
	return fmt.Sprintf("estoque insuficiente para item %s: solicitado %s, disponível %s, faltam %s",
		e.ItemID, e.Solicitado, e.Disponivel, e.Faltante)
}

// ErroSafraFechada mutação tentada contra uma safra fechada. Verificado antes
// de qualquer leitura de lote.
type ErroSafraFechada struct {
	SafraID string
}

func (e *ErroSafraFechada) Error() string {
	return fmt.Sprintf("safra %s está fechada para lançamentos", e.SafraID)
}

// ErroInvariante uma baixa levaria quantidade_restante abaixo de zero (ou uma
// restauração acima da original sem clamp). Indica corrida de concorrência ou
// corrupção de dados a montante; deve ser logado alto e propagado, nunca
// silenciosamente ajustado no sentido da baixa.
type ErroInvariante struct {
	LoteID     string
	Operacao   string
	Quantidade decimal.Decimal
}

func (e *ErroInvariante) Error() string {
	return fmt.Sprintf("invariante violada no lote %s durante %s (quantidade %s)",
		e.LoteID, e.Operacao, e.Quantidade)
}

// ErroCommitParcial baixas ou restaurações aplicadas parcialmente após a
// persistência do cabeçalho. Com a fronteira transacional única isso não deve
// ocorrer no caminho normal; sobrevive como diagnóstico do estorno que tolera
// lotes removidos.
type ErroCommitParcial struct {
	LancamentoID   string
	LotesAplicados []string
	LotesPendentes []string
}

func (e *ErroCommitParcial) Error() string {
	return fmt.Sprintf("lançamento %s parcialmente aplicado: %d lotes aplicados, %d pendentes",
		e.LancamentoID, len(e.LotesAplicados), len(e.LotesPendentes))
}
