package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"insumos-service/internal/cache"
	"insumos-service/internal/engine"
	"insumos-service/internal/models"
	"insumos-service/internal/repository"
)

// fakeStore implementa os três repositories sobre mapas em memória,
// preservando a semântica transacional: as mutações de lote acontecem sobre
// clones e só são publicadas se a operação inteira der certo.
type fakeStore struct {
	mu          sync.Mutex
	safras      map[string]*models.Safra
	itens       map[string]*models.ItemCatalogo
	produtos    map[string]*models.Produto
	maquinas    map[string]*models.Maquina
	lotes       map[string]*models.Lote
	lancamentos map[string]*models.Lancamento

	// leiturasDeLote conta acessos a saldos; o guard de safra fechada deve
	// falhar com zero leituras
	leiturasDeLote int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		safras:      make(map[string]*models.Safra),
		itens:       make(map[string]*models.ItemCatalogo),
		produtos:    make(map[string]*models.Produto),
		maquinas:    make(map[string]*models.Maquina),
		lotes:       make(map[string]*models.Lote),
		lancamentos: make(map[string]*models.Lancamento),
	}
}

func cloneLote(l *models.Lote) *models.Lote {
	c := *l
	return &c
}

func cloneLotes(src map[string]*models.Lote) map[string]*models.Lote {
	dst := make(map[string]*models.Lote, len(src))
	for id, l := range src {
		dst[id] = cloneLote(l)
	}
	return dst
}

func cloneLancamento(l *models.Lancamento) *models.Lancamento {
	c := *l
	c.Itens = make([]*models.ItemLancamento, len(l.Itens))
	for i, item := range l.Itens {
		ci := *item
		ci.Consumos.Consumos = append([]models.ConsumoLote(nil), item.Consumos.Consumos...)
		c.Itens[i] = &ci
	}
	return &c
}

// ===== LoteRepository =====

func (f *fakeStore) RegistrarLote(ctx context.Context, lote *models.Lote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	lote.CriadoEm = now
	lote.AtualizadoEm = now
	f.lotes[lote.ID] = cloneLote(lote)
	return nil
}

func (f *fakeStore) GetLote(ctx context.Context, id string) (*models.Lote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.lotes[id]; ok {
		return cloneLote(l), nil
	}
	return nil, nil
}

func (f *fakeStore) ListarPorProduto(ctx context.Context, produtoID, propriedadeID string, somenteDisponiveis bool) ([]*models.Lote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leiturasDeLote++
	var out []*models.Lote
	for _, l := range f.lotes {
		if l.ProdutoID != produtoID || l.PropriedadeID != propriedadeID {
			continue
		}
		if somenteDisponiveis && l.Esgotado() {
			continue
		}
		out = append(out, cloneLote(l))
	}
	return out, nil
}

func (f *fakeStore) ListarDisponiveis(ctx context.Context, produtoID, propriedadeID string) ([]*models.Lote, error) {
	return f.ListarPorProduto(ctx, produtoID, propriedadeID, true)
}

func (f *fakeStore) TotalDisponivel(ctx context.Context, produtoID, propriedadeID string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leiturasDeLote++
	total := decimal.Zero
	for _, l := range f.lotes {
		if l.ProdutoID == produtoID && l.PropriedadeID == propriedadeID {
			total = total.Add(l.QuantidadeRestante)
		}
	}
	return total, nil
}

func (f *fakeStore) EstoqueBaixo(ctx context.Context, propriedadeID string) ([]*models.EstoqueProduto, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leiturasDeLote++
	totais := make(map[string]decimal.Decimal)
	for _, l := range f.lotes {
		if l.PropriedadeID == propriedadeID {
			totais[l.ProdutoID] = totais[l.ProdutoID].Add(l.QuantidadeRestante)
		}
	}
	var out []*models.EstoqueProduto
	for produtoID, total := range totais {
		p, ok := f.produtos[produtoID]
		if !ok || total.GreaterThan(p.EstoqueMinimo) {
			continue
		}
		out = append(out, &models.EstoqueProduto{
			ProdutoID:       produtoID,
			Nome:            p.Nome,
			Unidade:         p.Unidade,
			EstoqueMinimo:   p.EstoqueMinimo,
			TotalDisponivel: total,
		})
	}
	return out, nil
}

// ===== CatalogoRepository =====

func (f *fakeStore) GetItem(ctx context.Context, id string) (*models.ItemCatalogo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item, ok := f.itens[id]; ok && item.Ativo {
		c := *item
		return &c, nil
	}
	return nil, nil
}

func (f *fakeStore) GetProduto(ctx context.Context, id string) (*models.Produto, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.produtos[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, nil
}

func (f *fakeStore) GetMaquina(ctx context.Context, id string) (*models.Maquina, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.maquinas[id]; ok {
		c := *m
		return &c, nil
	}
	return nil, nil
}

func (f *fakeStore) GetSafra(ctx context.Context, id string) (*models.Safra, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.safras[id]; ok {
		c := *s
		return &c, nil
	}
	return nil, nil
}

func (f *fakeStore) IncrementarHorimetro(ctx context.Context, maquinaID string, horas decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.maquinas[maquinaID]
	if !ok {
		return fmt.Errorf("maquina %s not found", maquinaID)
	}
	m.Horimetro = m.Horimetro.Add(horas)
	return nil
}

// ===== LancamentoRepository =====

func (f *fakeStore) CriarLancamento(ctx context.Context, lanc *models.Lancamento, alocar repository.AlocarFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.safraAberta(lanc.SafraID); err != nil {
		return err
	}

	clones := cloneLotes(f.lotes)
	if err := f.aplicarItens(lanc, clones, alocar); err != nil {
		return err
	}

	f.lotes = clones
	now := time.Now()
	lanc.CriadoEm = now
	lanc.AtualizadoEm = now
	f.lancamentos[lanc.ID] = cloneLancamento(lanc)
	return nil
}

func (f *fakeStore) AtualizarLancamento(ctx context.Context, lanc *models.Lancamento, alocar repository.AlocarFunc) (*repository.ResultadoEstorno, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	anterior, ok := f.lancamentos[lanc.ID]
	if !ok {
		return nil, &engine.ErroValidacao{Campo: "lancamento_id", Motivo: "lançamento não encontrado"}
	}
	if err := f.safraAberta(anterior.SafraID); err != nil {
		return nil, err
	}
	if lanc.SafraID != anterior.SafraID {
		if err := f.safraAberta(lanc.SafraID); err != nil {
			return nil, err
		}
	}

	clones := cloneLotes(f.lotes)
	estorno := f.reverterItens(anterior, clones)
	if err := f.aplicarItens(lanc, clones, alocar); err != nil {
		return nil, err
	}

	f.lotes = clones
	lanc.CriadoEm = anterior.CriadoEm
	lanc.AtualizadoEm = time.Now()
	f.lancamentos[lanc.ID] = cloneLancamento(lanc)
	return estorno, nil
}

func (f *fakeStore) ExcluirLancamento(ctx context.Context, id string) (*repository.ResultadoEstorno, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	lanc, ok := f.lancamentos[id]
	if !ok {
		return nil, &engine.ErroValidacao{Campo: "lancamento_id", Motivo: "lançamento não encontrado"}
	}
	if err := f.safraAberta(lanc.SafraID); err != nil {
		return nil, err
	}

	clones := cloneLotes(f.lotes)
	estorno := f.reverterItens(lanc, clones)

	f.lotes = clones
	delete(f.lancamentos, id)
	return estorno, nil
}

func (f *fakeStore) GetLancamento(ctx context.Context, id string) (*models.Lancamento, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.lancamentos[id]; ok {
		return cloneLancamento(l), nil
	}
	return nil, nil
}

func (f *fakeStore) ListarPorSafra(ctx context.Context, safraID string) ([]*models.Lancamento, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Lancamento
	for _, l := range f.lancamentos {
		if l.SafraID == safraID {
			out = append(out, cloneLancamento(l))
		}
	}
	return out, nil
}

func (f *fakeStore) safraAberta(safraID string) error {
	s, ok := f.safras[safraID]
	if !ok {
		return &engine.ErroValidacao{Campo: "safra_id", Motivo: "safra não encontrada"}
	}
	if s.Fechada {
		return &engine.ErroSafraFechada{SafraID: safraID}
	}
	return nil
}

func (f *fakeStore) aplicarItens(lanc *models.Lancamento, clones map[string]*models.Lote, alocar repository.AlocarFunc) error {
	for _, item := range lanc.Itens {
		item.LancamentoID = lanc.ID
		item.CriadoEm = time.Now()
		if item.Tipo != models.TipoEstoque {
			continue
		}
		if item.ProdutoID == nil {
			return &engine.ErroValidacao{Campo: "produto_id", Motivo: "item de estoque sem produto vinculado"}
		}

		f.leiturasDeLote++
		var disponiveis []*models.Lote
		for _, l := range clones {
			if l.ProdutoID == *item.ProdutoID && l.PropriedadeID == lanc.PropriedadeID && !l.Esgotado() {
				disponiveis = append(disponiveis, l)
			}
		}

		res, err := alocar(disponiveis, item.Quantidade)
		if err != nil {
			return err
		}
		if !res.Suficiente {
			return &engine.ErroEstoqueInsuficiente{
				ItemID:     item.ItemID,
				ProdutoID:  *item.ProdutoID,
				Solicitado: item.Quantidade,
				Disponivel: res.TotalDisponivel,
				Faltante:   res.Faltante,
			}
		}

		item.CustoUnitario = res.CustoUnitarioMedio
		item.CustoTotal = res.CustoTotal
		item.Consumos = models.ConsumoBreakdown{Versao: models.VersaoConsumoAtual, Consumos: res.Consumos}

		for _, consumo := range res.Consumos {
			lote := clones[consumo.LoteID]
			if lote.QuantidadeRestante.LessThan(consumo.QuantidadeConsumida) {
				return &engine.ErroInvariante{LoteID: consumo.LoteID, Operacao: "baixa", Quantidade: consumo.QuantidadeConsumida}
			}
			lote.QuantidadeRestante = lote.QuantidadeRestante.Sub(consumo.QuantidadeConsumida)
		}
	}
	return nil
}

func (f *fakeStore) reverterItens(lanc *models.Lancamento, clones map[string]*models.Lote) *repository.ResultadoEstorno {
	estorno := &repository.ResultadoEstorno{}
	for _, item := range lanc.Itens {
		for _, consumo := range item.Consumos.Consumos {
			lote, ok := clones[consumo.LoteID]
			if !ok {
				estorno.LotesIgnorados = append(estorno.LotesIgnorados, consumo.LoteID)
				continue
			}
			nova := lote.QuantidadeRestante.Add(consumo.QuantidadeConsumida)
			if nova.GreaterThan(lote.QuantidadeOriginal) {
				estorno.RestauracoesClampadas = append(estorno.RestauracoesClampadas, consumo.LoteID)
				nova = lote.QuantidadeOriginal
			}
			lote.QuantidadeRestante = nova
			estorno.LotesRestaurados++
		}
	}
	return estorno
}

// ===== helpers de construção =====

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func ptr[T any](v T) *T { return &v }

// newTestCache cria um cache apontando para um Redis inalcançável: o L1
// funciona normalmente e o L2 degrada para miss
func newTestCache() *cache.CatalogoCache {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 10 * time.Millisecond,
	})
	return cache.NewCatalogoCache(client, 100, time.Minute, zap.NewNop())
}

type fixture struct {
	store   *fakeStore
	metrics *EngineMetrics
	svc     LancamentoService
	preview PreviewService
}

func newFixture() *fixture {
	store := newFakeStore()
	metrics := NewEngineMetrics()
	catalogCache := newTestCache()
	logger := zap.NewNop()
	return &fixture{
		store:   store,
		metrics: metrics,
		svc:     NewLancamentoService(store, store, store, catalogCache, metrics, logger),
		preview: NewPreviewService(store, store, catalogCache, metrics, logger),
	}
}

func (fx *fixture) comSafra(id string, fechada bool) *fixture {
	fx.store.safras[id] = &models.Safra{ID: id, PropriedadeID: "prop-1", Nome: "Safra 2025/26", Fechada: fechada}
	return fx
}

func (fx *fixture) comProduto(id, nome string, estoqueMinimo string) *fixture {
	fx.store.produtos[id] = &models.Produto{
		ID: id, Nome: nome, Unidade: "kg",
		EstoqueMinimo: dec(estoqueMinimo), Ativo: true,
	}
	return fx
}

func (fx *fixture) comItemEstoque(id, produtoID string) *fixture {
	fx.store.itens[id] = &models.ItemCatalogo{
		ID: id, Nome: "Item " + id, Tipo: models.TipoEstoque,
		ProdutoID: ptr(produtoID), Ativo: true,
	}
	return fx
}

func (fx *fixture) comItemServico(id string, tarifa string) *fixture {
	fx.store.itens[id] = &models.ItemCatalogo{
		ID: id, Nome: "Serviço " + id, Tipo: models.TipoServico,
		TarifaPadrao: ptr(dec(tarifa)), Ativo: true,
	}
	return fx
}

func (fx *fixture) comItemHoraMaquina(id, maquinaID string, tarifaPadrao string) *fixture {
	item := &models.ItemCatalogo{
		ID: id, Nome: "Hora " + id, Tipo: models.TipoHoraMaquina, Ativo: true,
	}
	if maquinaID != "" {
		item.MaquinaID = ptr(maquinaID)
	}
	if tarifaPadrao != "" {
		item.TarifaPadrao = ptr(dec(tarifaPadrao))
	}
	fx.store.itens[id] = item
	return fx
}

func (fx *fixture) comMaquina(id string, tarifaHora string) *fixture {
	fx.store.maquinas[id] = &models.Maquina{
		ID: id, Nome: "Máquina " + id,
		TarifaHora: dec(tarifaHora), Horimetro: decimal.Zero, Ativo: true,
	}
	return fx
}

func (fx *fixture) comLote(id, produtoID string, quantidade, custo string, recebidoEm time.Time) *fixture {
	fx.store.lotes[id] = &models.Lote{
		ID: id, ProdutoID: produtoID, PropriedadeID: "prop-1", SafraID: "safra-1",
		QuantidadeOriginal: dec(quantidade), QuantidadeRestante: dec(quantidade),
		CustoUnitario: dec(custo), RecebidoEm: recebidoEm, CriadoEm: recebidoEm,
	}
	return fx
}
