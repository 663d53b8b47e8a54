package services

import (
	"sync"

	"insumos-service/internal/models"
)

// EngineMetrics contadores em memória do motor de custeio, compartilhados
// entre os services de lançamento/prévia (escrita) e o monitoring (leitura)
type EngineMetrics struct {
	mu                    sync.RWMutex
	commits               int64
	estornos              int64
	edicoes               int64
	previews              int64
	insuficiencias        int64
	restauracoesClampadas int64
}

// NewEngineMetrics cria contadores zerados
func NewEngineMetrics() *EngineMetrics {
	return &EngineMetrics{}
}

func (m *EngineMetrics) RecordCommit() {
	m.mu.Lock()
	m.commits++
	m.mu.Unlock()
}

func (m *EngineMetrics) RecordEstorno() {
	m.mu.Lock()
	m.estornos++
	m.mu.Unlock()
}

func (m *EngineMetrics) RecordEdicao() {
	m.mu.Lock()
	m.edicoes++
	m.mu.Unlock()
}

func (m *EngineMetrics) RecordPreview() {
	m.mu.Lock()
	m.previews++
	m.mu.Unlock()
}

func (m *EngineMetrics) RecordInsuficiencia() {
	m.mu.Lock()
	m.insuficiencias++
	m.mu.Unlock()
}

func (m *EngineMetrics) RecordRestauracoesClampadas(n int) {
	if n == 0 {
		return
	}
	m.mu.Lock()
	m.restauracoesClampadas += int64(n)
	m.mu.Unlock()
}

// Snapshot retorna uma cópia consistente dos contadores
func (m *EngineMetrics) Snapshot() models.EngineCounters {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.EngineCounters{
		Commits:               m.commits,
		Estornos:              m.estornos,
		Edicoes:               m.edicoes,
		Previews:              m.previews,
		Insuficiencias:        m.insuficiencias,
		RestauracoesClampadas: m.restauracoesClampadas,
	}
}
