package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"insumos-service/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CacheStats estatísticas do cache
type CacheStats struct {
	Hits          int64
	Misses        int64
	TotalRequests int64
	TotalKeys     int
}

// CatalogoCache implementa cache multi-nível para itens do catálogo.
// Só dados de catálogo (item, produto, máquina) passam por aqui; saldos de
// lote nunca são cacheados porque a alocação exige leitura fresca.
type CatalogoCache struct {
	// L1 Cache: memória local (mais rápido)
	l1Cache map[string]*models.ItemCatalogo
	l1Mutex sync.RWMutex

	// L2 Cache: Redis (persistente)
	redisClient *redis.Client

	// Configuração
	maxL1Size int
	ttl       time.Duration

	logger *zap.Logger

	// Estatísticas
	statsMutex sync.RWMutex
	hits       int64
	misses     int64
}

// NewCatalogoCache cria uma nova instância do cache
func NewCatalogoCache(redisClient *redis.Client, maxL1Size int, ttl time.Duration, logger *zap.Logger) *CatalogoCache {
	cc := &CatalogoCache{
		l1Cache:     make(map[string]*models.ItemCatalogo),
		redisClient: redisClient,
		maxL1Size:   maxL1Size,
		ttl:         ttl,
		logger:      logger,
	}

	// Iniciar limpeza periódica do L1 cache
	go cc.cleanupL1Cache()

	return cc
}

// GetStats retorna estatísticas do cache
func (cc *CatalogoCache) GetStats() CacheStats {
	cc.statsMutex.RLock()
	defer cc.statsMutex.RUnlock()

	cc.l1Mutex.RLock()
	totalKeys := len(cc.l1Cache)
	cc.l1Mutex.RUnlock()

	return CacheStats{
		Hits:          cc.hits,
		Misses:        cc.misses,
		TotalRequests: cc.hits + cc.misses,
		TotalKeys:     totalKeys,
	}
}

// GetItem busca um item do catálogo com cache multi-nível
func (cc *CatalogoCache) GetItem(ctx context.Context, itemID string) (*models.ItemCatalogo, error) {
	start := time.Now()

	// 1. L1 Cache (memória local)
	if item := cc.getFromL1(itemID); item != nil {
		cc.recordHit()
		cc.logger.Debug("L1 cache hit",
			zap.String("item_id", itemID),
			zap.Duration("latency", time.Since(start)))
		return item, nil
	}

	// 2. L2 Cache (Redis)
	if item, err := cc.getFromL2(ctx, itemID); err == nil && item != nil {
		// Mover para L1 para futuras consultas
		cc.setToL1(itemID, item)
		cc.recordHit()
		cc.logger.Debug("L2 cache hit",
			zap.String("item_id", itemID),
			zap.Duration("latency", time.Since(start)))
		return item, nil
	}

	// 3. Banco (resolvido no service)
	cc.recordMiss()
	cc.logger.Debug("Cache miss",
		zap.String("item_id", itemID),
		zap.Duration("latency", time.Since(start)))

	return nil, fmt.Errorf("item não encontrado no cache")
}

// recordHit registra um hit no cache
func (cc *CatalogoCache) recordHit() {
	cc.statsMutex.Lock()
	cc.hits++
	cc.statsMutex.Unlock()
}

// recordMiss registra um miss no cache
func (cc *CatalogoCache) recordMiss() {
	cc.statsMutex.Lock()
	cc.misses++
	cc.statsMutex.Unlock()
}

// SetItem armazena um item nos dois níveis de cache
func (cc *CatalogoCache) SetItem(ctx context.Context, itemID string, item *models.ItemCatalogo) error {
	// 1. L1 Cache (memória local)
	cc.setToL1(itemID, item)

	// 2. L2 Cache (Redis)
	return cc.setToL2(ctx, itemID, item)
}

// InvalidateItem invalida um item nos dois caches
func (cc *CatalogoCache) InvalidateItem(ctx context.Context, itemID string) error {
	// 1. L1 Cache
	cc.l1Mutex.Lock()
	delete(cc.l1Cache, itemID)
	cc.l1Mutex.Unlock()

	// 2. L2 Cache
	return cc.redisClient.Del(ctx, fmt.Sprintf("catalogo:item:%s", itemID)).Err()
}

// getFromL1 obtém um item do L1 cache (memória local)
func (cc *CatalogoCache) getFromL1(itemID string) *models.ItemCatalogo {
	cc.l1Mutex.RLock()
	defer cc.l1Mutex.RUnlock()
	return cc.l1Cache[itemID]
}

// setToL1 armazena um item no L1 cache
func (cc *CatalogoCache) setToL1(itemID string, item *models.ItemCatalogo) {
	cc.l1Mutex.Lock()
	defer cc.l1Mutex.Unlock()

	// Verificar se precisamos evictar
	if len(cc.l1Cache) >= cc.maxL1Size {
		cc.evict()
	}

	cc.l1Cache[itemID] = item
}

// evict remove um elemento qualquer para abrir espaço
func (cc *CatalogoCache) evict() {
	for key := range cc.l1Cache {
		delete(cc.l1Cache, key)
		break
	}
}

// getFromL2 obtém um item do L2 cache (Redis)
func (cc *CatalogoCache) getFromL2(ctx context.Context, itemID string) (*models.ItemCatalogo, error) {
	key := fmt.Sprintf("catalogo:item:%s", itemID)
	data, err := cc.redisClient.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var item models.ItemCatalogo
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return nil, err
	}

	return &item, nil
}

// setToL2 armazena um item no L2 cache (Redis)
func (cc *CatalogoCache) setToL2(ctx context.Context, itemID string, item *models.ItemCatalogo) error {
	key := fmt.Sprintf("catalogo:item:%s", itemID)
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}

	return cc.redisClient.Set(ctx, key, data, cc.ttl).Err()
}

// cleanupL1Cache limpa o L1 cache periodicamente
func (cc *CatalogoCache) cleanupL1Cache() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cc.l1Mutex.Lock()
		cc.logger.Debug("L1 cache cleanup", zap.Int("items", len(cc.l1Cache)))
		cc.l1Mutex.Unlock()
	}
}

// Stats retorna estatísticas do cache em formato de mapa
func (cc *CatalogoCache) Stats() map[string]interface{} {
	stats := cc.GetStats()
	hitRate := 0.0
	if stats.TotalRequests > 0 {
		hitRate = float64(stats.Hits) / float64(stats.TotalRequests)
	}
	return map[string]interface{}{
		"hits":           stats.Hits,
		"misses":         stats.Misses,
		"total_requests": stats.TotalRequests,
		"total_keys":     stats.TotalKeys,
		"hit_rate":       hitRate,
	}
}
