package adapters

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ruslano69/adminquery/pkg/dialect"
)

// AdapterConstructor - функция-конструктор адаптера
// Возвращает новый экземпляр адаптера (еще не подключенный к БД)
type AdapterConstructor func() Adapter

// Factory - фабрика адаптеров, по одному конструктору на диалект
type Factory struct {
	mu       sync.RWMutex
	registry map[dialect.Dialect]AdapterConstructor
}

// NewFactory создает пустую фабрику
func NewFactory() *Factory {
	return &Factory{registry: make(map[dialect.Dialect]AdapterConstructor)}
}

// Register регистрирует конструктор для типа БД.
// Алиасы (postgresql, sqlserver, sqlite3, mariadb) приводятся к диалекту;
// неизвестный тип - ошибка программиста, поэтому panic.
func (f *Factory) Register(dbType string, constructor AdapterConstructor) {
	d, err := dialect.Parse(dbType)
	if err != nil {
		panic(fmt.Sprintf("adapters: register %q: %v", dbType, err))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registry[d] = constructor
}

// IsRegistered проверяет, есть ли адаптер для типа БД
func (f *Factory) IsRegistered(dbType string) bool {
	_, err := f.constructor(dbType)
	return err == nil
}

// GetRegisteredTypes возвращает отсортированный список диалектов
func (f *Factory) GetRegisteredTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.registry))
	for d := range f.registry {
		types = append(types, d.String())
	}
	sort.Strings(types)
	return types
}

// Create создает адаптер и подключает его по cfg
func (f *Factory) Create(ctx context.Context, cfg Config) (Adapter, error) {
	adapter, err := f.CreateWithoutConnect(cfg.Type)
	if err != nil {
		return nil, err
	}

	if err := adapter.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}
	return adapter, nil
}

// CreateWithoutConnect создает адаптер БЕЗ подключения к БД
func (f *Factory) CreateWithoutConnect(dbType string) (Adapter, error) {
	constructor, err := f.constructor(dbType)
	if err != nil {
		return nil, err
	}
	return constructor(), nil
}

func (f *Factory) constructor(dbType string) (AdapterConstructor, error) {
	d, err := dialect.Parse(dbType)
	if err != nil {
		return nil, fmt.Errorf("unknown database type %q (available: %v): %w",
			dbType, f.GetRegisteredTypes(), err)
	}

	f.mu.RLock()
	constructor, ok := f.registry[d]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown database type %q: no adapter registered for %s: %w",
			dbType, d, dialect.ErrUnsupportedDialect)
	}
	return constructor, nil
}

// ========== Global Factory ==========

var globalFactory = NewFactory()

// Register регистрирует адаптер в глобальной фабрике.
// Вызывается из init() пакетов адаптеров.
func Register(dbType string, constructor AdapterConstructor) {
	globalFactory.Register(dbType, constructor)
}

// IsRegistered проверяет регистрацию в глобальной фабрике
func IsRegistered(dbType string) bool {
	return globalFactory.IsRegistered(dbType)
}

// GetRegisteredTypes возвращает типы из глобальной фабрики
func GetRegisteredTypes() []string {
	return globalFactory.GetRegisteredTypes()
}

// New создает и подключает адаптер через глобальную фабрику.
// Пакет адаптера должен быть импортирован (обычно blank import).
func New(ctx context.Context, cfg Config) (Adapter, error) {
	return globalFactory.Create(ctx, cfg)
}

// NewWithoutConnect создает адаптер БЕЗ подключения через глобальную фабрику
func NewWithoutConnect(dbType string) (Adapter, error) {
	return globalFactory.CreateWithoutConnect(dbType)
}
