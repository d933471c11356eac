package schema

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownCollection is returned when a collection is not registered.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrUnknownField is returned when a field or association path does not resolve.
	ErrUnknownField = errors.New("unknown field")
)

// Registry - реестр схем коллекций.
// Заполняется из YAML файла или программно, читается конкурентно.
type Registry struct {
	collections map[string]*Collection
	mu          sync.RWMutex
}

// NewRegistry создает пустой реестр
func NewRegistry() *Registry {
	return &Registry{
		collections: make(map[string]*Collection),
	}
}

// Register валидирует и регистрирует коллекцию.
// Повторная регистрация заменяет описание.
func (r *Registry) Register(c *Collection) error {
	if c == nil {
		return fmt.Errorf("collection is nil")
	}
	if err := c.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections[c.Name] = c
	return nil
}

// Get возвращает коллекцию по имени
func (r *Registry) Get(name string) (*Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	return c, nil
}

// Names возвращает отсортированный список зарегистрированных коллекций
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.collections))
	for name := range r.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Target возвращает целевую коллекцию ассоциации
func (r *Registry) Target(a Association) (*Collection, error) {
	target, err := r.Get(a.Target)
	if err != nil {
		return nil, fmt.Errorf("association %q: %w", a.Name, err)
	}
	return target, nil
}

// file - формат YAML файла схемы
type file struct {
	Collections []*Collection `yaml:"collections"`
}

// Parse разбирает YAML описание схемы и регистрирует все коллекции
func (r *Registry) Parse(data []byte) error {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse schema: %w", err)
	}

	for _, c := range f.Collections {
		if err := r.Register(c); err != nil {
			return err
		}
	}

	// Все цели ассоциаций должны существовать
	for _, c := range f.Collections {
		for _, a := range c.Associations {
			if _, err := r.Target(a); err != nil {
				return fmt.Errorf("collection %q: %w", c.Name, err)
			}
		}
	}

	return nil
}

// LoadFile загружает схему из YAML файла
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	r := NewRegistry()
	if err := r.Parse(data); err != nil {
		return nil, err
	}
	return r, nil
}
