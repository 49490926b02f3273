// Ревизия — изменяемая клиентская надстройка над опубликованным
// продуктом. Все правки накапливаются в ревизии; базовый продукт
// никогда не изменяется. Публикация материализует ревизию в новый
// неизменяемый продукт.
package catalog

import (
	"fmt"

	"github.com/bigkaa/prodstore/catalog/meta"
)

// ErrKindChanged — попытка сменить вид метаданных существующего
// продукта. Смена вида сделала бы недействительным множество
// допустимых слагов, поэтому запрещена.
var ErrKindChanged = fmt.Errorf("вид метаданных продукта не может быть изменён")

// Revision — черновик правок продукта.
//
// Для нового продукта базовая версия отсутствует (Baseline() == nil).
// Для правки существующего продукта ревизия создаётся из базовой
// версии и наследует её состояние.
type Revision struct {
	baseline *Product

	name        string
	description string
	metadata    meta.Metadata
	sources     map[string]Source
	access      Access
}

// NewDraft создаёт черновик нового продукта (без базовой версии).
func NewDraft(name string, description string, m meta.Metadata) (*Revision, error) {
	if m == nil {
		return nil, fmt.Errorf("черновик продукта %q должен иметь метаданные", name)
	}
	return &Revision{
		name:        name,
		description: description,
		metadata:    m,
		sources:     make(map[string]Source),
	}, nil
}

// NewRevision создаёт ревизию существующего продукта.
// Состояние базовой версии копируется; дальнейшие правки не
// затрагивают базовый продукт.
func NewRevision(baseline *Product) (*Revision, error) {
	if baseline == nil {
		return nil, fmt.Errorf("ревизия требует базовую версию продукта")
	}
	if baseline.Metadata == nil {
		return nil, fmt.Errorf("базовый продукт %q не имеет метаданных", baseline.Name)
	}

	sources := make(map[string]Source, len(baseline.Sources))
	for slug, src := range baseline.Sources {
		sources[slug] = src
	}

	access := baseline.Access
	access.Readers = append([]string(nil), baseline.Access.Readers...)
	access.Writers = append([]string(nil), baseline.Access.Writers...)

	return &Revision{
		baseline:    baseline,
		name:        baseline.Name,
		description: baseline.Description,
		metadata:    baseline.Metadata,
		sources:     sources,
		access:      access,
	}, nil
}

// Baseline возвращает базовый продукт ревизии (nil для черновика).
func (r *Revision) Baseline() *Product {
	return r.baseline
}

// Name возвращает текущее имя.
func (r *Revision) Name() string { return r.name }

// SetName изменяет имя продукта.
func (r *Revision) SetName(name string) { r.name = name }

// Description возвращает текущее описание.
func (r *Revision) Description() string { return r.description }

// SetDescription изменяет описание продукта.
func (r *Revision) SetDescription(description string) { r.description = description }

// Metadata возвращает текущие метаданные.
func (r *Revision) Metadata() meta.Metadata { return r.metadata }

// SetMetadata заменяет метаданные. Для ревизии существующего продукта
// вид метаданных должен совпадать с базовым (ErrKindChanged).
func (r *Revision) SetMetadata(m meta.Metadata) error {
	if m == nil {
		return fmt.Errorf("метаданные не могут быть пустыми")
	}
	if r.baseline != nil && m.Kind() != r.baseline.Metadata.Kind() {
		return fmt.Errorf("%w: %q -> %q", ErrKindChanged, r.baseline.Metadata.Kind(), m.Kind())
	}
	r.metadata = m
	return nil
}

// Source возвращает источник по слагу.
func (r *Revision) Source(slug string) (Source, bool) {
	s, ok := r.sources[slug]
	return s, ok
}

// Sources возвращает копию множества источников ревизии.
func (r *Revision) Sources() map[string]Source {
	out := make(map[string]Source, len(r.sources))
	for slug, src := range r.sources {
		out[slug] = src
	}
	return out
}

// SetSource добавляет или заменяет источник. Слаг должен принадлежать
// допустимому множеству текущего вида метаданных.
func (r *Revision) SetSource(src Source) error {
	if src.Slug == "" {
		return fmt.Errorf("слаг источника не может быть пустым")
	}
	if !meta.SlugValid(r.metadata, src.Slug) {
		return fmt.Errorf("слаг %q недопустим для метаданных вида %q", src.Slug, r.metadata.Kind())
	}
	r.sources[src.Slug] = src
	return nil
}

// RemoveSource убирает источник по слагу.
// Возвращает true, если источник присутствовал.
func (r *Revision) RemoveSource(slug string) bool {
	if _, ok := r.sources[slug]; !ok {
		return false
	}
	delete(r.sources, slug)
	return true
}

// Access возвращает текущие правила доступа ревизии.
func (r *Revision) Access() Access { return r.access }

// SetOwner назначает владельца (для черновиков нового продукта).
func (r *Revision) SetOwner(owner string) { r.access.Owner = owner }

// AddReader добавляет группу читателей.
func (r *Revision) AddReader(group string) { r.access.AddReader(group) }

// RemoveReader убирает группу читателей.
func (r *Revision) RemoveReader(group string) { r.access.RemoveReader(group) }

// AddWriter добавляет группу писателей.
func (r *Revision) AddWriter(group string) { r.access.AddWriter(group) }

// RemoveWriter убирает группу писателей.
func (r *Revision) RemoveWriter(group string) { r.access.RemoveWriter(group) }

// Snapshot материализует текущее состояние ревизии в форму продукта.
// Идентификатор, версия и ссылки цепочки не заполняются: их назначает
// служба метаданных при публикации.
func (r *Revision) Snapshot() Product {
	sources := make(map[string]Source, len(r.sources))
	for slug, src := range r.sources {
		sources[slug] = src
	}
	return Product{
		Name:        r.name,
		Description: r.description,
		Metadata:    r.metadata,
		Sources:     sources,
		Access:      r.access,
	}
}
