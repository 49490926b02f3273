// Пакет diffengine — структурные разреженные дельты между двумя
// состояниями продукта.
//
// Дельта содержит только изменённые поля: неизменённое поле в дельте
// отсутствует. Пустая дельта — допустимый результат (ревизия без
// изменений). Смена вида метаданных в дельте невыразима и отклоняется
// до сравнения полей.
package diffengine

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bigkaa/prodstore/catalog"
	"github.com/bigkaa/prodstore/catalog/meta"
)

// ScalarChange — изменение скалярного поля: старое и новое значения.
type ScalarChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// FieldChange — изменение одного поля метаданных. Значения хранятся
// как сырой JSON в пределах фиксированной схемы вида; nil означает
// отсутствие поля.
type FieldChange struct {
	Old json.RawMessage `json:"old,omitempty"`
	New json.RawMessage `json:"new,omitempty"`
}

// Delta — разреженная разница между базовым и кандидатским состоянием.
type Delta struct {
	// Name — изменение имени, nil если не изменилось
	Name *ScalarChange `json:"name,omitempty"`
	// Description — изменение описания, nil если не изменилось
	Description *ScalarChange `json:"description,omitempty"`
	// Metadata — изменённые поля метаданных по именам полей
	Metadata map[string]FieldChange `json:"metadata,omitempty"`
	// Added — источники, присутствующие только у кандидата
	Added map[string]catalog.Source `json:"added,omitempty"`
	// Removed — источники, присутствующие только в базе
	Removed map[string]catalog.Source `json:"removed,omitempty"`
	// Replaced — источники с изменённым содержимым (новое состояние)
	Replaced map[string]catalog.Source `json:"replaced,omitempty"`
}

// Empty возвращает true, если дельта не содержит изменений.
func (d Delta) Empty() bool {
	return d.Name == nil && d.Description == nil &&
		len(d.Metadata) == 0 &&
		len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Replaced) == 0
}

// ChangedSources возвращает источники, требующие передачи содержимого
// при публикации: добавленные и заменённые.
func (d Delta) ChangedSources() map[string]catalog.Source {
	out := make(map[string]catalog.Source, len(d.Added)+len(d.Replaced))
	for slug, src := range d.Added {
		out[slug] = src
	}
	for slug, src := range d.Replaced {
		out[slug] = src
	}
	return out
}

// Diff вычисляет разреженную дельту между базовым продуктом и
// кандидатом. Для нового продукта передаётся пустая база (без
// метаданных): все источники кандидата попадают в Added, а дельта
// метаданных несёт все поля кандидата вместе с дискриминатором вида,
// поэтому Apply по пустой базе восстанавливает кандидата целиком.
// Смена вида метаданных возвращает catalog.ErrKindChanged.
func Diff(baseline catalog.Product, candidate catalog.Product) (Delta, error) {
	if candidate.Metadata == nil {
		return Delta{}, fmt.Errorf("кандидат не имеет метаданных")
	}
	if baseline.Metadata != nil && baseline.Metadata.Kind() != candidate.Metadata.Kind() {
		return Delta{}, fmt.Errorf("%w: %q -> %q",
			catalog.ErrKindChanged, baseline.Metadata.Kind(), candidate.Metadata.Kind())
	}

	var d Delta

	if baseline.Name != candidate.Name {
		d.Name = &ScalarChange{Old: baseline.Name, New: candidate.Name}
	}
	if baseline.Description != candidate.Description {
		d.Description = &ScalarChange{Old: baseline.Description, New: candidate.Description}
	}

	metaDelta, err := diffMetadata(baseline.Metadata, candidate.Metadata)
	if err != nil {
		return Delta{}, err
	}
	d.Metadata = metaDelta

	for slug, src := range candidate.Sources {
		base, ok := baseline.Sources[slug]
		switch {
		case !ok:
			if d.Added == nil {
				d.Added = make(map[string]catalog.Source)
			}
			d.Added[slug] = src
		case !sourceEqual(base, src):
			if d.Replaced == nil {
				d.Replaced = make(map[string]catalog.Source)
			}
			d.Replaced[slug] = src
		}
	}
	for slug, src := range baseline.Sources {
		if _, ok := candidate.Sources[slug]; !ok {
			if d.Removed == nil {
				d.Removed = make(map[string]catalog.Source)
			}
			d.Removed[slug] = src
		}
	}

	return d, nil
}

// Apply накладывает дельту на базовый продукт и возвращает новое
// состояние. База не изменяется. Для любых базы и кандидата одного
// вида метаданных Apply(base, Diff(base, candidate)) эквивалентно
// кандидату.
func Apply(baseline catalog.Product, d Delta) (catalog.Product, error) {
	out := baseline
	out.Sources = make(map[string]catalog.Source, len(baseline.Sources))
	for slug, src := range baseline.Sources {
		out.Sources[slug] = src
	}

	if d.Name != nil {
		out.Name = d.Name.New
	}
	if d.Description != nil {
		out.Description = d.Description.New
	}

	if len(d.Metadata) > 0 {
		applied, err := applyMetadata(baseline.Metadata, d.Metadata)
		if err != nil {
			return catalog.Product{}, err
		}
		out.Metadata = applied
	}

	for slug := range d.Removed {
		delete(out.Sources, slug)
	}
	for slug, src := range d.Added {
		out.Sources[slug] = src
	}
	for slug, src := range d.Replaced {
		out.Sources[slug] = src
	}

	return out, nil
}

// sourceEqual — структурное равенство источников по всем полям.
func sourceEqual(a, b catalog.Source) bool {
	return a.Slug == b.Slug &&
		a.Name == b.Name &&
		a.Description == b.Description &&
		a.Size == b.Size &&
		a.Digest.Equal(b.Digest) &&
		a.StorageKey == b.StorageKey &&
		a.LocalPath == b.LocalPath
}

// diffMetadata сравнивает метаданные пополево через JSON-представление.
// База без метаданных (новый продукт) даёт дельту со всеми полями
// кандидата.
func diffMetadata(baseline, candidate meta.Metadata) (map[string]FieldChange, error) {
	baseFields, err := metadataFields(baseline)
	if err != nil {
		return nil, err
	}
	candFields, err := metadataFields(candidate)
	if err != nil {
		return nil, err
	}

	var changes map[string]FieldChange
	record := func(field string, old, new json.RawMessage) {
		if changes == nil {
			changes = make(map[string]FieldChange)
		}
		changes[field] = FieldChange{Old: old, New: new}
	}

	for field, newVal := range candFields {
		oldVal, ok := baseFields[field]
		if !ok {
			record(field, nil, newVal)
			continue
		}
		if !bytes.Equal(oldVal, newVal) {
			record(field, oldVal, newVal)
		}
	}
	for field, oldVal := range baseFields {
		if _, ok := candFields[field]; !ok {
			record(field, oldVal, nil)
		}
	}

	return changes, nil
}

// applyMetadata накладывает изменения полей на метаданные базы
// и восстанавливает типизированный вид. Вид берётся из базы; для
// пустой базы (новый продукт) — из дискриминатора в самой дельте.
func applyMetadata(baseline meta.Metadata, changes map[string]FieldChange) (meta.Metadata, error) {
	fields, err := metadataFields(baseline)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage, len(changes))
	}

	for field, change := range changes {
		if change.New == nil {
			delete(fields, field)
			continue
		}
		fields[field] = change.New
	}
	if baseline != nil {
		// Вид метаданных дельтой не меняется
		fields["metadata_type"] = json.RawMessage(`"` + baseline.Kind() + `"`)
	}

	encoded, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации метаданных при применении дельты: %w", err)
	}
	return meta.Decode(encoded)
}

// metadataFields раскладывает метаданные в карту полей вместе с
// дискриминатором вида. Для nil возвращает nil. У состояний одного
// вида дискриминаторы совпадают и в дельту не попадают; у нового
// продукта дискриминатор кандидата попадает в дельту как добавленное
// поле и переносит вид.
func metadataFields(m meta.Metadata) (map[string]json.RawMessage, error) {
	if m == nil {
		return nil, nil
	}
	encoded, err := meta.Encode(m)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &fields); err != nil {
		return nil, fmt.Errorf("ошибка разбора полей метаданных: %w", err)
	}
	return fields, nil
}
