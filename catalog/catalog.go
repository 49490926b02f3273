// Пакет catalog — модель данных каталога продуктов.
//
// Продукт — неизменяемый версионируемый набор именованных источников
// (файлов) с типизированными метаданными. Версии продукта образуют
// линейную цепочку через ссылки previous_version/next_version; ровно
// один продукт в линии имеет пустую next_version («последний»).
package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bigkaa/prodstore/catalog/meta"
	"github.com/bigkaa/prodstore/checksum"
	"github.com/bigkaa/prodstore/version"
)

// Source — один файл внутри продукта, идентифицируемый слагом.
type Source struct {
	// Slug — роль источника, уникальная внутри продукта
	Slug string `json:"slug"`
	// Name — отображаемое имя файла
	Name string `json:"name"`
	// Description — описание источника
	Description string `json:"description,omitempty"`
	// Size — размер в байтах
	Size int64 `json:"size"`
	// Digest — контрольная сумма содержимого; нулевая, если источник
	// ещё не загружен в хранилище
	Digest checksum.Digest `json:"digest,omitzero"`
	// StorageKey — непрозрачный ключ объекта в хранилище
	StorageKey string `json:"storage_key,omitempty"`
	// LocalPath — путь к локальному файлу до публикации
	LocalPath string `json:"-"`
}

// Realized возвращает true, если содержимое источника загружено
// в хранилище (дайджест вычислен).
func (s Source) Realized() bool {
	return !s.Digest.IsZero()
}

// Product — опубликованная версия продукта.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Metadata    meta.Metadata   `json:"metadata"`
	Sources     map[string]Source `json:"sources"`
	Version     version.Version `json:"version"`
	Access      Access          `json:"access"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	// Ссылки цепочки версий (идентификаторы продуктов)
	PreviousVersion string `json:"previous_version,omitempty"`
	NextVersion     string `json:"next_version,omitempty"`

	// Ссылки происхождения, независимые от версионирования
	ParentOf []string `json:"parent_of,omitempty"`
	ChildOf  []string `json:"child_of,omitempty"`

	// Членство в коллекциях (обратные ссылки, невладеющие)
	Collections []string `json:"collections,omitempty"`
}

// IsLatest возвращает true, если продукт — последняя версия своей линии.
func (p *Product) IsLatest() bool {
	return p.NextVersion == ""
}

// Source возвращает источник по слагу.
func (p *Product) Source(slug string) (Source, bool) {
	s, ok := p.Sources[slug]
	return s, ok
}

// Validate проверяет инварианты продукта: согласованность метаданных
// и принадлежность всех слагов источников допустимому множеству вида.
func (p *Product) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("имя продукта не может быть пустым")
	}
	if p.Metadata == nil {
		return fmt.Errorf("продукт %q не имеет метаданных", p.Name)
	}
	if err := p.Metadata.Validate(); err != nil {
		return fmt.Errorf("некорректные метаданные продукта %q: %w", p.Name, err)
	}
	for slug, src := range p.Sources {
		if src.Slug != slug {
			return fmt.Errorf("слаг источника %q не совпадает с ключом %q", src.Slug, slug)
		}
		if !meta.SlugValid(p.Metadata, slug) {
			return fmt.Errorf("слаг %q недопустим для метаданных вида %q", slug, p.Metadata.Kind())
		}
	}
	return nil
}

// productJSON — промежуточная форма продукта: метаданные как сырой
// JSON до диспетчеризации по дискриминатору.
type productJSON struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Metadata    json.RawMessage   `json:"metadata"`
	Sources     map[string]Source `json:"sources"`
	Version     version.Version   `json:"version"`
	Access      Access            `json:"access"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`

	PreviousVersion string `json:"previous_version,omitempty"`
	NextVersion     string `json:"next_version,omitempty"`

	ParentOf []string `json:"parent_of,omitempty"`
	ChildOf  []string `json:"child_of,omitempty"`

	Collections []string `json:"collections,omitempty"`
}

// MarshalJSON сериализует продукт, кодируя метаданные с дискриминатором.
func (p Product) MarshalJSON() ([]byte, error) {
	var rawMeta json.RawMessage
	if p.Metadata != nil {
		encoded, err := meta.Encode(p.Metadata)
		if err != nil {
			return nil, err
		}
		rawMeta = encoded
	}
	return json.Marshal(productJSON{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		Metadata:        rawMeta,
		Sources:         p.Sources,
		Version:         p.Version,
		Access:          p.Access,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		PreviousVersion: p.PreviousVersion,
		NextVersion:     p.NextVersion,
		ParentOf:        p.ParentOf,
		ChildOf:         p.ChildOf,
		Collections:     p.Collections,
	})
}

// UnmarshalJSON разбирает продукт, восстанавливая вид метаданных
// по дискриминатору.
func (p *Product) UnmarshalJSON(data []byte) error {
	var raw productJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("ошибка разбора продукта: %w", err)
	}

	var m meta.Metadata
	if len(raw.Metadata) > 0 && string(raw.Metadata) != "null" {
		decoded, err := meta.Decode(raw.Metadata)
		if err != nil {
			return fmt.Errorf("ошибка разбора продукта %q: %w", raw.Name, err)
		}
		m = decoded
	}

	*p = Product{
		ID:              raw.ID,
		Name:            raw.Name,
		Description:     raw.Description,
		Metadata:        m,
		Sources:         raw.Sources,
		Version:         raw.Version,
		Access:          raw.Access,
		CreatedAt:       raw.CreatedAt,
		UpdatedAt:       raw.UpdatedAt,
		PreviousVersion: raw.PreviousVersion,
		NextVersion:     raw.NextVersion,
		ParentOf:        raw.ParentOf,
		ChildOf:         raw.ChildOf,
		Collections:     raw.Collections,
	}
	return nil
}

// Collection — именованный упорядоченный набор продуктов.
// Коллекции могут вкладываться друг в друга; изменение состава
// коллекции не затрагивает версии продуктов.
type Collection struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Members     []string  `json:"members,omitempty"`
	Parents     []string  `json:"parents,omitempty"`
	Children    []string  `json:"children,omitempty"`
	Access      Access    `json:"access"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AddMember добавляет продукт в конец списка членов.
// Повторное добавление уже присутствующего продукта — не ошибка.
func (c *Collection) AddMember(productID string) {
	for _, id := range c.Members {
		if id == productID {
			return
		}
	}
	c.Members = append(c.Members, productID)
}

// RemoveMember убирает продукт из списка членов с сохранением порядка.
// Возвращает true, если продукт присутствовал.
func (c *Collection) RemoveMember(productID string) bool {
	for i, id := range c.Members {
		if id == productID {
			c.Members = append(c.Members[:i], c.Members[i+1:]...)
			return true
		}
	}
	return false
}
