// Пакет meta — закрытое множество видов метаданных продукта.
//
// Каждый вид метаданных определяет набор допустимых слагов источников:
// источники продукта обязаны использовать только слаги своего вида.
// Сериализация — JSON с дискриминатором "metadata_type"; неизвестный
// дискриминатор — ошибка, расширение множества видов требует изменения
// кода (динамические виды не поддерживаются).
package meta

import (
	"encoding/json"
	"fmt"
)

// Теги видов метаданных (значения дискриминатора "metadata_type").
const (
	KindSimple  = "simple"
	KindBeam    = "beam"
	KindMapSet  = "mapset"
	KindNumeric = "numeric"
)

// Metadata — один из видов метаданных продукта.
// Реализации пакета — единственные допустимые члены множества.
type Metadata interface {
	// Kind возвращает тег вида (значение дискриминатора).
	Kind() string
	// ValidSlugs возвращает допустимые слаги источников для этого вида.
	ValidSlugs() []string
	// Validate проверяет внутреннюю согласованность полей.
	Validate() error
}

// Simple — метаданные без дополнительных полей.
type Simple struct{}

// Kind возвращает тег вида.
func (Simple) Kind() string { return KindSimple }

// ValidSlugs возвращает допустимые слаги источников.
func (Simple) ValidSlugs() []string { return []string{"data"} }

// Validate проверяет поля вида.
func (Simple) Validate() error { return nil }

// Beam — метаданные диаграммы направленности инструмента.
type Beam struct {
	Telescope  string  `json:"telescope,omitempty"`
	Instrument string  `json:"instrument,omitempty"`
	Wafer      string  `json:"wafer,omitempty"`
	Frequency  float64 `json:"frequency,omitempty"`
}

// Kind возвращает тег вида.
func (Beam) Kind() string { return KindBeam }

// ValidSlugs возвращает допустимые слаги источников.
func (Beam) ValidSlugs() []string { return []string{"data"} }

// Validate проверяет поля вида.
func (b Beam) Validate() error {
	if b.Frequency < 0 {
		return fmt.Errorf("частота не может быть отрицательной: %g", b.Frequency)
	}
	return nil
}

// Пиксельизации набора карт.
const (
	PixelisationHealpix   = "healpix"
	PixelisationCartesian = "cartesian"
)

// MapSet — метаданные набора карт неба.
type MapSet struct {
	// Pixelisation — схема пиксельизации, обязательное поле
	Pixelisation           string   `json:"pixelisation"`
	Telescope              string   `json:"telescope,omitempty"`
	Instrument             string   `json:"instrument,omitempty"`
	Release                string   `json:"release,omitempty"`
	Season                 string   `json:"season,omitempty"`
	Patch                  string   `json:"patch,omitempty"`
	Frequency              string   `json:"frequency,omitempty"`
	PolarizationConvention string   `json:"polarization_convention,omitempty"`
	Tags                   []string `json:"tags,omitempty"`
}

// Kind возвращает тег вида.
func (MapSet) Kind() string { return KindMapSet }

// ValidSlugs возвращает допустимые слаги источников.
func (MapSet) ValidSlugs() []string {
	return []string{
		"coadd", "split",
		"source_only", "source_only_split",
		"source_free", "source_free_split",
		"ivar_coadd", "ivar_split",
		"xlink_coadd", "xlink_split",
		"mask", "data",
	}
}

// Validate проверяет поля вида.
func (m MapSet) Validate() error {
	switch m.Pixelisation {
	case PixelisationHealpix, PixelisationCartesian:
		return nil
	case "":
		return fmt.Errorf("пиксельизация обязательна для набора карт")
	default:
		return fmt.Errorf("неизвестная пиксельизация: %q", m.Pixelisation)
	}
}

// Numeric — метаданные скалярной величины.
type Numeric struct {
	Value float64 `json:"value"`
	Units string  `json:"units,omitempty"`
}

// Kind возвращает тег вида.
func (Numeric) Kind() string { return KindNumeric }

// ValidSlugs возвращает допустимые слаги источников.
func (Numeric) ValidSlugs() []string { return []string{"data"} }

// Validate проверяет поля вида.
func (Numeric) Validate() error { return nil }

// SlugValid сообщает, допустим ли слаг для данного вида метаданных.
func SlugValid(m Metadata, slug string) bool {
	for _, s := range m.ValidSlugs() {
		if s == slug {
			return true
		}
	}
	return false
}

// envelope — промежуточная форма для чтения дискриминатора.
type envelope struct {
	Kind string `json:"metadata_type"`
}

// Decode разбирает JSON-представление метаданных по дискриминатору
// "metadata_type". Неизвестный или отсутствующий дискриминатор — ошибка.
func Decode(data []byte) (Metadata, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("ошибка разбора метаданных: %w", err)
	}

	var m Metadata
	switch env.Kind {
	case KindSimple:
		m = &Simple{}
	case KindBeam:
		m = &Beam{}
	case KindMapSet:
		m = &MapSet{}
	case KindNumeric:
		m = &Numeric{}
	case "":
		return nil, fmt.Errorf("в метаданных отсутствует поле metadata_type")
	default:
		return nil, fmt.Errorf("неизвестный вид метаданных: %q", env.Kind)
	}

	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("ошибка разбора метаданных вида %q: %w", env.Kind, err)
	}

	// Указатель нужен был только для Unmarshal, наружу отдаём значение
	switch v := m.(type) {
	case *Simple:
		return *v, nil
	case *Beam:
		return *v, nil
	case *MapSet:
		return *v, nil
	case *Numeric:
		return *v, nil
	}
	return m, nil
}

// Encode сериализует метаданные в JSON, добавляя дискриминатор
// "metadata_type".
func Encode(m Metadata) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации метаданных вида %q: %w", m.Kind(), err)
	}

	// Вклеиваем дискриминатор в сериализованный объект
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("ошибка сериализации метаданных вида %q: %w", m.Kind(), err)
	}
	fields["metadata_type"] = json.RawMessage(`"` + m.Kind() + `"`)

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации метаданных вида %q: %w", m.Kind(), err)
	}
	return out, nil
}
