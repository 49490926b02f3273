// Пакет checksum — потоковое вычисление и проверка контрольных сумм
// содержимого файлов.
//
// Используется алгоритм xxHash64 (не криптографический, но достаточно
// устойчивый к коллизиям для адресации контента). Дайджест хранится
// в тегированном формате "xxh64:<hex>", что позволяет в будущем
// сменить алгоритм без миграции данных.
package checksum

import (
	"encoding"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Algorithm — тег алгоритма по умолчанию.
const Algorithm = "xxh64"

// Digest — тегированная контрольная сумма содержимого.
// Нулевое значение означает «дайджест не вычислен» (источник ещё
// не загружен в хранилище).
type Digest struct {
	// Algorithm — тег алгоритма (например, "xxh64")
	Algorithm string
	// Hex — hex-представление значения хэша
	Hex string
}

// String возвращает строковое представление "xxh64:<hex>".
func (d Digest) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Algorithm + ":" + d.Hex
}

// IsZero возвращает true, если дайджест не вычислен.
func (d Digest) IsZero() bool {
	return d.Algorithm == "" && d.Hex == ""
}

// Equal сравнивает два дайджеста (алгоритм и значение).
func (d Digest) Equal(other Digest) bool {
	return d.Algorithm == other.Algorithm && d.Hex == other.Hex
}

// MarshalText сериализует дайджест в тегированную строку.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText разбирает тегированную строку "alg:hex".
// Пустая строка даёт нулевой дайджест.
func (d *Digest) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Digest{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Проверка на этапе компиляции
var (
	_ encoding.TextMarshaler   = Digest{}
	_ encoding.TextUnmarshaler = (*Digest)(nil)
)

// Parse разбирает тегированную строку дайджеста "alg:hex".
func Parse(s string) (Digest, error) {
	alg, hexValue, ok := strings.Cut(s, ":")
	if !ok || alg == "" || hexValue == "" {
		return Digest{}, fmt.Errorf("некорректный формат дайджеста %q: ожидается \"алгоритм:hex\"", s)
	}
	return Digest{Algorithm: alg, Hex: hexValue}, nil
}

// New вычисляет xxh64-дайджест потока без загрузки содержимого в память.
// Возвращает дайджест и количество прочитанных байт.
func New(r io.Reader) (Digest, int64, error) {
	hasher := xxhash.New()

	size, err := io.Copy(hasher, r)
	if err != nil {
		return Digest{}, 0, fmt.Errorf("ошибка чтения потока при вычислении дайджеста: %w", err)
	}

	return Digest{
		Algorithm: Algorithm,
		Hex:       fmt.Sprintf("%016x", hasher.Sum64()),
	}, size, nil
}

// NewFromFile вычисляет дайджест файла по пути.
// Возвращает дайджест и размер файла в байтах.
func NewFromFile(path string) (Digest, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, 0, fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	defer f.Close()

	return New(f)
}

// Verify пересчитывает дайджест потока и сравнивает с ожидаемым.
// Несовпадение — не ошибка: политику решает вызывающий код.
func Verify(r io.Reader, expected Digest) (bool, error) {
	actual, _, err := New(r)
	if err != nil {
		return false, err
	}
	return actual.Equal(expected), nil
}

// VerifyFile пересчитывает дайджест файла и сравнивает с ожидаемым.
func VerifyFile(path string, expected Digest) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	defer f.Close()

	return Verify(f, expected)
}
