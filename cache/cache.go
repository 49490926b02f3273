// Пакет cache — локальный кэш содержимого источников продуктов.
//
// Кэш состоит из упорядоченного списка корней: чтение ищет запись по
// корням в заданном порядке, запись всегда идёт в первый доступный для
// записи корень. Запись становится видимой под каноническим именем
// только после проверки дайджеста и атомарного переименования, поэтому
// частично скачанный или повреждённый файл никогда не виден как
// готовая запись.
//
// Скачивания схлопываются по ключу (продукт, слаг): одновременные
// вызовы Realize для одного ключа порождают одно скачивание, остальные
// ждут его результата. Отмена контекста одного из вызвавших не
// прерывает общее скачивание. Межпроцессная координация не
// гарантируется:
// два процесса могут скачать один файл дважды, запись идемпотентна и
// итог одинаков.
package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/bigkaa/prodstore/catalog"
	"github.com/bigkaa/prodstore/checksum"
)

// Fetch — внешняя функция получения содержимого источника
// (например, скачивание по подписанной ссылке).
type Fetch func(ctx context.Context, src catalog.Source) (io.ReadCloser, error)

// Root — один корень кэша.
type Root struct {
	// Path — директория корня
	Path string
	// ReadOnly — корень только для чтения (например, общий сетевой)
	ReadOnly bool
}

// Config — конфигурация кэша.
type Config struct {
	// Roots — корни кэша в порядке поиска
	Roots []Root
}

// CorruptionError — дайджест скачанного содержимого не совпал
// с ожидаемым. Временный файл удалён, повторная попытка допустима.
type CorruptionError struct {
	ProductID string
	Slug      string
	Expected  checksum.Digest
	Actual    checksum.Digest
}

// Error реализует интерфейс error.
func (e *CorruptionError) Error() string {
	return fmt.Sprintf("повреждённое содержимое источника %s/%s: ожидался дайджест %s, получен %s",
		e.ProductID, e.Slug, e.Expected, e.Actual)
}

// Manager — менеджер локального кэша.
type Manager struct {
	roots     []Root
	writeRoot string
	logger    *slog.Logger
	group     singleflight.Group
}

// New создаёт менеджер кэша. Требуется хотя бы один корень и хотя бы
// один корень с правом записи; директории корней с правом записи
// создаются при необходимости.
func New(cfg Config, logger *slog.Logger) (*Manager, error) {
	if len(cfg.Roots) == 0 {
		return nil, fmt.Errorf("кэш требует хотя бы один корень")
	}

	writeRoot := ""
	for _, root := range cfg.Roots {
		if root.ReadOnly {
			continue
		}
		if err := os.MkdirAll(root.Path, 0o750); err != nil {
			return nil, fmt.Errorf("не удалось создать корень кэша %s: %w", root.Path, err)
		}
		if writeRoot == "" {
			writeRoot = root.Path
		}
	}
	if writeRoot == "" {
		return nil, fmt.Errorf("кэш требует хотя бы один корень с правом записи")
	}

	return &Manager{
		roots:     cfg.Roots,
		writeRoot: writeRoot,
		logger:    logger.With(slog.String("component", "cache")),
	}, nil
}

// entryName — каноническое имя записи: дайджест вшит в имя файла,
// поэтому устаревшее содержимое никогда не находится по новому
// дайджесту.
func entryName(slug string, digest checksum.Digest) string {
	return digest.Hex + "_" + slug
}

// Available возвращает путь к проверенной записи, если она уже есть
// в одном из корней. Сетевых обращений не выполняет.
func (m *Manager) Available(productID, slug string, digest checksum.Digest) (string, bool) {
	if digest.IsZero() {
		return "", false
	}
	name := entryName(slug, digest)
	for _, root := range m.roots {
		path := filepath.Join(root.Path, productID, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, true
		}
	}
	return "", false
}

// Realize возвращает путь к локальному проверенному файлу источника,
// скачивая его при необходимости. Одновременные вызовы для одного
// ключа (продукт, слаг) схлопываются в одно скачивание. Общее
// скачивание отвязано от отмены контекста: отмена у одного из
// вызвавших не роняет результат для остальных ожидающих.
func (m *Manager) Realize(ctx context.Context, productID string, src catalog.Source, fetch Fetch) (string, error) {
	if src.Digest.IsZero() {
		return "", fmt.Errorf("источник %s/%s не имеет дайджеста, реализация невозможна", productID, src.Slug)
	}

	if path, ok := m.Available(productID, src.Slug, src.Digest); ok {
		cacheHits.Inc()
		return path, nil
	}
	cacheMisses.Inc()

	key := productID + "/" + src.Slug
	result, err, _ := m.group.Do(key, func() (any, error) {
		// Повторная проверка: запись могла появиться, пока мы ждали
		if path, ok := m.Available(productID, src.Slug, src.Digest); ok {
			return path, nil
		}
		// Результат полёта разделяют все ожидающие, поэтому скачивание
		// не наследует отмену контекста первого вызвавшего
		return m.download(context.WithoutCancel(ctx), productID, src, fetch)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// download скачивает содержимое во временный файл, проверяет дайджест
// и атомарно переименовывает в каноническое имя.
func (m *Manager) download(ctx context.Context, productID string, src catalog.Source, fetch Fetch) (string, error) {
	cacheFetches.Inc()

	dir := filepath.Join(m.writeRoot, productID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("не удалось создать директорию кэша %s: %w", dir, err)
	}

	body, err := fetch(ctx, src)
	if err != nil {
		return "", fmt.Errorf("ошибка получения содержимого источника %s/%s: %w", productID, src.Slug, err)
	}
	defer body.Close()

	tmp, err := os.CreateTemp(dir, src.Slug+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := tmp.Name()

	// Запись с подсчётом дайджеста на лету
	actual, size, err := checksum.New(io.TeeReader(body, tmp))
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка записи содержимого источника %s/%s: %w", productID, src.Slug, err)
	}

	if !actual.Equal(src.Digest) {
		tmp.Close()
		os.Remove(tmpPath)
		cacheCorruptions.Inc()
		return "", &CorruptionError{
			ProductID: productID,
			Slug:      src.Slug,
			Expected:  src.Digest,
			Actual:    actual,
		}
	}

	// fsync для гарантии записи на диск
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка закрытия временного файла: %w", err)
	}

	finalPath := filepath.Join(dir, entryName(src.Slug, src.Digest))
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	m.logger.Info("источник сохранён в кэш",
		slog.String("product_id", productID),
		slog.String("slug", src.Slug),
		slog.Int64("size", size),
		slog.String("digest", actual.String()))

	return finalPath, nil
}

// Evict удаляет записи ключа (продукт, слаг) из всех корней с правом
// записи. Отсутствие записей — не ошибка. Возвращает освобождённые
// байты.
func (m *Manager) Evict(productID, slug string) (int64, error) {
	var reclaimed int64
	for _, root := range m.roots {
		if root.ReadOnly {
			continue
		}
		dir := filepath.Join(root.Path, productID)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return reclaimed, fmt.Errorf("ошибка чтения директории кэша %s: %w", dir, err)
		}
		for _, entry := range entries {
			_, entrySlug, ok := splitEntryName(entry.Name())
			if !ok || entrySlug != slug {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if info, err := entry.Info(); err == nil {
				reclaimed += info.Size()
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return reclaimed, fmt.Errorf("ошибка удаления записи кэша %s: %w", path, err)
			}
		}
	}
	cacheReclaimedBytes.Add(float64(reclaimed))
	return reclaimed, nil
}

// EvictProduct удаляет все записи продукта из корней с правом записи.
// Возвращает освобождённые байты.
func (m *Manager) EvictProduct(productID string) (int64, error) {
	var reclaimed int64
	for _, root := range m.roots {
		if root.ReadOnly {
			continue
		}
		dir := filepath.Join(root.Path, productID)
		size, err := dirSize(dir)
		if err != nil {
			return reclaimed, err
		}
		if err := os.RemoveAll(dir); err != nil {
			return reclaimed, fmt.Errorf("ошибка удаления директории кэша %s: %w", dir, err)
		}
		reclaimed += size
	}
	cacheReclaimedBytes.Add(float64(reclaimed))
	return reclaimed, nil
}

// Clear удаляет все записи из корней с правом записи.
// Возвращает освобождённые байты.
func (m *Manager) Clear() (int64, error) {
	var reclaimed int64
	for _, root := range m.roots {
		if root.ReadOnly {
			continue
		}
		entries, err := os.ReadDir(root.Path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return reclaimed, fmt.Errorf("ошибка чтения корня кэша %s: %w", root.Path, err)
		}
		for _, entry := range entries {
			path := filepath.Join(root.Path, entry.Name())
			size, err := dirSize(path)
			if err != nil {
				return reclaimed, err
			}
			if err := os.RemoveAll(path); err != nil {
				return reclaimed, fmt.Errorf("ошибка очистки кэша %s: %w", path, err)
			}
			reclaimed += size
		}
	}
	cacheReclaimedBytes.Add(float64(reclaimed))
	return reclaimed, nil
}

// VerifyAll сверяет содержимое записей в корнях с правом записи с
// дайджестами, вшитыми в имена файлов. Повреждённые записи удаляются.
// Возвращает пути удалённых записей.
func (m *Manager) VerifyAll(ctx context.Context) ([]string, error) {
	var removed []string
	for _, root := range m.roots {
		if root.ReadOnly {
			continue
		}
		products, err := os.ReadDir(root.Path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("ошибка чтения корня кэша %s: %w", root.Path, err)
		}
		for _, product := range products {
			if !product.IsDir() {
				continue
			}
			dir := filepath.Join(root.Path, product.Name())
			entries, err := os.ReadDir(dir)
			if err != nil {
				return removed, fmt.Errorf("ошибка чтения директории кэша %s: %w", dir, err)
			}
			for _, entry := range entries {
				if err := ctx.Err(); err != nil {
					return removed, err
				}
				hexValue, _, ok := splitEntryName(entry.Name())
				if !ok {
					continue
				}
				path := filepath.Join(dir, entry.Name())
				expected := checksum.Digest{Algorithm: checksum.Algorithm, Hex: hexValue}
				match, err := checksum.VerifyFile(path, expected)
				if err != nil {
					return removed, err
				}
				if match {
					continue
				}
				cacheCorruptions.Inc()
				m.logger.Warn("повреждённая запись кэша удалена",
					slog.String("path", path),
					slog.String("expected", expected.String()))
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					return removed, fmt.Errorf("ошибка удаления записи кэша %s: %w", path, err)
				}
				removed = append(removed, path)
			}
		}
	}
	return removed, nil
}

// splitEntryName раскладывает каноническое имя записи на hex-дайджест
// и слаг. Временные файлы и посторонние имена отвергаются.
func splitEntryName(name string) (hexValue, slug string, ok bool) {
	if strings.HasSuffix(name, ".tmp") {
		return "", "", false
	}
	hexValue, slug, ok = strings.Cut(name, "_")
	if !ok || hexValue == "" || slug == "" {
		return "", "", false
	}
	return hexValue, slug, true
}

// dirSize суммирует размер обычных файлов в директории (рекурсивно).
// Отсутствующая директория даёт ноль.
func dirSize(path string) (int64, error) {
	var total int64
	err := filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("ошибка подсчёта размера %s: %w", path, err)
	}
	return total, nil
}
