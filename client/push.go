// Публикация продуктов: предварительная проверка, вычисление дельты,
// загрузка содержимого и атомарное создание-и-привязка новой версии.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/prodstore/catalog"
	"github.com/bigkaa/prodstore/catalog/meta"
	"github.com/bigkaa/prodstore/checksum"
	"github.com/bigkaa/prodstore/diffengine"
	"github.com/bigkaa/prodstore/version"
)

// Preflight проверяет ревизию до любых сетевых операций и возвращает
// полный список нарушений (не только первое). Пустой список означает,
// что публикация допустима.
func (c *Client) Preflight(rev *catalog.Revision) []Violation {
	var violations []Violation

	if rev.Name() == "" {
		violations = append(violations, Violation{
			Field:   "name",
			Message: "имя продукта не может быть пустым",
		})
	}

	m := rev.Metadata()
	if m == nil {
		violations = append(violations, Violation{
			Field:   "metadata",
			Message: "продукт должен иметь метаданные",
		})
		return violations
	}
	if err := m.Validate(); err != nil {
		violations = append(violations, Violation{
			Field:   "metadata",
			Message: err.Error(),
		})
	}

	snapshot := rev.Snapshot()
	var baseline catalog.Product
	if rev.Baseline() != nil {
		baseline = *rev.Baseline()
	}
	delta, err := diffengine.Diff(baseline, snapshot)
	if err != nil {
		violations = append(violations, Violation{
			Field:   "metadata",
			Message: err.Error(),
		})
		return violations
	}
	changed := delta.ChangedSources()

	for slug, src := range rev.Sources() {
		if !meta.SlugValid(m, slug) {
			violations = append(violations, Violation{
				Slug:    slug,
				Message: fmt.Sprintf("слаг недопустим для метаданных вида %q", m.Kind()),
			})
		}
		if src.Description == "" {
			violations = append(violations, Violation{
				Slug:    slug,
				Field:   "description",
				Message: "описание источника не может быть пустым",
			})
		}
		// Новое содержимое должно быть читаемо локально
		if _, isChanged := changed[slug]; isChanged && !src.Realized() {
			if src.LocalPath == "" {
				violations = append(violations, Violation{
					Slug:    slug,
					Field:   "local_path",
					Message: "источник не загружен и не имеет локального файла",
				})
				continue
			}
			f, err := os.Open(src.LocalPath)
			if err != nil {
				violations = append(violations, Violation{
					Slug:    slug,
					Field:   "local_path",
					Message: fmt.Sprintf("локальный файл недоступен: %v", err),
				})
				continue
			}
			f.Close()
		}
	}

	return violations
}

// Push публикует ревизию как новую версию продукта.
//
// Порядок: предварительная проверка, вычисление дельты, загрузка
// изменённого содержимого (с дедупликацией по дайджесту), затем одна
// атомарная операция создания-и-привязки в службе метаданных. Если
// линия ушла вперёд, возвращается *ConflictError: нужно получить
// новую последнюю версию, пересчитать правки и повторить.
func (c *Client) Push(ctx context.Context, rev *catalog.Revision, level version.Level) (*catalog.Product, error) {
	baseline := rev.Baseline()

	groups, err := c.callerGroups(ctx)
	if err != nil {
		return nil, err
	}
	if baseline != nil && !baseline.Access.CanWrite(c.cfg.Principal, groups) {
		return nil, &AuthorizationError{Operation: "write", EntityID: baseline.ID}
	}

	if violations := c.Preflight(rev); len(violations) > 0 {
		return nil, &PreflightFailedError{Violations: violations}
	}

	snapshot := rev.Snapshot()
	var base catalog.Product
	baselineID := ""
	if baseline != nil {
		base = *baseline
		baselineID = baseline.ID
	}

	delta, err := diffengine.Diff(base, snapshot)
	if err != nil {
		return nil, err
	}

	// Загрузка содержимого добавленных и заменённых источников
	for slug, src := range delta.ChangedSources() {
		uploaded, err := c.uploadSource(ctx, src)
		if err != nil {
			return nil, err
		}
		snapshot.Sources[slug] = uploaded
	}

	if baseline == nil && snapshot.Access.Owner == "" {
		snapshot.Access.Owner = c.cfg.Principal
	}

	created, err := c.store.CreateProduct(ctx, snapshot, baselineID, level)
	if err != nil {
		return nil, err
	}
	pushesTotal.Inc()

	c.logger.Info("продукт опубликован",
		slog.String("product_id", created.ID),
		slog.String("version", created.Version.String()),
		slog.String("baseline_id", baselineID))

	return created, nil
}

// Diff вычисляет дельту ревизии против её базовой версии.
func (c *Client) Diff(rev *catalog.Revision) (diffengine.Delta, error) {
	var base catalog.Product
	if rev.Baseline() != nil {
		base = *rev.Baseline()
	}
	return diffengine.Diff(base, rev.Snapshot())
}

// uploadSource загружает содержимое источника в объектное хранилище.
// Если под ключом уже лежит объект с тем же дайджестом, передача байт
// пропускается и обновляется только ссылка в метаданных.
func (c *Client) uploadSource(ctx context.Context, src catalog.Source) (catalog.Source, error) {
	// Уже загруженный источник (дайджест и ключ известны) передавать
	// не нужно
	if src.Realized() && src.StorageKey != "" && src.LocalPath == "" {
		return src, nil
	}
	if src.LocalPath == "" {
		return catalog.Source{}, fmt.Errorf("источник %q не имеет локального файла для загрузки", src.Slug)
	}

	digest, size, err := checksum.NewFromFile(src.LocalPath)
	if err != nil {
		return catalog.Source{}, fmt.Errorf("ошибка вычисления дайджеста источника %q: %w", src.Slug, err)
	}

	// Ключ выводится из дайджеста: одинаковое содержимое получает
	// одинаковый ключ, старые версии продолжают ссылаться на свои
	// объекты
	key := fmt.Sprintf("content/%s/%s", digest.Hex, src.Name)

	exists, err := c.objects.Exists(ctx, digest.String(), key)
	if err != nil {
		return catalog.Source{}, fmt.Errorf("ошибка проверки наличия объекта %s: %w", key, err)
	}
	if !exists {
		f, err := os.Open(src.LocalPath)
		if err != nil {
			return catalog.Source{}, fmt.Errorf("ошибка открытия источника %q: %w", src.Slug, err)
		}
		err = c.objects.Put(ctx, key, digest.String(), size, f)
		f.Close()
		if err != nil {
			return catalog.Source{}, fmt.Errorf("ошибка загрузки источника %q: %w", src.Slug, err)
		}
		uploadsTotal.Inc()
	} else {
		c.logger.Debug("содержимое уже в хранилище, передача пропущена",
			slog.String("slug", src.Slug),
			slog.String("digest", digest.String()))
	}

	src.Digest = digest
	src.Size = size
	src.StorageKey = key
	return src, nil
}
