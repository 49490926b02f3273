package diffengine

import (
	"errors"
	"testing"

	"github.com/bigkaa/prodstore/catalog"
	"github.com/bigkaa/prodstore/catalog/meta"
	"github.com/bigkaa/prodstore/checksum"
)

func baselineProduct() catalog.Product {
	return catalog.Product{
		ID:          "prod-1",
		Name:        "maps-dr1",
		Description: "набор карт первого релиза",
		Metadata: meta.MapSet{
			Pixelisation: meta.PixelisationHealpix,
			Telescope:    "SO",
			Frequency:    "090",
		},
		Sources: map[string]catalog.Source{
			"coadd": {
				Slug:   "coadd",
				Name:   "coadd.fits",
				Size:   2048,
				Digest: checksum.Digest{Algorithm: "xxh64", Hex: "1111111111111111"},
			},
			"mask": {
				Slug:   "mask",
				Name:   "mask.fits",
				Size:   512,
				Digest: checksum.Digest{Algorithm: "xxh64", Hex: "2222222222222222"},
			},
		},
	}
}

// TestDiff_Identity проверяет, что diff(X, X) пуст.
func TestDiff_Identity(t *testing.T) {
	p := baselineProduct()
	d, err := Diff(p, p)
	if err != nil {
		t.Fatalf("Diff() вернул ошибку: %v", err)
	}
	if !d.Empty() {
		t.Errorf("дельта идентичных состояний должна быть пустой: %+v", d)
	}
}

// TestDiff_Sparse проверяет разреженность дельты: присутствуют только
// изменённые поля.
func TestDiff_Sparse(t *testing.T) {
	base := baselineProduct()
	cand := baselineProduct()
	cand.Description = "обновлённое описание"

	d, err := Diff(base, cand)
	if err != nil {
		t.Fatalf("Diff() вернул ошибку: %v", err)
	}

	if d.Description == nil {
		t.Fatal("изменение описания должно попасть в дельту")
	}
	if d.Description.Old != base.Description || d.Description.New != cand.Description {
		t.Errorf("пара (old, new) не совпадает: %+v", d.Description)
	}
	if d.Name != nil {
		t.Error("неизменённое имя не должно попадать в дельту")
	}
	if len(d.Metadata) != 0 {
		t.Errorf("неизменённые метаданные не должны попадать в дельту: %v", d.Metadata)
	}
	if len(d.Added)+len(d.Removed)+len(d.Replaced) != 0 {
		t.Error("неизменённые источники не должны попадать в дельту")
	}
}

// TestDiff_SourcePartition проверяет разбиение источников на
// добавленные, удалённые и заменённые.
func TestDiff_SourcePartition(t *testing.T) {
	base := baselineProduct()
	cand := baselineProduct()

	// split — новый, mask — удалён, coadd — заменён по содержимому
	cand.Sources["split"] = catalog.Source{
		Slug: "split", Name: "split.fits", LocalPath: "/tmp/split.fits",
	}
	delete(cand.Sources, "mask")
	coadd := cand.Sources["coadd"]
	coadd.Digest = checksum.Digest{Algorithm: "xxh64", Hex: "3333333333333333"}
	cand.Sources["coadd"] = coadd

	d, err := Diff(base, cand)
	if err != nil {
		t.Fatalf("Diff() вернул ошибку: %v", err)
	}

	if len(d.Added) != 1 {
		t.Errorf("ожидался один добавленный источник, получено %v", d.Added)
	} else if _, ok := d.Added["split"]; !ok {
		t.Errorf("split должен быть в добавленных: %v", d.Added)
	}
	if len(d.Removed) != 1 {
		t.Errorf("ожидался один удалённый источник, получено %v", d.Removed)
	} else if _, ok := d.Removed["mask"]; !ok {
		t.Errorf("mask должен быть в удалённых: %v", d.Removed)
	}
	if len(d.Replaced) != 1 {
		t.Errorf("ожидался один заменённый источник, получено %v", d.Replaced)
	} else if got := d.Replaced["coadd"]; !got.Digest.Equal(coadd.Digest) {
		t.Errorf("заменённый источник должен нести новое состояние: %+v", got)
	}

	changed := d.ChangedSources()
	if len(changed) != 2 {
		t.Errorf("передачи содержимого требуют 2 источника, получено %v", changed)
	}
}

// TestDiff_MetadataFields проверяет пополевое сравнение метаданных.
func TestDiff_MetadataFields(t *testing.T) {
	base := baselineProduct()
	cand := baselineProduct()
	cand.Metadata = meta.MapSet{
		Pixelisation: meta.PixelisationHealpix,
		Telescope:    "SO",
		Frequency:    "150", // изменено
		Release:      "dr2", // добавлено
	}

	d, err := Diff(base, cand)
	if err != nil {
		t.Fatalf("Diff() вернул ошибку: %v", err)
	}

	if len(d.Metadata) != 2 {
		t.Fatalf("ожидалось 2 изменённых поля, получено %v", d.Metadata)
	}
	freq, ok := d.Metadata["frequency"]
	if !ok {
		t.Fatal("поле frequency должно быть в дельте")
	}
	if string(freq.Old) != `"090"` || string(freq.New) != `"150"` {
		t.Errorf("пара (old, new) поля frequency не совпадает: %s -> %s", freq.Old, freq.New)
	}
	release, ok := d.Metadata["release"]
	if !ok {
		t.Fatal("поле release должно быть в дельте")
	}
	if release.Old != nil {
		t.Errorf("добавленное поле не должно иметь старого значения: %s", release.Old)
	}
}

// TestDiff_KindChange проверяет отказ при смене вида метаданных.
func TestDiff_KindChange(t *testing.T) {
	base := baselineProduct()
	cand := baselineProduct()
	cand.Metadata = meta.Simple{}

	_, err := Diff(base, cand)
	if !errors.Is(err, catalog.ErrKindChanged) {
		t.Errorf("смена вида метаданных должна возвращать ErrKindChanged, получено %v", err)
	}
}

// TestDiff_EmptyBaseline проверяет дельту нового продукта.
func TestDiff_EmptyBaseline(t *testing.T) {
	cand := baselineProduct()

	d, err := Diff(catalog.Product{}, cand)
	if err != nil {
		t.Fatalf("Diff() вернул ошибку: %v", err)
	}
	if len(d.Added) != len(cand.Sources) {
		t.Errorf("все источники нового продукта должны быть добавленными: %v", d.Added)
	}
	if len(d.Removed)+len(d.Replaced) != 0 {
		t.Error("у нового продукта не может быть удалённых или заменённых источников")
	}
}

// TestApply_EmptyBaselineRoundtrip проверяет восстановление нового
// продукта из дельты по пустой базе: дискриминатор вида переносится
// дельтой, и Apply возвращает типизированные метаданные кандидата.
func TestApply_EmptyBaselineRoundtrip(t *testing.T) {
	cand := baselineProduct()

	d, err := Diff(catalog.Product{}, cand)
	if err != nil {
		t.Fatalf("Diff() вернул ошибку: %v", err)
	}
	kind, ok := d.Metadata["metadata_type"]
	if !ok || string(kind.New) != `"mapset"` {
		t.Fatalf("дельта нового продукта должна нести вид метаданных: %v", d.Metadata)
	}

	applied, err := Apply(catalog.Product{}, d)
	if err != nil {
		t.Fatalf("Apply() по пустой базе вернул ошибку: %v", err)
	}

	appliedMeta, ok := applied.Metadata.(meta.MapSet)
	if !ok {
		t.Fatalf("ожидался вид MapSet, получено %T", applied.Metadata)
	}
	if appliedMeta.Telescope != "SO" || appliedMeta.Frequency != "090" {
		t.Errorf("метаданные после применения не совпали: %+v", appliedMeta)
	}
	if applied.Name != cand.Name || applied.Description != cand.Description {
		t.Errorf("скалярные поля не совпали: %+v", applied)
	}
	if len(applied.Sources) != len(cand.Sources) {
		t.Fatalf("множество источников не совпало: %v", applied.Sources)
	}

	again, err := Diff(applied, cand)
	if err != nil {
		t.Fatalf("повторный Diff() вернул ошибку: %v", err)
	}
	if !again.Empty() {
		t.Errorf("дельта после применения должна быть пустой: %+v", again)
	}
}

// TestApply_Roundtrip проверяет свойство
// Apply(base, Diff(base, cand)) == cand.
func TestApply_Roundtrip(t *testing.T) {
	base := baselineProduct()
	cand := baselineProduct()
	cand.Name = "maps-dr2"
	cand.Description = "второй релиз"
	cand.Metadata = meta.MapSet{
		Pixelisation: meta.PixelisationHealpix,
		Telescope:    "SO",
		Frequency:    "150",
		Release:      "dr2",
	}
	cand.Sources["split"] = catalog.Source{Slug: "split", Name: "split.fits", Size: 300}
	delete(cand.Sources, "mask")

	d, err := Diff(base, cand)
	if err != nil {
		t.Fatalf("Diff() вернул ошибку: %v", err)
	}

	applied, err := Apply(base, d)
	if err != nil {
		t.Fatalf("Apply() вернул ошибку: %v", err)
	}

	if applied.Name != cand.Name || applied.Description != cand.Description {
		t.Errorf("скалярные поля не совпали: %+v", applied)
	}
	appliedMeta, ok := applied.Metadata.(meta.MapSet)
	if !ok {
		t.Fatalf("ожидался вид MapSet, получено %T", applied.Metadata)
	}
	if appliedMeta.Frequency != "150" || appliedMeta.Release != "dr2" || appliedMeta.Telescope != "SO" {
		t.Errorf("метаданные после применения не совпали: %+v", appliedMeta)
	}
	if len(applied.Sources) != len(cand.Sources) {
		t.Fatalf("множество источников не совпало: %v", applied.Sources)
	}
	for slug, want := range cand.Sources {
		got, ok := applied.Sources[slug]
		if !ok || !sourceEqual(got, want) {
			t.Errorf("источник %q не совпал: %+v != %+v", slug, got, want)
		}
	}

	// База не должна измениться
	if _, ok := base.Sources["mask"]; !ok {
		t.Error("Apply не должен изменять базовый продукт")
	}

	// Повторный diff после применения пуст
	again, err := Diff(applied, cand)
	if err != nil {
		t.Fatalf("повторный Diff() вернул ошибку: %v", err)
	}
	if !again.Empty() {
		t.Errorf("дельта после применения должна быть пустой: %+v", again)
	}
}
