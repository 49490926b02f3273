package meta

import (
	"encoding/json"
	"strings"
	"testing"
)

// TestEncodeDecode_Roundtrip проверяет сериализацию всех видов метаданных.
func TestEncodeDecode_Roundtrip(t *testing.T) {
	tests := []struct {
		name string
		m    Metadata
	}{
		{"simple", Simple{}},
		{"beam", Beam{Telescope: "ACT", Instrument: "pa5", Wafer: "w17", Frequency: 150}},
		{"mapset", MapSet{
			Pixelisation: PixelisationHealpix,
			Telescope:    "SO",
			Release:      "dr1",
			Frequency:    "090",
			Tags:         []string{"night", "deep"},
		}},
		{"numeric", Numeric{Value: 2.725, Units: "K"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.m)
			if err != nil {
				t.Fatalf("Encode() вернул ошибку: %v", err)
			}

			// Дискриминатор обязан присутствовать
			var env struct {
				Kind string `json:"metadata_type"`
			}
			if err := json.Unmarshal(data, &env); err != nil {
				t.Fatalf("ошибка разбора конверта: %v", err)
			}
			if env.Kind != tt.m.Kind() {
				t.Errorf("дискриминатор: ожидалось %q, получено %q", tt.m.Kind(), env.Kind)
			}

			restored, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode() вернул ошибку: %v", err)
			}
			if restored.Kind() != tt.m.Kind() {
				t.Errorf("вид после roundtrip: ожидалось %q, получено %q", tt.m.Kind(), restored.Kind())
			}

			again, err := Encode(restored)
			if err != nil {
				t.Fatalf("повторный Encode() вернул ошибку: %v", err)
			}
			if string(again) != string(data) {
				t.Errorf("roundtrip не совпадает:\n%s\n%s", data, again)
			}
		})
	}
}

// TestDecode_UnknownKind проверяет отказ на неизвестном дискриминаторе.
func TestDecode_UnknownKind(t *testing.T) {
	_, err := Decode([]byte(`{"metadata_type":"hologram"}`))
	if err == nil {
		t.Fatal("ожидалась ошибка для неизвестного вида метаданных")
	}
	if !strings.Contains(err.Error(), "hologram") {
		t.Errorf("ошибка должна называть неизвестный вид: %v", err)
	}
}

// TestDecode_MissingKind проверяет отказ при отсутствии дискриминатора.
func TestDecode_MissingKind(t *testing.T) {
	if _, err := Decode([]byte(`{"value":1}`)); err == nil {
		t.Error("ожидалась ошибка при отсутствии metadata_type")
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("ожидалась ошибка для некорректного JSON")
	}
}

// TestValidSlugs проверяет наборы допустимых слагов.
func TestValidSlugs(t *testing.T) {
	for _, m := range []Metadata{Simple{}, Beam{}, Numeric{}} {
		slugs := m.ValidSlugs()
		if len(slugs) != 1 || slugs[0] != "data" {
			t.Errorf("вид %q: ожидался единственный слаг data, получено %v", m.Kind(), slugs)
		}
	}

	ms := MapSet{Pixelisation: PixelisationCartesian}
	for _, slug := range []string{"coadd", "split", "ivar_coadd", "xlink_split", "mask", "data"} {
		if !SlugValid(ms, slug) {
			t.Errorf("слаг %q должен быть допустим для mapset", slug)
		}
	}
	if SlugValid(ms, "weights") {
		t.Error("слаг weights не должен быть допустим для mapset")
	}
	if SlugValid(Simple{}, "coadd") {
		t.Error("слаг coadd не должен быть допустим для simple")
	}
}

// TestMapSet_Validate проверяет обязательность пиксельизации.
func TestMapSet_Validate(t *testing.T) {
	if err := (MapSet{Pixelisation: PixelisationHealpix}).Validate(); err != nil {
		t.Errorf("healpix должна проходить проверку: %v", err)
	}
	if err := (MapSet{Pixelisation: PixelisationCartesian}).Validate(); err != nil {
		t.Errorf("cartesian должна проходить проверку: %v", err)
	}
	if err := (MapSet{}).Validate(); err == nil {
		t.Error("пустая пиксельизация должна отклоняться")
	}
	if err := (MapSet{Pixelisation: "mercator"}).Validate(); err == nil {
		t.Error("неизвестная пиксельизация должна отклоняться")
	}
}

// TestBeam_Validate проверяет ограничение на частоту.
func TestBeam_Validate(t *testing.T) {
	if err := (Beam{Frequency: 90}).Validate(); err != nil {
		t.Errorf("неотрицательная частота должна проходить проверку: %v", err)
	}
	if err := (Beam{Frequency: -1}).Validate(); err == nil {
		t.Error("отрицательная частота должна отклоняться")
	}
}
