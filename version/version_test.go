package version

import "testing"

// TestParse проверяет разбор строковых версий.
func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    Version
		wantErr bool
	}{
		{"1.0.0", Version{1, 0, 0}, false},
		{"2.13.7", Version{2, 13, 7}, false},
		{"0.0.1", Version{0, 0, 1}, false},
		{"1.0", Version{}, true},
		{"1", Version{}, true},
		{"v1.0.0", Version{}, true},
		{"1.0.0-rc1", Version{}, true},
		{"1.0.0+build5", Version{}, true},
		{"", Version{}, true},
		{"a.b.c", Version{}, true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Parse(%q): ожидалась ошибка", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q): неожиданная ошибка: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q): ожидалось %v, получено %v", tt.input, tt.want, got)
		}
	}
}

// TestBump проверяет повышение версии с обнулением младших компонент.
func TestBump(t *testing.T) {
	base := Version{Major: 1, Minor: 2, Patch: 3}

	tests := []struct {
		level Level
		want  Version
	}{
		{LevelMajor, Version{2, 0, 0}},
		{LevelMinor, Version{1, 3, 0}},
		{LevelPatch, Version{1, 2, 4}},
	}

	for _, tt := range tests {
		got, err := base.Bump(tt.level)
		if err != nil {
			t.Errorf("Bump(%s): неожиданная ошибка: %v", tt.level, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Bump(%s): ожидалось %s, получено %s", tt.level, tt.want, got)
		}
	}

	if _, err := base.Bump(Level("epoch")); err == nil {
		t.Error("Bump с неизвестным уровнем должен возвращать ошибку")
	}
}

// TestParseLevel проверяет разбор уровня повышения.
func TestParseLevel(t *testing.T) {
	for _, valid := range []string{"major", "minor", "patch"} {
		if _, err := ParseLevel(valid); err != nil {
			t.Errorf("ParseLevel(%q): неожиданная ошибка: %v", valid, err)
		}
	}
	if _, err := ParseLevel("MAJOR"); err == nil {
		t.Error("ParseLevel должен быть чувствителен к регистру")
	}
	if _, err := ParseLevel(""); err == nil {
		t.Error("ParseLevel пустой строки должен возвращать ошибку")
	}
}

// TestCompare проверяет упорядочивание версий.
func TestCompare(t *testing.T) {
	tests := []struct {
		a, b Version
		want int
	}{
		{Version{1, 0, 0}, Version{1, 0, 0}, 0},
		{Version{1, 0, 0}, Version{2, 0, 0}, -1},
		{Version{1, 10, 0}, Version{1, 2, 0}, 1},
		{Version{1, 0, 9}, Version{1, 0, 10}, -1},
	}

	for _, tt := range tests {
		if got := tt.a.Compare(tt.b); got != tt.want {
			t.Errorf("Compare(%s, %s): ожидалось %d, получено %d", tt.a, tt.b, tt.want, got)
		}
	}

	if !(Version{1, 0, 0}).Less(Version{1, 0, 1}) {
		t.Error("1.0.0 должна быть меньше 1.0.1")
	}
}

// TestInitial проверяет начальную версию продукта.
func TestInitial(t *testing.T) {
	if Initial.String() != "1.0.0" {
		t.Errorf("начальная версия: ожидалось 1.0.0, получено %s", Initial)
	}
}

// TestTextRoundtrip проверяет Marshal/UnmarshalText.
func TestTextRoundtrip(t *testing.T) {
	original := Version{3, 1, 4}

	text, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() вернул ошибку: %v", err)
	}

	var restored Version
	if err := restored.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText() вернул ошибку: %v", err)
	}
	if restored != original {
		t.Errorf("roundtrip не совпадает: %s != %s", restored, original)
	}

	if err := restored.UnmarshalText([]byte("not-a-version")); err == nil {
		t.Error("UnmarshalText некорректной версии должен возвращать ошибку")
	}
}
