// Пакет version — версии продуктов в формате major.minor.patch и
// правила их повышения.
//
// Версия повышается ровно на один уровень за ревизию: повышаемая
// компонента увеличивается на единицу, компоненты правее обнуляются.
// Строгое равенство формата major.minor.patch — никаких пререлизных
// суффиксов и метаданных сборки.
package version

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Level — уровень повышения версии.
type Level string

// Уровни повышения версии.
const (
	LevelMajor Level = "major"
	LevelMinor Level = "minor"
	LevelPatch Level = "patch"
)

// ParseLevel разбирает строковое представление уровня повышения.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelMajor, LevelMinor, LevelPatch:
		return Level(s), nil
	default:
		return "", fmt.Errorf("неизвестный уровень повышения версии: %q", s)
	}
}

// Version — версия продукта из трёх неотрицательных компонент.
type Version struct {
	Major uint64
	Minor uint64
	Patch uint64
}

// Initial — версия, присваиваемая продукту при первой публикации.
var Initial = Version{Major: 1, Minor: 0, Patch: 0}

// Parse разбирает строку "major.minor.patch".
// Пререлизные суффиксы и метаданные сборки не допускаются.
func Parse(s string) (Version, error) {
	sv, err := semver.StrictNewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("некорректная версия %q: %w", s, err)
	}
	if sv.Prerelease() != "" || sv.Metadata() != "" {
		return Version{}, fmt.Errorf("некорректная версия %q: допускается только формат major.minor.patch", s)
	}
	return Version{Major: sv.Major(), Minor: sv.Minor(), Patch: sv.Patch()}, nil
}

// String возвращает строковое представление "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Bump возвращает версию, повышенную на заданный уровень.
// Компоненты правее повышаемой обнуляются.
func (v Version) Bump(level Level) (Version, error) {
	switch level {
	case LevelMajor:
		return Version{Major: v.Major + 1}, nil
	case LevelMinor:
		return Version{Major: v.Major, Minor: v.Minor + 1}, nil
	case LevelPatch:
		return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}, nil
	default:
		return Version{}, fmt.Errorf("неизвестный уровень повышения версии: %q", level)
	}
}

// Compare возвращает -1, 0 или 1 при сравнении с other.
func (v Version) Compare(other Version) int {
	return v.toSemver().Compare(other.toSemver())
}

// Less возвращает true, если v строго меньше other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

func (v Version) toSemver() *semver.Version {
	return semver.New(v.Major, v.Minor, v.Patch, "", "")
}

// MarshalText сериализует версию в "major.minor.patch".
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText разбирает версию из текста.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
