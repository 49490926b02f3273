// Правила доступа к сущностям каталога: пересечение групп вызывающего
// с группами читателей/писателей сущности.
package catalog

import "slices"

// AdminGroup — группа администраторов каталога.
// Членство в ней разрешает любую операцию.
const AdminGroup = "prodstore:admin"

// Access — данные для проверки доступа к сущности.
// Владелец всегда имеет полный доступ. Пустой список читателей
// означает отсутствие ограничений на чтение; запись всегда требует
// владения или членства в группе писателей.
type Access struct {
	// Owner — идентификатор владельца
	Owner string `json:"owner"`
	// Readers — группы с правом чтения
	Readers []string `json:"readers,omitempty"`
	// Writers — группы с правом записи
	Writers []string `json:"writers,omitempty"`
}

// CanRead сообщает, разрешено ли чтение вызывающему с данным набором
// групп. Чтение разрешено владельцу, администратору, членам групп из
// Readers, а также всем, если список читателей пуст.
func (a Access) CanRead(principal string, groups []string) bool {
	if a.isPrivileged(principal, groups) {
		return true
	}
	if len(a.Readers) == 0 {
		return true
	}
	return intersects(a.Readers, groups)
}

// CanWrite сообщает, разрешена ли запись вызывающему с данным набором
// групп. Запись разрешена владельцу, администратору и членам групп
// из Writers.
func (a Access) CanWrite(principal string, groups []string) bool {
	if a.isPrivileged(principal, groups) {
		return true
	}
	return intersects(a.Writers, groups)
}

// AddReader добавляет группу в список читателей без дубликатов.
func (a *Access) AddReader(group string) {
	if !slices.Contains(a.Readers, group) {
		a.Readers = append(a.Readers, group)
	}
}

// RemoveReader убирает группу из списка читателей.
func (a *Access) RemoveReader(group string) {
	a.Readers = slices.DeleteFunc(a.Readers, func(g string) bool { return g == group })
}

// AddWriter добавляет группу в список писателей без дубликатов.
func (a *Access) AddWriter(group string) {
	if !slices.Contains(a.Writers, group) {
		a.Writers = append(a.Writers, group)
	}
}

// RemoveWriter убирает группу из списка писателей.
func (a *Access) RemoveWriter(group string) {
	a.Writers = slices.DeleteFunc(a.Writers, func(g string) bool { return g == group })
}

func (a Access) isPrivileged(principal string, groups []string) bool {
	if principal != "" && principal == a.Owner {
		return true
	}
	return slices.Contains(groups, AdminGroup)
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}
