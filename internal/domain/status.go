package domain

import "fmt"

// ChunkStatus — статус replica chunk в трекинговой БД.
//
// Жизненный цикл:
//
//	EXPORTED → UPLOADED → STAGED → PROMOTED
//	         ↘          ↘        ↘
//	                 FAILED
//
// PROMOTED — терминальный статус, из него переходов нет.
type ChunkStatus string

const (
	// ChunkStatusExported — chunk выгружен из APDB в локальные Parquet-файлы.
	ChunkStatusExported ChunkStatus = "exported"

	// ChunkStatusUploaded — файлы chunk загружены в bucket.
	ChunkStatusUploaded ChunkStatus = "uploaded"

	// ChunkStatusStaged — данные загружены в staging-таблицы хранилища.
	ChunkStatusStaged ChunkStatus = "staged"

	// ChunkStatusPromoted — данные перенесены из staging в production-таблицы.
	ChunkStatusPromoted ChunkStatus = "promoted"

	// ChunkStatusFailed — обработка chunk завершилась ошибкой.
	ChunkStatusFailed ChunkStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный.
func (s ChunkStatus) IsTerminal() bool {
	return s == ChunkStatusPromoted
}

// IsValid проверяет, что статус известен.
func (s ChunkStatus) IsValid() bool {
	switch s {
	case ChunkStatusExported, ChunkStatusUploaded, ChunkStatusStaged,
		ChunkStatusPromoted, ChunkStatusFailed:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление ChunkStatus.
func (s ChunkStatus) String() string {
	return string(s)
}

// order — позиция статуса в основной цепочке.
func (s ChunkStatus) order() int {
	switch s {
	case ChunkStatusExported:
		return 1
	case ChunkStatusUploaded:
		return 2
	case ChunkStatusStaged:
		return 3
	case ChunkStatusPromoted:
		return 4
	default:
		return 0
	}
}

// CanTransition проверяет допустимость перехода from → to.
//
// Разрешено:
//   - движение вперёд по цепочке (можно перескакивать шаги, например
//     exported → staged, если статус uploaded не был записан);
//   - повтор текущего статуса (идемпотентные повторные сообщения);
//   - переход в FAILED из любого нетерминального статуса;
//   - перезапуск FAILED chunk с любого шага, кроме PROMOTED.
func CanTransition(from, to ChunkStatus) bool {
	if !from.IsValid() || !to.IsValid() {
		return false
	}
	if from.IsTerminal() {
		return from == to
	}
	if from == to {
		return true
	}
	if to == ChunkStatusFailed {
		return true
	}
	if from == ChunkStatusFailed {
		return to != ChunkStatusPromoted
	}
	return to.order() > from.order()
}

// ParseChunkStatus парсит строку в ChunkStatus.
func ParseChunkStatus(s string) (ChunkStatus, error) {
	status := ChunkStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}
