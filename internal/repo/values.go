package repo

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/ppdb-chunks/internal/domain"
)

// Assignment — пара колонка/значение для INSERT или UPDATE.
type Assignment struct {
	Column string
	Value  any
}

// columnConverters — колонки, которые можно менять через track_chunk,
// и функции приведения значений из JSON.
var columnConverters = map[string]func(any) (any, error){
	"status":           convertStatus,
	"directory":        convertString,
	"unique_id":        convertUUID,
	"last_update_time": convertTime,
	"exported_at":      convertTime,
}

// BuildAssignments превращает values из сообщения в список присваиваний.
//
// Колонки вне белого списка отклоняются с ErrUnknownColumn.
// При смене статуса на staged/promoted добавляется соответствующая
// временная метка. Результат отсортирован по имени колонки.
func BuildAssignments(values map[string]any, now time.Time) ([]Assignment, error) {
	out := make([]Assignment, 0, len(values)+1)

	for col, raw := range values {
		conv, ok := columnConverters[col]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
		}
		v, err := conv(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, col, err)
		}
		out = append(out, Assignment{Column: col, Value: v})
	}

	if status, ok := statusOf(out); ok {
		switch status {
		case domain.ChunkStatusStaged:
			out = append(out, Assignment{Column: "staged_at", Value: now})
		case domain.ChunkStatusPromoted:
			out = append(out, Assignment{Column: "promoted_at", Value: now})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Column < out[j].Column })
	return out, nil
}

// statusOf возвращает статус из списка присваиваний, если он есть.
func statusOf(assignments []Assignment) (domain.ChunkStatus, bool) {
	for _, a := range assignments {
		if a.Column == "status" {
			return domain.ChunkStatus(a.Value.(string)), true
		}
	}
	return "", false
}

func convertStatus(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected string, got %T", v)
	}
	status, err := domain.ParseChunkStatus(s)
	if err != nil {
		return nil, err
	}
	return string(status), nil
}

func convertString(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

func convertUUID(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected string, got %T", v)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return id, nil
}

// convertTime принимает RFC3339-строку или unix-время в секундах.
func convertTime(v any) (any, error) {
	switch t := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return nil, err
		}
		return parsed.UTC(), nil
	case float64:
		return unixSeconds(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return unixSeconds(f), nil
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case int:
		return time.Unix(int64(t), 0).UTC(), nil
	default:
		return nil, fmt.Errorf("expected RFC3339 string or unix seconds, got %T", v)
	}
}

func unixSeconds(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
