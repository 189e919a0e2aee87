package repository

import (
	"context"
	"reflect"
	"time"
)

// Fields - слабо типизированное содержимое документа.
type Fields map[string]any

type Document struct {
	ID     string
	Path   string
	Fields Fields
}

type Op string

const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

func ArrayContains(field string, value any) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: value}
}

// Write - частичное обновление одного документа внутри BatchWrite.
type Write struct {
	Path   string
	Fields Fields
}

type serverTimestamp struct{}

// ServerTimestamp заменяется хранилищем на его собственное время записи.
var ServerTimestamp any = serverTimestamp{}

// DocumentStore - управляемое хранилище документов, от которого зависит ядро.
type DocumentStore interface {
	QueryCollection(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	GetDocument(ctx context.Context, path string) (Document, error)
	// Subscribe вызывает onChange с полным текущим набором сразу и после каждого изменения коллекции.
	Subscribe(ctx context.Context, collection string, filters []Filter, onChange func([]Document)) (func(), error)
	// BatchWrite применяет все записи атомарно: либо все, либо ни одной.
	BatchWrite(ctx context.Context, writes []Write) error
	AddDocument(ctx context.Context, collection string, fields Fields) (string, error)
	SetDocument(ctx context.Context, path string, fields Fields) error
	UpdateDocument(ctx context.Context, path string, fields Fields) error
	DeleteDocument(ctx context.Context, path string) error
	HealthCheck(ctx context.Context) error
}

// ResolveTimestamps подставляет now вместо ServerTimestamp.
func ResolveTimestamps(fields Fields, now time.Time) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		if _, ok := v.(serverTimestamp); ok {
			out[k] = now
			continue
		}
		out[k] = v
	}
	return out
}

// Match проверяет документ фильтрами так же, как это делает хранилище.
func Match(fields Fields, filters []Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok {
			return false
		}
		switch f.Op {
		case OpEqual:
			if !equalValues(v, f.Value) {
				return false
			}
		case OpArrayContains:
			if !containsValue(v, f.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	// именованные строковые типы (task.Status и т.п.) сравниваются как строки
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.IsValid() && vb.IsValid() && va.Kind() == reflect.String && vb.Kind() == reflect.String {
		return va.String() == vb.String()
	}
	if (va.IsValid() && !va.Type().Comparable()) || (vb.IsValid() && !vb.Type().Comparable()) {
		return false
	}
	return a == b
}

func containsValue(list, value any) bool {
	switch items := list.(type) {
	case []string:
		for _, it := range items {
			if equalValues(it, value) {
				return true
			}
		}
	case []any:
		for _, it := range items {
			if equalValues(it, value) {
				return true
			}
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
