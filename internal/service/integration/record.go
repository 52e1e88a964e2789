package integration

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record - сырая запись из ответа провайдера
type Record map[string]interface{}

// lookup поддерживает пути через точку: "profile.firstName", "rooms.0.roomName"
func (r Record) lookup(key string) (interface{}, bool) {
	var cur interface{} = map[string]interface{}(r)
	for _, part := range strings.Split(key, ".") {
		if list, ok := cur.([]interface{}); ok {
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(list) {
				return nil, false
			}
			cur = list[idx]
			continue
		}
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// String возвращает первое непустое значение по списку ключей
func (r Record) String(keys ...string) string {
	for _, k := range keys {
		v, ok := r.lookup(k)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			if t != "" {
				return t
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case json.Number:
			return t.String()
		case bool:
			return strconv.FormatBool(t)
		}
	}
	return ""
}

func (r Record) Float(keys ...string) float64 {
	for _, k := range keys {
		v, ok := r.lookup(k)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			return t
		case string:
			if f, err := strconv.ParseFloat(t, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func (r Record) Int(keys ...string) int {
	return int(r.Float(keys...))
}

func (r Record) Bool(keys ...string) bool {
	for _, k := range keys {
		v, ok := r.lookup(k)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case bool:
			return t
		case string:
			b, _ := strconv.ParseBool(t)
			return b
		case float64:
			return t != 0
		}
	}
	return false
}

// Time понимает RFC3339 и даты вида 2006-01-02
func (r Record) Time(keys ...string) *time.Time {
	s := r.String(keys...)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// Object возвращает вложенный объект или пустую запись
func (r Record) Object(key string) Record {
	v, ok := r.lookup(key)
	if !ok {
		return Record{}
	}
	m, _ := asMap(v)
	return Record(m)
}

// List возвращает вложенный массив объектов
func (r Record) List(keys ...string) []Record {
	for _, k := range keys {
		v, ok := r.lookup(k)
		if !ok {
			continue
		}
		if list, ok := asRecords(v); ok {
			return list
		}
	}
	return nil
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case Record:
		return t, true
	}
	return nil, false
}

func asRecords(v interface{}) ([]Record, bool) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]Record, 0, len(items))
	for _, item := range items {
		m, ok := asMap(item)
		if !ok {
			// нестандартный элемент оставляем, чтобы он посчитался как ошибка преобразования
			out = append(out, Record{})
			continue
		}
		out = append(out, Record(m))
	}
	return out, true
}

// extractRecords достает список записей из ответа: массив или обертка {data: [...]}
func extractRecords(body []byte, keys ...string) ([]Record, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}

	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}

	if list, ok := asRecords(raw); ok {
		return list, nil
	}

	m, ok := asMap(raw)
	if !ok {
		return nil, fmt.Errorf("unexpected provider response shape %T", raw)
	}

	rec := Record(m)
	keys = append(keys, "data", "items", "results")
	if list := rec.List(keys...); list != nil {
		return list, nil
	}
	for _, k := range keys {
		if obj, ok := rec.lookup(k); ok {
			if single, ok := asMap(obj); ok {
				return []Record{single}, nil
			}
		}
	}
	return []Record{rec}, nil
}
