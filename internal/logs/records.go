package logs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"racefeed/internal/logging"
)

// Record is one decoded JSON log line.
type Record struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Fields  map[string]any
}

// ParseRecord decodes a line written by the JSON handler.
func ParseRecord(line string) (Record, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return Record{}, false
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Record{}, false
	}

	rec := Record{Fields: make(map[string]any, len(raw))}
	for key, value := range raw {
		switch key {
		case slog.TimeKey:
			if s, ok := value.(string); ok {
				rec.Time, _ = time.Parse(time.RFC3339Nano, s)
			}
		case slog.LevelKey:
			if s, ok := value.(string); ok {
				_ = rec.Level.UnmarshalText([]byte(s))
			}
		case slog.MessageKey:
			rec.Message, _ = value.(string)
		default:
			rec.Fields[key] = value
		}
	}
	return rec, true
}

// String renders a field as text; JSON numbers print without exponent.
func (r Record) String(key string) string {
	switch v := r.Fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Filter selects records. Zero fields match everything.
type Filter struct {
	Platform       string
	ScrapedEventID int64
	CorrelationID  string
	MinLevel       slog.Level
}

// Match reports whether a raw line passes the filter. Lines that are not JSON
// records only pass an empty filter.
func (f Filter) Match(line string) bool {
	rec, ok := ParseRecord(line)
	if !ok {
		return f == Filter{}
	}
	return f.MatchRecord(rec)
}

// MatchRecord reports whether rec passes the filter.
func (f Filter) MatchRecord(rec Record) bool {
	if rec.Level < f.MinLevel {
		return false
	}
	if f.Platform != "" && !strings.EqualFold(rec.String(logging.FieldPlatform), f.Platform) {
		return false
	}
	if f.ScrapedEventID != 0 && rec.String(logging.FieldScrapedEventID) != strconv.FormatInt(f.ScrapedEventID, 10) {
		return false
	}
	if f.CorrelationID != "" && !strings.HasPrefix(rec.String(logging.FieldCorrelationID), f.CorrelationID) {
		return false
	}
	return true
}

// Format renders a record as one console line: time, level, message, then
// fields in key order.
func Format(rec Record) string {
	var b strings.Builder
	if !rec.Time.IsZero() {
		b.WriteString(rec.Time.Local().Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s %s", rec.Level.String(), rec.Message)

	keys := make([]string, 0, len(rec.Fields))
	for key := range rec.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := rec.String(key)
		if strings.ContainsAny(value, " \t") {
			value = strconv.Quote(value)
		}
		fmt.Fprintf(&b, " %s=%s", key, value)
	}
	return b.String()
}
