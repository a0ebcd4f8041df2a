package logx

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	colorReset      = "\033[0m"
	colorRed        = "\033[31m"
	colorCyan       = "\033[36m"
	colorGray       = "\033[90m"
	colorWhite      = "\033[97m"
	colorBoldRed    = "\033[1;31m"
	colorBoldYellow = "\033[1;33m"
	colorBoldCyan   = "\033[1;36m"
	colorBoldGreen  = "\033[1;32m"
)

type record struct {
	Level     Level
	Message   string
	Fields    Fields
	Error     error
	Timestamp time.Time
	Caller    string
}

type formatter interface {
	format(r *record) ([]byte, error)
}

func timestamp(t time.Time, layout string) string {
	switch layout {
	case "unix":
		return strconv.FormatInt(t.Unix(), 10)
	case "unixmilli":
		return strconv.FormatInt(t.UnixMilli(), 10)
	default:
		return t.Format(layout)
	}
}

func sortedKeys(f Fields) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// consoleFormatter renders one human-readable line per entry, fields sorted.
type consoleFormatter struct {
	config *Config
}

func (f consoleFormatter) paint(b *strings.Builder, color, s string) {
	if f.config.EnableColors {
		b.WriteString(color)
		b.WriteString(s)
		b.WriteString(colorReset)
		return
	}
	b.WriteString(s)
}

func (f consoleFormatter) format(r *record) ([]byte, error) {
	var b strings.Builder

	if f.config.EnableTimestamp {
		f.paint(&b, colorGray, timestamp(r.Timestamp, f.config.TimeFormat))
		b.WriteByte(' ')
	}

	f.paint(&b, levelColor(r.Level), fmt.Sprintf("[%-5s]", r.Level.String()))
	b.WriteByte(' ')

	if f.config.EnableCaller && r.Caller != "" {
		f.paint(&b, colorGray, "["+r.Caller+"]")
		b.WriteByte(' ')
	}

	f.paint(&b, colorWhite, r.Message)

	if len(r.Fields) > 0 {
		parts := make([]string, 0, len(r.Fields))
		for _, k := range sortedKeys(r.Fields) {
			parts = append(parts, fmt.Sprintf("%s=%v", k, r.Fields[k]))
		}
		b.WriteByte(' ')
		f.paint(&b, colorCyan, strings.Join(parts, " "))
	}

	if r.Error != nil {
		b.WriteString("\n")
		f.paint(&b, colorRed, "  ╰─→ error: "+r.Error.Error())
	}

	b.WriteString("\n")
	return []byte(b.String()), nil
}

func levelColor(l Level) string {
	switch l {
	case LevelDebug:
		return colorBoldCyan
	case LevelInfo:
		return colorBoldGreen
	case LevelWarn:
		return colorBoldYellow
	case LevelError, LevelFatal:
		return colorBoldRed
	default:
		return colorGray
	}
}

// jsonFormatter renders one JSON object per line.
type jsonFormatter struct {
	config *Config
}

func (f jsonFormatter) format(r *record) ([]byte, error) {
	data := make(map[string]interface{}, len(r.Fields)+5)
	for k, v := range r.Fields {
		data[k] = v
	}

	data["level"] = r.Level.String()
	data["message"] = r.Message

	if f.config.EnableTimestamp {
		switch f.config.TimeFormat {
		case "unix":
			data["timestamp"] = r.Timestamp.Unix()
		case "unixmilli":
			data["timestamp"] = r.Timestamp.UnixMilli()
		default:
			data["timestamp"] = r.Timestamp.Format(time.RFC3339Nano)
		}
	}
	if f.config.EnableCaller && r.Caller != "" {
		data["caller"] = r.Caller
	}
	if r.Error != nil {
		data["error"] = r.Error.Error()
	}

	out, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
