package stock

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Integrated graphics markers; machines with these GPU values get the
// "integrated" suffix instead of a GPU part in their composed name.
var integratedGPU = map[string]bool{"核显": true, "核显主机": true}

const integratedSuffix = "核显主机"

// ComposeName builds a whole-machine name from its parts.
func ComposeName(spec ProductSpec) string {
	var parts []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	add(spec.CPU)
	add(spec.RAM)
	add(spec.Disk)
	gpu := strings.TrimSpace(spec.GPU)
	if gpu != "" && !integratedGPU[gpu] {
		add(gpu)
		add(spec.Note)
	} else {
		add(spec.Note)
		if strings.TrimSpace(spec.CPU) != "" {
			add(integratedSuffix)
		}
	}
	return strings.Join(parts, " ")
}

// monthCode renders months 1-9 as digits and 10-12 as A-C.
func monthCode(m time.Month) string {
	switch m {
	case time.October:
		return "A"
	case time.November:
		return "B"
	case time.December:
		return "C"
	default:
		return fmt.Sprintf("%d", int(m))
	}
}

// FormatZencode renders YY M DD INITIALS CATEGORY SEQ, e.g. 26A16LWZJ3.
func FormatZencode(day time.Time, initials string, category Category, seq int64) string {
	return fmt.Sprintf("%02d%s%02d%s%s%d", day.Year()%100, monthCode(day.Month()), day.Day(), initials, category, seq)
}

// PlaceholderSerial renders <prefix><yymmdd><seq>.
func PlaceholderSerial(prefix string, day time.Time, seq int64) string {
	return fmt.Sprintf("%s%s%04d", prefix, day.Format("060102"), seq)
}

const (
	autoSerialPrefix     = "SN"
	deferredSerialPrefix = "TMP"
	maxSerialLen         = 64
)

// NormalizeSerial folds full-width forms, trims, and rejects empty,
// malformed or whitespace-bearing serials.
func NormalizeSerial(raw string) (string, error) {
	if !utf8.ValidString(raw) {
		return "", ErrInvalidSerial
	}
	s := strings.TrimSpace(width.Fold.String(norm.NFKC.String(raw)))
	if s == "" || len(s) > maxSerialLen {
		return "", ErrInvalidSerial
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == utf8.RuneError {
			return "", ErrInvalidSerial
		}
	}
	return s, nil
}

// NormalizeZencode applies the serial rules and upper-cases the code.
func NormalizeZencode(raw string) (string, error) {
	s, err := NormalizeSerial(raw)
	if err != nil {
		return "", ErrInvalidZencode
	}
	return strings.ToUpper(s), nil
}

// sequence scopes
func zencodeScope(c Category) string { return "zencode:" + string(c) }

func serialScope(prefix string) string { return "serial:" + prefix }
