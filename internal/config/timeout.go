package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Timeout bounds a single encode. The zero value means no timeout; Auto
// derives a limit from the source size and the machine's speed.
type Timeout struct {
	Duration time.Duration
	Auto     bool
}

var timeoutRe = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*(ms|[smhd]?)$`)

// ParseTimeout accepts a positive number with an optional unit of ms, s, m,
// h or d (seconds when omitted), or the word "auto". Blank input means no
// timeout.
func ParseTimeout(s string) (Timeout, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timeout{}, nil
	}
	if strings.EqualFold(s, "auto") {
		return Timeout{Auto: true}, nil
	}
	m := timeoutRe.FindStringSubmatch(s)
	if m == nil {
		return Timeout{}, fmt.Errorf("invalid timeout %q: want a number and unit (ms/s/m/h/d), e.g. 4h, 30m, 500ms", s)
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Timeout{}, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	if n <= 0 {
		return Timeout{}, fmt.Errorf("timeout must be positive, got %q", s)
	}

	unit := time.Second
	switch strings.ToLower(m[2]) {
	case "ms":
		unit = time.Millisecond
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	return Timeout{Duration: time.Duration(n * float64(unit))}, nil
}

// FormatTimeout renders d in its largest whole unit with one decimal,
// e.g. 90s becomes "1.5m".
func FormatTimeout(d time.Duration) string {
	if d <= 0 {
		return "no timeout"
	}
	units := []struct {
		size time.Duration
		name string
	}{
		{24 * time.Hour, "d"},
		{time.Hour, "h"},
		{time.Minute, "m"},
		{time.Second, "s"},
	}
	for _, u := range units {
		if d >= u.size {
			return fmt.Sprintf("%.1f%s", float64(d)/float64(u.size), u.name)
		}
	}
	return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
}

func (t Timeout) String() string {
	if t.Auto {
		return "auto"
	}
	return FormatTimeout(t.Duration)
}

// Set implements flag.Value.
func (t *Timeout) Set(s string) error {
	v, err := ParseTimeout(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t *Timeout) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return t.Set(s)
}
