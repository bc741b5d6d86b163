package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FilterHour is an optional local hour in [0, 23]. The zero value is
// disabled.
type FilterHour struct {
	hour    int
	enabled bool
}

// ParseFilterHour accepts "0".."23". Empty, "off", "none", "null" and "-1"
// disable the filter.
func ParseFilterHour(s string) (FilterHour, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "off", "none", "null", "-1":
		return FilterHour{}, nil
	}
	h, err := strconv.Atoi(s)
	if err != nil {
		return FilterHour{}, fmt.Errorf("invalid filter hour %q", s)
	}
	if h < 0 || h > 23 {
		return FilterHour{}, fmt.Errorf("filter hour %d out of range 0-23", h)
	}
	return FilterHour{hour: h, enabled: true}, nil
}

// Enabled reports whether filtering is on.
func (f FilterHour) Enabled() bool { return f.enabled }

// Ptr returns the hour, or nil when disabled.
func (f FilterHour) Ptr() *int {
	if !f.enabled {
		return nil
	}
	h := f.hour
	return &h
}

func (f FilterHour) String() string {
	if !f.enabled {
		return "off"
	}
	return strconv.Itoa(f.hour)
}

func (f *FilterHour) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: event_filter_hour must be a scalar", node.Line)
	}
	if node.Tag == "!!null" {
		*f = FilterHour{}
		return nil
	}
	parsed, err := ParseFilterHour(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*f = parsed
	return nil
}

func (f FilterHour) MarshalYAML() (any, error) {
	if !f.enabled {
		return nil, nil
	}
	return f.hour, nil
}

func (f FilterHour) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Ptr())
}
