package browser

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type Kind string

const (
	CSS   Kind = "css"
	XPath Kind = "xpath"
)

// Selector способ найти элементы: CSS или XPath
type Selector struct {
	Kind  Kind
	Value string
}

func ByCSS(value string) Selector {
	return Selector{Kind: CSS, Value: value}
}

func ByXPath(value string) Selector {
	return Selector{Kind: XPath, Value: value}
}

// ParseSelector разбирает "css:..." / "xpath:..."; без префикса считаем CSS
func ParseSelector(raw string) (Selector, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Selector{}, fmt.Errorf("empty selector")
	}

	switch {
	case strings.HasPrefix(raw, "xpath:"):
		value := strings.TrimSpace(strings.TrimPrefix(raw, "xpath:"))
		if value == "" {
			return Selector{}, fmt.Errorf("empty xpath selector")
		}
		return ByXPath(value), nil
	case strings.HasPrefix(raw, "css:"):
		value := strings.TrimSpace(strings.TrimPrefix(raw, "css:"))
		if value == "" {
			return Selector{}, fmt.Errorf("empty css selector")
		}
		return ByCSS(value), nil
	case strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "(//"):
		return ByXPath(raw), nil
	default:
		return ByCSS(raw), nil
	}
}

func (s Selector) String() string {
	return string(s.Kind) + ":" + s.Value
}

func (s Selector) IsZero() bool {
	return s.Value == ""
}

func (s *Selector) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("selector must be a string: %w", err)
	}
	parsed, err := ParseSelector(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Selector) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}
