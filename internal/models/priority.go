package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Priority is stored and emitted as the level number in text form.
type Priority string

const (
	PriorityLow    Priority = "1"
	PriorityMedium Priority = "2"
	PriorityHigh   Priority = "3"
	PriorityUrgent Priority = "4"
)

var priorityNames = map[string]Priority{
	"low":    PriorityLow,
	"medium": PriorityMedium,
	"high":   PriorityHigh,
	"urgent": PriorityUrgent,
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Name returns the level name, e.g. "high".
func (p Priority) Name() string {
	for name, v := range priorityNames {
		if v == p {
			return name
		}
	}
	return ""
}

// ParsePriority accepts a level number ("3") or a level name ("high").
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if p, ok := priorityNames[s]; ok {
		return p, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if p := Priority(strconv.Itoa(n)); p.Valid() {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid priority %q", s)
}

// UnmarshalJSON accepts a JSON number or a string.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var s string
	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return fmt.Errorf("invalid priority %v", v)
		}
		s = strconv.Itoa(int(v))
	case string:
		s = v
	default:
		return fmt.Errorf("invalid priority %s", string(data))
	}

	parsed, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
