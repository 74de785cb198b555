package simulation

import (
	"fmt"
	"strconv"
	"time"
)

// Params are the raw parameter values of a run, as produced by prompts,
// environment overrides or YAML defaults.
type Params map[string]interface{}

// Int returns an integer parameter, def when absent.
func (p Params) Int(name string, def int) (int, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return def, nil
	}
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	case string:
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer", name)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%s must be an integer", name)
	}
}

// Float returns a numeric parameter, def when absent.
func (p Params) Float(name string, def float64) (float64, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return def, nil
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a number", name)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%s must be a number", name)
	}
}

// Duration returns a duration parameter, def when absent. Plain numbers
// are read as seconds.
func (p Params) Duration(name string, def time.Duration) (time.Duration, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return def, nil
	}
	switch val := v.(type) {
	case time.Duration:
		return val, nil
	case float64:
		return time.Duration(val * float64(time.Second)), nil
	case int:
		return time.Duration(val) * time.Second, nil
	case string:
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("invalid %s format: %w", name, err)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("%s must be a duration", name)
	}
}

// String returns a string parameter, def when absent.
func (p Params) String(name, def string) string {
	v, ok := p[name]
	if !ok || v == nil {
		return def
	}
	return fmt.Sprintf("%v", v)
}

// Bool returns a boolean parameter, def when absent.
func (p Params) Bool(name string, def bool) (bool, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return def, nil
	}
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		return val == "true" || val == "1" || val == "yes", nil
	default:
		return false, fmt.Errorf("%s must be a boolean", name)
	}
}
