package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"

	"github.com/picogrid/hexfleet/pkg/simulation"
)

// EnvPrefix prefixes parameter overrides, e.g. HEXFLEET_ZOOM.
const EnvPrefix = "HEXFLEET_"

// SkipPrompts reports whether HEXFLEET_SKIP_PROMPTS asks for a non
// interactive run.
func SkipPrompts() bool {
	v, _ := strconv.ParseBool(os.Getenv(EnvPrefix + "SKIP_PROMPTS"))
	return v
}

// PromptForParameters prompts the user for simulation parameters
func PromptForParameters(params []simulation.Parameter) (map[string]interface{}, error) {
	if SkipPrompts() {
		return ResolveParameters(params)
	}

	result := make(map[string]interface{})

	for _, param := range params {
		value, err := promptForParameter(param)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", param.Name, err)
		}
		result[param.Name] = value
	}

	return result, nil
}

// ResolveParameters returns the value of every parameter from its
// environment override or its default, without prompting.
func ResolveParameters(params []simulation.Parameter) (map[string]interface{}, error) {
	result := make(map[string]interface{})
	for _, param := range params {
		value, ok, err := resolveParameter(param)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", param.Name, err)
		}
		if !ok {
			if param.Required {
				return nil, fmt.Errorf("required parameter %s not provided and no default available", param.Name)
			}
			continue
		}
		result[param.Name] = value
	}
	return result, nil
}

func envKey(param simulation.Parameter) string {
	return EnvPrefix + strings.ToUpper(param.Name)
}

// resolveParameter returns the environment override, else the default,
// parsed to the parameter type and range checked.
func resolveParameter(param simulation.Parameter) (interface{}, bool, error) {
	if envValue := os.Getenv(envKey(param)); envValue != "" {
		v, err := parseValue(envValue, param)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", envKey(param), err)
		}
		return v, true, checkRange(v, param)
	}
	if param.Default == nil {
		return nil, false, nil
	}
	v, err := parseValue(fmt.Sprint(param.Default), param)
	if err != nil {
		return nil, false, fmt.Errorf("default: %w", err)
	}
	return v, true, nil
}

// promptForParameter prompts for a single parameter
func promptForParameter(param simulation.Parameter) (interface{}, error) {
	// An environment override becomes the suggested value.
	if envValue := os.Getenv(envKey(param)); envValue != "" {
		if parsed, err := parseValue(envValue, param); err == nil {
			param.Default = parsed
		}
	}

	switch param.Type {
	case "integer":
		return promptInteger(param)
	case "float":
		return promptFloat(param)
	case "string":
		return promptString(param)
	case "boolean":
		return promptBoolean(param)
	case "duration":
		return promptDuration(param)
	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", param.Type)
	}
}

// parseValue parses a textual value according to the parameter type
func parseValue(value string, param simulation.Parameter) (interface{}, error) {
	switch param.Type {
	case "integer":
		return strconv.Atoi(value)
	case "float":
		return strconv.ParseFloat(value, 64)
	case "string":
		if len(param.Options) > 0 && !contains(param.Options, value) {
			return nil, fmt.Errorf("%q is not one of %s", value, strings.Join(param.Options, ", "))
		}
		return value, nil
	case "boolean":
		return strconv.ParseBool(value)
	case "duration":
		return time.ParseDuration(value)
	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", param.Type)
	}
}

func checkRange(v interface{}, param simulation.Parameter) error {
	switch val := v.(type) {
	case int:
		if param.Min != nil && val < toInt(param.Min) {
			return fmt.Errorf("value must be at least %d", toInt(param.Min))
		}
		if param.Max != nil && val > toInt(param.Max) {
			return fmt.Errorf("value must be at most %d", toInt(param.Max))
		}
	case float64:
		if param.Min != nil && val < toFloat64(param.Min) {
			return fmt.Errorf("value must be at least %g", toFloat64(param.Min))
		}
		if param.Max != nil && val > toFloat64(param.Max) {
			return fmt.Errorf("value must be at most %g", toFloat64(param.Max))
		}
	}
	return nil
}

func promptInteger(param simulation.Parameter) (int, error) {
	defaultStr := ""
	if param.Default != nil {
		defaultStr = strconv.Itoa(toInt(param.Default))
	}

	prompt := &survey.Input{
		Message: param.Description,
		Default: defaultStr,
	}

	var result string
	if err := survey.AskOne(prompt, &result, survey.WithValidator(survey.Required)); err != nil {
		return 0, err
	}

	value, err := strconv.Atoi(strings.TrimSpace(result))
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	if err := checkRange(value, param); err != nil {
		return 0, err
	}
	return value, nil
}

func promptFloat(param simulation.Parameter) (float64, error) {
	defaultStr := ""
	if param.Default != nil {
		defaultStr = fmt.Sprintf("%v", param.Default)
	}

	prompt := &survey.Input{
		Message: param.Description,
		Default: defaultStr,
	}

	var result string
	if err := survey.AskOne(prompt, &result, survey.WithValidator(survey.Required)); err != nil {
		return 0, err
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(result), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %w", err)
	}
	if err := checkRange(value, param); err != nil {
		return 0, err
	}
	return value, nil
}

func promptString(param simulation.Parameter) (string, error) {
	defaultStr := ""
	if param.Default != nil {
		defaultStr = fmt.Sprintf("%v", param.Default)
	}

	if len(param.Options) > 0 {
		return PromptSelect(param.Description, param.Options, defaultStr)
	}

	prompt := &survey.Input{
		Message: param.Description,
		Default: defaultStr,
	}

	var result string
	var validators []survey.Validator
	if param.Required {
		validators = append(validators, survey.Required)
	}

	if err := survey.AskOne(prompt, &result, survey.WithValidator(survey.ComposeValidators(validators...))); err != nil {
		return "", err
	}

	return result, nil
}

func promptBoolean(param simulation.Parameter) (bool, error) {
	defaultBool := false
	if param.Default != nil {
		switch v := param.Default.(type) {
		case bool:
			defaultBool = v
		case string:
			defaultBool = v == "true" || v == "yes" || v == "1"
		}
	}
	return PromptConfirm(param.Description, defaultBool)
}

func promptDuration(param simulation.Parameter) (time.Duration, error) {
	defaultStr := ""
	if param.Default != nil {
		defaultStr = fmt.Sprintf("%v", param.Default)
	}

	prompt := &survey.Input{
		Message: param.Description + " (e.g., 5m, 1h30m, 30s)",
		Default: defaultStr,
	}

	var result string
	if err := survey.AskOne(prompt, &result, survey.WithValidator(func(val interface{}) error {
		str, _ := val.(string)
		if _, err := time.ParseDuration(str); err != nil {
			return fmt.Errorf("invalid duration format (use formats like 5m, 1h30m, 30s)")
		}
		return nil
	})); err != nil {
		return 0, err
	}

	duration, err := time.ParseDuration(result)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return duration, nil
}

// PromptSelect asks the user to pick one of options.
func PromptSelect(message string, options []string, defaultOption string) (string, error) {
	prompt := &survey.Select{
		Message: message,
		Options: options,
	}
	if contains(options, defaultOption) {
		prompt.Default = defaultOption
	}

	var result string
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

// PromptConfirm asks a yes/no question.
func PromptConfirm(message string, defaultValue bool) (bool, error) {
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}

	var result bool
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, err
	}
	return result, nil
}

// PromptInput asks for free text. A required answer must not be blank.
func PromptInput(message, defaultValue string, required bool) (string, error) {
	prompt := &survey.Input{
		Message: message,
		Default: defaultValue,
	}

	var opts []survey.AskOpt
	if required {
		opts = append(opts, survey.WithValidator(survey.Required))
	}

	var result string
	if err := survey.AskOne(prompt, &result, opts...); err != nil {
		return "", err
	}
	return strings.TrimSpace(result), nil
}

// PromptPassword asks for a secret without echoing it.
func PromptPassword(message string) (string, error) {
	var result string
	if err := survey.AskOne(&survey.Password{Message: message}, &result); err != nil {
		return "", err
	}
	return result, nil
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}

func toInt(v interface{}) int {
	switch val := v.(type) {
	case int:
		return val
	case float64:
		return int(val)
	case string:
		i, _ := strconv.Atoi(val)
		return i
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}
