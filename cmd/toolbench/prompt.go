package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/fentz26/toolbench/internal/controlplane"
	"github.com/fentz26/toolbench/internal/schema"
)

// promptParams asks for every parameter of the tool in one form. Blank
// optional answers are left out of the result.
func promptParams(d *controlplane.ToolDetail) (map[string]any, error) {
	if len(d.Params) == 0 {
		return map[string]any{}, nil
	}

	answers := make([]string, len(d.Params))
	fields := make([]huh.Field, 0, len(d.Params))
	for i, p := range d.Params {
		answers[i] = defaultAnswer(p)
		fields = append(fields, paramField(p, &answers[i]))
	}

	form := huh.NewForm(huh.NewGroup(fields...).Title(d.Tool.FullIdentifier))
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("prompt: %w", err)
	}

	params := make(map[string]any, len(d.Params))
	for i, p := range d.Params {
		v, ok, err := coerce(p, answers[i])
		if err != nil {
			return nil, err
		}
		if ok {
			params[p.Name] = v
		}
	}
	return params, nil
}

func paramField(p schema.Param, value *string) huh.Field {
	title := p.Name
	if p.Required {
		title += " *"
	}

	if len(p.Enum) > 0 {
		opts := make([]huh.Option[string], 0, len(p.Enum))
		for _, e := range p.Enum {
			s := fmt.Sprint(e)
			opts = append(opts, huh.NewOption(s, s))
		}
		return huh.NewSelect[string]().
			Title(title).
			Description(p.Description).
			Options(opts...).
			Value(value)
	}

	if p.Type == "boolean" {
		return huh.NewSelect[string]().
			Title(title).
			Description(p.Description).
			Options(
				huh.NewOption("(unset)", ""),
				huh.NewOption("true", "true"),
				huh.NewOption("false", "false"),
			).
			Value(value)
	}

	return huh.NewInput().
		Title(title).
		Description(p.Description).
		Placeholder(p.Type).
		Value(value).
		Validate(func(s string) error {
			_, _, err := coerce(p, s)
			return err
		})
}

func defaultAnswer(p schema.Param) string {
	if p.Default == nil {
		return ""
	}
	if s, ok := p.Default.(string); ok {
		return s
	}
	data, err := json.Marshal(p.Default)
	if err != nil {
		return ""
	}
	return string(data)
}

// coerce converts an answer to the parameter's JSON type. ok is false for
// a blank optional answer.
func coerce(p schema.Param, answer string) (v any, ok bool, err error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		if p.Required {
			return nil, false, fmt.Errorf("%s is required", p.Name)
		}
		return nil, false, nil
	}

	switch p.Type {
	case "integer":
		n, err := strconv.ParseInt(answer, 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("%s must be an integer", p.Name)
		}
		return n, true, nil
	case "number":
		f, err := strconv.ParseFloat(answer, 64)
		if err != nil {
			return nil, false, fmt.Errorf("%s must be a number", p.Name)
		}
		return f, true, nil
	case "boolean":
		b, err := strconv.ParseBool(answer)
		if err != nil {
			return nil, false, fmt.Errorf("%s must be true or false", p.Name)
		}
		return b, true, nil
	case "array", "object":
		var decoded any
		if err := json.Unmarshal([]byte(answer), &decoded); err != nil {
			return nil, false, fmt.Errorf("%s must be JSON: %w", p.Name, err)
		}
		return decoded, true, nil
	default:
		return answer, true, nil
	}
}
