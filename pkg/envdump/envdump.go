// Package envdump renders an environment snapshot for diagnostic output.
package envdump

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/flosch/pongo2/v6"
	"github.com/pkg/errors"
	"github.com/wrouesnel/sibling-launcher/pkg/envutil"
	"gopkg.in/yaml.v3"
)

const (
	FormatEnv      = "env"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatTemplate = "template"
)

// Config selects how the environment is rendered.
type Config struct {
	Format   string `help:"environment dump format (${enum})" enum:"env,json,yaml,template" default:"env"`
	Template string `help:"pongo2 template file used by the template format"`
}

type UnknownFormatError struct {
	msg string
}

func (u UnknownFormatError) Error() string {
	return fmt.Sprintf("UnknownFormatError: %s", u.msg)
}

type ConfigError struct {
	msg string
}

func (c ConfigError) Error() string {
	return fmt.Sprintf("ConfigError: %s", c.msg)
}

// Write renders env to w in the configured format. An empty format means FormatEnv.
func Write(w io.Writer, env map[string]string, cfg Config) error {
	switch cfg.Format {
	case "", FormatEnv:
		return writeEnv(w, env)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(nonNil(env)); err != nil {
			return errors.Wrap(err, "envdump: json")
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(nonNil(env)); err != nil {
			return errors.Wrap(err, "envdump: yaml")
		}
		return errors.Wrap(enc.Close(), "envdump: yaml")
	case FormatTemplate:
		return writeTemplate(w, env, cfg.Template)
	default:
		return &UnknownFormatError{msg: cfg.Format}
	}
}

func writeEnv(w io.Writer, env map[string]string) error {
	for _, line := range envutil.ToEnvironment(env) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return errors.Wrap(err, "envdump: env")
		}
	}
	return nil
}

func writeTemplate(w io.Writer, env map[string]string, templatePath string) error {
	if templatePath == "" {
		return &ConfigError{msg: "template format selected but no template file given"}
	}

	tpl, err := pongo2.FromFile(templatePath)
	if err != nil {
		return errors.Wrapf(err, "envdump: loading template %s", templatePath)
	}

	ctx := pongo2.Context{
		"env":  nonNil(env),
		"keys": envutil.SortedKeys(env),
	}
	if err := tpl.ExecuteWriter(ctx, w); err != nil {
		return errors.Wrapf(err, "envdump: rendering template %s", templatePath)
	}
	return nil
}

func nonNil(env map[string]string) map[string]string {
	if env == nil {
		return map[string]string{}
	}
	return env
}
