package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// File is an optional TOML config file. Keys are flag names; a table
// prefixes its keys, so `[log] level = "debug"` sets --log-level. Values only
// fill flags that were not set on the command line or environment.
type File struct {
	Path string

	values map[string]string
}

// Flags returns CLI flags for the config file
func (c *File) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "TOML config file",
			Destination: &c.Path,
			Sources:     cli.EnvVars("GITPULSE_CONFIG"),
		},
	}
}

// Load reads the file. An empty path loads nothing.
func (c *File) Load() error {
	c.values = map[string]string{}
	if c.Path == "" {
		return nil
	}

	raw, err := os.ReadFile(c.Path)
	if err != nil {
		return goerr.Wrap(err, "failed to read config file", goerr.V("path", c.Path))
	}

	var doc map[string]any
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return goerr.Wrap(err, "failed to parse config file", goerr.V("path", c.Path))
	}
	flatten("", doc, c.values)
	return nil
}

// Keys returns the loaded flag names in sorted order
func (c *File) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Apply sets every flag of cmd that the file names and the user did not set.
// Keys for flags of other commands are ignored.
func (c *File) Apply(cmd *cli.Command) error {
	for _, flag := range cmd.Flags {
		for _, name := range flag.Names() {
			v, ok := c.values[name]
			if !ok || cmd.IsSet(name) {
				continue
			}
			if err := cmd.Set(name, v); err != nil {
				return goerr.Wrap(err, "invalid config value",
					goerr.V("path", c.Path),
					goerr.V("key", name),
					goerr.V("value", v),
				)
			}
		}
	}
	return nil
}

func flatten(prefix string, doc map[string]any, out map[string]string) {
	for k, v := range doc {
		key := k
		if prefix != "" {
			key = prefix + "-" + k
		}
		if table, ok := v.(map[string]any); ok {
			flatten(key, table, out)
			continue
		}
		out[key] = fmt.Sprint(v)
	}
}
