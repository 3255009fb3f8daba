// Package config reads thermux HCL configuration.
package config

import (
	"path/filepath"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/thermux/helpers"
	"github.com/temoto/thermux/internal/display"
	"github.com/temoto/thermux/internal/session"
	"github.com/temoto/thermux/internal/tele"
	"github.com/temoto/thermux/log2"
	"github.com/temoto/thermux/sparkplug"
)

type Config struct {
	includeSeen map[string]struct{}
	XXX_Include []ConfigSource `hcl:"include"`

	Broker    tele.Config `hcl:"broker"`
	Sparkplug struct {
		Namespace    string `hcl:"namespace"`
		Group        string `hcl:"group"`
		NodeID       string `hcl:"node_id"`
		NumModules   int    `hcl:"num_modules"`
		ModuleID     int    `hcl:"module_id"`
		CommsVersion int    `hcl:"comms_version"`
	} `hcl:"sparkplug"`
	Show string `hcl:"show"`
	Log  struct {
		Enable bool   `hcl:"enable"`
		Path   string `hcl:"path"`
	} `hcl:"log"`
	LogDebug bool `hcl:"log_debug"`
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

// Defaults fills zero values.
func (c *Config) Defaults() {
	if c.Broker.BrokerURL == "" {
		c.Broker.BrokerURL = tele.DefaultBrokerURL
	}
	if c.Broker.ClientID == "" {
		c.Broker.ClientID = tele.DefaultClientID
	}
	if c.Sparkplug.Namespace == "" {
		c.Sparkplug.Namespace = sparkplug.Namespace
	}
	if c.Sparkplug.Group == "" {
		c.Sparkplug.Group = session.DefaultGroup
	}
	if c.Sparkplug.NodeID == "" {
		c.Sparkplug.NodeID = session.DefaultNodeID
	}
	if c.Sparkplug.NumModules == 0 {
		c.Sparkplug.NumModules = session.DefaultNumModules
	}
	if c.Sparkplug.CommsVersion == 0 {
		c.Sparkplug.CommsVersion = session.DefaultCommsVersion
	}
	if c.Show == "" {
		c.Show = display.ShowChanged.String()
	}
}

func (c *Config) Validate() error {
	errs := make([]error, 0, 4)
	if c.Sparkplug.Namespace != sparkplug.Namespace {
		errs = append(errs, errors.NotSupportedf("sparkplug namespace=%s", c.Sparkplug.Namespace))
	}
	if c.Sparkplug.NumModules < 1 {
		errs = append(errs, errors.NotValidf("sparkplug num_modules=%d", c.Sparkplug.NumModules))
	} else if c.Sparkplug.ModuleID < 0 || c.Sparkplug.ModuleID >= c.Sparkplug.NumModules {
		errs = append(errs, errors.NotValidf("sparkplug module_id=%d out of range 0-%d", c.Sparkplug.ModuleID, c.Sparkplug.NumModules-1))
	}
	if _, err := display.ParseShowMode(c.Show); err != nil {
		errs = append(errs, err)
	}
	return helpers.FoldErrors(errs)
}

func (c *Config) SessionOptions() session.Options {
	return session.Options{
		Group:        c.Sparkplug.Group,
		NodeID:       c.Sparkplug.NodeID,
		NumModules:   c.Sparkplug.NumModules,
		CommsVersion: int64(c.Sparkplug.CommsVersion),
	}
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.AlreadyExistsf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s", source.Name)
		*errs = append(*errs, err)
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

// ReadConfig reads sources in order, later values overwrite earlier.
// Defaults are applied after reading.
func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		return nil, errors.NotValidf("config without sources")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		osfs.SetBase(dir)
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	c.Defaults()
	return c, helpers.FoldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err == nil {
		err = c.Validate()
	}
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}

// New returns config with defaults, for running without config file.
func New() *Config {
	c := &Config{includeSeen: make(map[string]struct{})}
	c.Defaults()
	return c
}
