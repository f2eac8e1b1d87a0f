package main

import (
	"strings"
	"sync"

	"marquee/internal/config"
	"marquee/internal/requests"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolvedPath, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolvedPath
	})
	return c.config, c.configErr
}

// withStore opens the request database for one command and closes it after.
// The CLI reads the same SQLite file the daemon writes; WAL mode keeps the
// two from blocking each other.
func (c *commandContext) withStore(fn func(*requests.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := requests.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}
