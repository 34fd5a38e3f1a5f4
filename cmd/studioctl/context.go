package main

import (
	"context"
	"errors"
	"strings"
	"sync"

	"novel-studio-api/internal/application/project"
	"novel-studio-api/internal/config"
	"novel-studio-api/internal/infrastructure/persistence/sqlite"
	"novel-studio-api/internal/wire"
	"novel-studio-api/pkg/logger"
)

type commandContext struct {
	configFlag *string
	dbFlag     *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, dbFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, dbFlag: dbFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		dir := "configs"
		if c.configFlag != nil && strings.TrimSpace(*c.configFlag) != "" {
			dir = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.LoadFrom(dir)
		if err != nil {
			c.configErr = err
			return
		}
		if c.dbFlag != nil && strings.TrimSpace(*c.dbFlag) != "" {
			cfg.Storage.Driver = "sqlite"
			cfg.Storage.SQLite.Path = strings.TrimSpace(*c.dbFlag)
		}
		// 命令行输出保持干净，只记录警告以上
		logger.Init("warn", "text")
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore 打开项目库执行 fn，结束后刷盘并释放数据库锁
func (c *commandContext) withStore(ctx context.Context, fn func(store *project.Store) error) (err error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.Driver == "memory" {
		return errors.New("memory storage is not persistent; use sqlite or postgres")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := wire.OpenDataLayer(ctx, cfg)
	if err != nil {
		if errors.Is(err, sqlite.ErrLocked) {
			return errors.New("project database is in use by a running studio-api; stop it or use the HTTP API")
		}
		return err
	}
	defer func() {
		if closeErr := data.Close(); err == nil {
			err = closeErr
		}
	}()

	store, err := project.Open(ctx, data.Repo, cfg.Storage.WriteQueueSize)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(context.WithoutCancel(ctx)); err == nil {
			err = closeErr
		}
	}()
	return fn(store)
}
