package main

import (
	"fmt"

	"tasknerd/internal/config"
	"tasknerd/internal/interpreter"
	"tasknerd/internal/logging"
	"tasknerd/internal/perception"
	"tasknerd/internal/store"
	"tasknerd/internal/types"
)

// app is the store plus the interpreter built over it.
type app struct {
	store *store.LocalStore
	stack *interpreter.Stack
}

// newClient is swapped in tests.
var newClient = func(c *config.Config) (types.LLMClient, error) {
	return perception.NewClientFromEnv(c)
}

func openStore(c *config.Config) (*store.LocalStore, error) {
	return store.Open(store.Options{
		Driver:       c.Store.Driver,
		Path:         c.Store.Path,
		DefaultUser:  c.Store.DefaultUser,
		DefaultEmail: c.Store.DefaultEmail,
	})
}

// openApp validates c, opens the store and wires the interpreter. A
// missing model key is not fatal: the built-in phrases still work.
func openApp(c *config.Config) (*app, error) {
	if err := c.ValidateOffline(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client, err := newClient(c)
	if err != nil {
		logging.Get(logging.CategoryBoot).Warn("no language model: %v; only built-in commands are understood", err)
		client = nil
	}

	st, err := openStore(c)
	if err != nil {
		return nil, err
	}
	stack, err := interpreter.NewStack(c, st, client)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &app{store: st, stack: stack}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
