package main

import (
	"fmt"

	"github.com/yourusername/awari/pkg/api"
	"github.com/yourusername/awari/pkg/retro"
	"github.com/yourusername/awari/pkg/storage"
)

func (a *app) serverConfig() api.ServerConfig {
	sc := api.DefaultConfig()
	s := a.cfg.Server
	sc.Host = s.Host
	sc.Port = s.Port
	sc.ReadTimeout = s.ReadTimeout
	sc.WriteTimeout = s.WriteTimeout
	sc.IdleTimeout = s.IdleTimeout
	sc.MaxEvals = s.MaxWorkers
	return sc
}

// openTable opens a finished table for reading. A non-empty file names a
// flat table file; otherwise the configured backend is reopened.
func (a *app) openTable(file string) (*retro.Table, error) {
	g, err := a.geometry()
	if err != nil {
		return nil, err
	}
	codec, err := retro.CodecByName(a.cfg.Storage.Codec)
	if err != nil {
		return nil, err
	}
	opts := a.cfg.StorageOptions(a.log, nil)
	if file != "" {
		opts.Kind = storage.KindMMap
		opts.Path = file
	}

	backend, err := storage.Open(opts, g.NBoards, codec, true)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	t, err := retro.OpenTable(g, backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return t, nil
}
