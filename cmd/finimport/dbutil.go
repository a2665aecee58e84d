package main

import (
	"context"

	"github.com/areluna/finimport/internal/store"
	"github.com/areluna/finimport/pkg/configuration"
)

func connectStore(ctx context.Context) (*store.PG, error) {
	conf := configuration.Use()
	pg, err := store.Connect(ctx, conf.Database.ConnectionString(), conf.Logger())
	if err != nil {
		return nil, err
	}
	pg.PageSize = conf.PageSize
	return pg, nil
}
