package main

import (
	"context"
	"fmt"

	"spark/internal/runtime"
)

// runtimeOptions maps the loaded configuration onto runtime options.
func runtimeOptions() (runtime.Options, error) {
	kind, err := appConfig.Kind()
	if err != nil {
		return runtime.Options{}, err
	}
	cache, err := appConfig.OpenCache()
	if err != nil {
		return runtime.Options{}, fmt.Errorf("open build cache: %w", err)
	}
	return runtime.Options{
		Driver:       appConfig.Device.Driver,
		Kind:         kind,
		Platform:     appConfig.Device.Platform,
		Index:        appConfig.Device.Index,
		BuildOptions: appConfig.Build.Options,
		Cache:        cache,
	}, nil
}

func openContext(ctx context.Context) (*runtime.Context, error) {
	opts, err := runtimeOptions()
	if err != nil {
		return nil, err
	}
	var c *runtime.Context
	err = timer.Measure("open device", func() (err error) {
		c, err = runtime.Open(ctx, opts)
		return err
	})
	return c, err
}
