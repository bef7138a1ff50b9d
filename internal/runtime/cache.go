package runtime

import (
	"context"
	"errors"
	"strconv"
	"time"

	"spark/internal/device"
	"spark/internal/fault"
	"spark/internal/kcache"
	"spark/internal/trace"
)

// programEntry is a built program shared by every kernel compiled from the
// same source. refs counts the kernels holding it.
type programEntry struct {
	key     kcache.Digest
	prog    device.Program
	refs    int
	dropped bool
}

func (c *Context) buildKey(source string) kcache.Digest {
	return kcache.Key(c.info.Driver, c.info.Platform, c.info.Name, c.info.Version, c.opts.BuildOptions, source)
}

// acquire returns the program for source, building it at most once no
// matter how many goroutines ask concurrently.
func (c *Context) acquire(ctx context.Context, source string) (*programEntry, error) {
	key := c.buildKey(source)
	for {
		c.mu.Lock()
		if c.closed.Load() {
			c.mu.Unlock()
			return nil, fault.Wrap(fault.KindDevice, "compile", fault.ErrClosed)
		}
		if e, ok := c.programs[key]; ok {
			e.refs++
			c.mu.Unlock()
			return e, nil
		}
		c.mu.Unlock()

		v, err, _ := c.builds.Do(key.String(), func() (any, error) {
			prog, err := c.build(ctx, key, source)
			if err != nil {
				return nil, err
			}
			e := &programEntry{key: key, prog: prog}
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.closed.Load() {
				_ = prog.Release()
				return nil, fault.Wrap(fault.KindDevice, "compile", fault.ErrClosed)
			}
			c.programs[key] = e
			return e, nil
		})
		if err != nil {
			return nil, err
		}
		e := v.(*programEntry)
		c.mu.Lock()
		if c.programs[key] == e {
			e.refs++
			c.mu.Unlock()
			return e, nil
		}
		// Released by another holder before this caller took its reference.
		c.mu.Unlock()
	}
}

func (c *Context) release(e *programEntry) error {
	c.mu.Lock()
	if e.dropped {
		c.mu.Unlock()
		return nil
	}
	e.refs--
	if e.refs > 0 {
		c.mu.Unlock()
		return nil
	}
	e.dropped = true
	delete(c.programs, e.key)
	c.mu.Unlock()
	return e.prog.Release()
}

// build compiles source on the device. A build that is recorded as failed in
// the disk cache is answered from the record.
func (c *Context) build(ctx context.Context, key kcache.Digest, source string) (device.Program, error) {
	span, ctx := trace.Start(ctx, trace.ScopeStage, "compile")
	span.WithExtra("key", key.Short())
	detail := "ok"
	defer func() { span.End(detail) }()

	if rec, ok, err := c.opts.Cache.Get(key); err == nil && ok && !rec.OK {
		detail = "cached failure"
		return nil, fault.Compile("build program", rec.Log, device.BuildProgramFailure, device.CodeName(device.BuildProgramFailure))
	}

	start := time.Now()
	prog, err := c.dev.BuildProgram(ctx, source, c.opts.BuildOptions)
	rec := &kcache.Record{
		Driver:      c.info.Driver,
		Device:      c.info.Name,
		Options:     c.opts.BuildOptions,
		SourceBytes: len(source),
		Created:     start,
		Duration:    time.Since(start),
	}
	var fe *fault.Error
	switch {
	case err == nil:
		rec.OK = true
		rec.Log = prog.BuildLog()
	case errors.As(err, &fe) && fe.Kind == fault.KindCompile:
		rec.Log = fe.Log
		detail = "compile error"
	default:
		// Device failures say nothing about the source; do not record them.
		detail = "device error"
		return nil, err
	}
	span.WithExtra("log_bytes", strconv.Itoa(len(rec.Log)))
	if putErr := c.opts.Cache.Put(key, rec); putErr != nil {
		trace.Point(ctx, trace.ScopeStage, "cache write failed", putErr.Error())
	}
	return prog, err
}

// CompileSource builds raw OpenCL C text and, when entry is not empty,
// checks that the kernel exists. It returns the build log. A failure to
// release the program is reported after any lookup error.
func (c *Context) CompileSource(ctx context.Context, source, entry string) (log string, err error) {
	if err := c.check("compile source"); err != nil {
		return "", err
	}
	e, err := c.acquire(ctx, source)
	if err != nil {
		var fe *fault.Error
		if errors.As(err, &fe) {
			return fe.Log, err
		}
		return "", err
	}
	defer func() {
		if relErr := c.release(e); relErr != nil {
			err = errors.Join(err, relErr)
		}
	}()
	log = e.prog.BuildLog()
	if entry == "" {
		return log, nil
	}
	k, err := e.prog.Kernel(entry)
	if err != nil {
		return log, err
	}
	return log, k.Release()
}

// CachedPrograms reports how many distinct programs are alive.
func (c *Context) CachedPrograms() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.programs)
}
