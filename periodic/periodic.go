// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package periodic runs named background tasks on a period, with last-run
// timestamps persisted so "due" survives reboots and deep sleep.
package periodic

import (
	"fmt"
	"log"
	"sync"
	"time"

	"periph.io/x/photoframe"
	"periph.io/x/photoframe/nvs"
)

// Before this moment the clock is considered unset (SNTP has not run
// yet) and every task is due.
var clockSetAfter = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

type task struct {
	name   string
	period time.Duration
	cb     func() error
}

// Registry holds the registered tasks. Last-run timestamps live in the
// key-value store under "task_<name>".
type Registry struct {
	ns  nvs.Namespace
	now func() time.Time

	mu    sync.Mutex
	tasks []*task
}

// New returns an empty Registry persisting into ns. now may be nil and
// defaults to time.Now.
func New(ns nvs.Namespace, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{ns: ns, now: now}
}

// Register adds a task. Tasks run in registration order.
func (r *Registry) Register(name string, period time.Duration, cb func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, &task{name: name, period: period, cb: cb})
}

// Force marks a task due on the next CheckAndRunAll.
func (r *Registry) Force(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.name == name {
			return r.ns.SetI64(key(name), 0)
		}
	}
	return fmt.Errorf("periodic: %w: task %q", photoframe.ErrNotFound, name)
}

// CheckAndRunAll synchronously runs every task whose period has elapsed
// (or that was forced). A failing task is logged and retried on the next
// check; its last-run is not advanced.
func (r *Registry) CheckAndRunAll() {
	r.mu.Lock()
	tasks := make([]*task, len(r.tasks))
	copy(tasks, r.tasks)
	r.mu.Unlock()

	now := r.now()
	for _, t := range tasks {
		if !r.due(t, now) {
			continue
		}
		if err := t.cb(); err != nil {
			log.Printf("periodic: task %q: %s", t.name, err)
			continue
		}
		if err := r.ns.SetI64(key(t.name), now.Unix()); err != nil {
			log.Printf("periodic: task %q: persisting last run: %s", t.name, err)
		}
	}
}

func (r *Registry) due(t *task, now time.Time) bool {
	// An unset clock makes everything due so the first boot after
	// provisioning runs SNTP and friends unconditionally.
	if now.Before(clockSetAfter) {
		return true
	}
	last, err := r.ns.GetI64(key(t.name))
	if err != nil || last == 0 {
		return true
	}
	return now.Unix()-last >= int64(t.period/time.Second)
}

func key(name string) string {
	return "task_" + name
}
