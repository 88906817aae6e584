// Package trigger turns declared skill triggers into pipeline launches.
//
// Triggers are declared at manifest authoring time and evaluated here at
// dispatch time; dispatching never mutates the manifest. Each dispatch
// starts one isolated pipeline run.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/skilld/pkg/manifest"
)

// ErrTriggerNotDeclared indicates a dispatch source the skill never
// declared. Manual dispatch is always permitted; webhook, event, and
// schedule dispatch require a matching declared trigger.
var ErrTriggerNotDeclared = errors.New("trigger not declared by skill")

// Launcher starts one pipeline run for a skill. The engine implements
// this; the dispatcher never blocks on run completion.
type Launcher interface {
	Launch(ctx context.Context, skill *manifest.Skill, source manifest.TriggerType)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context, skill *manifest.Skill, source manifest.TriggerType)

// Launch implements Launcher.
func (f LauncherFunc) Launch(ctx context.Context, skill *manifest.Skill, source manifest.TriggerType) {
	f(ctx, skill, source)
}

// Dispatcher evaluates declared triggers and launches pipeline runs.
type Dispatcher struct {
	registry *manifest.Registry
	launcher Launcher
	logger   *zap.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewDispatcher creates a trigger dispatcher.
func NewDispatcher(registry *manifest.Registry, launcher Launcher, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		registry: registry,
		launcher: launcher,
		logger:   logger,
	}
}

// Start schedules every declared schedule trigger and runs the cron
// scheduler until ctx is cancelled. Webhook, event, and manual triggers
// are dispatched on demand through Dispatch.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := cron.New()
	for _, skill := range d.registry.List() {
		for _, t := range skill.Triggers {
			if t.Type != manifest.TriggerSchedule {
				continue
			}
			id := skill.ID
			_, err := c.AddFunc(t.Schedule, func() {
				d.launchByID(ctx, id, manifest.TriggerSchedule)
			})
			if err != nil {
				return fmt.Errorf("scheduling skill %s (%q): %w", skill.ID, t.Schedule, err)
			}
			d.logger.Info("schedule trigger registered",
				zap.String("skill", skill.ID),
				zap.String("cron", t.Schedule),
			)
		}
	}

	c.Start()
	d.cron = c

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		d.logger.Info("trigger scheduler stopped")
	}()

	return nil
}

// Dispatch launches the skill if the source trigger is permitted.
//
// The skill is re-read from the registry at dispatch time, so hot
// reloads take effect for subsequent dispatches.
func (d *Dispatcher) Dispatch(ctx context.Context, skillID string, source manifest.TriggerType) error {
	skill, err := d.registry.Get(skillID)
	if err != nil {
		return err
	}

	if source != manifest.TriggerManual && !declaresTrigger(skill, source) {
		return fmt.Errorf("%w: %s does not declare a %s trigger", ErrTriggerNotDeclared, skillID, source)
	}

	d.logger.Info("dispatching skill",
		zap.String("skill", skillID),
		zap.String("source", string(source)),
	)
	d.launcher.Launch(ctx, skill, source)
	return nil
}

func (d *Dispatcher) launchByID(ctx context.Context, skillID string, source manifest.TriggerType) {
	if err := d.Dispatch(ctx, skillID, source); err != nil {
		d.logger.Warn("scheduled dispatch failed",
			zap.String("skill", skillID),
			zap.Error(err),
		)
	}
}

func declaresTrigger(skill *manifest.Skill, source manifest.TriggerType) bool {
	for _, t := range skill.Triggers {
		if t.Type == source {
			return true
		}
	}
	return false
}
