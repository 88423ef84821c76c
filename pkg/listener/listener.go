// Package listener runs the long-lived worker mode: it polls the directory
// service's job queue for package-creation requests targeting this worker's
// platform and runs the bundle pipeline for each claimed job.
package listener

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"github.com/atriumdesk/bundlectl/pkg/bundle"
	"github.com/atriumdesk/bundlectl/pkg/directory"
)

const defaultPollInterval = 10 * time.Second

// Events is the slice of the directory service the listener consumes.
type Events interface {
	EnrollEvent(ctx context.Context, sourceTopic, targetTopic, workerID, description string) (*directory.Event, error)
	UpdateEvent(ctx context.Context, eventID, sender, status, description string) error
}

// Creator runs the package pipeline for one bundle; *bundle.Builder is the
// production implementation.
type Creator interface {
	CreatePackage(ctx context.Context, bundleName string) (*bundle.Result, error)
}

// Listener claims pending package-creation jobs for one platform and hands
// each to the builder. Jobs carry the bundle name in DependsOn.
type Listener struct {
	Events  Events
	Builder Creator

	Platform     string
	PollInterval time.Duration

	workerID string
}

// Run polls until ctx is cancelled. Individual job failures are reported
// upstream and do not stop the loop.
func (l *Listener) Run(ctx context.Context) error {
	log := clog.FromContext(ctx)

	l.workerID = fmt.Sprintf("bundlectl-%s-%s", l.Platform, uuid.NewString())
	interval := l.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	log.Infof("listening for package-creation jobs on %q as %s", l.sourceTopic(), l.workerID)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := l.claimOnce(ctx); err != nil {
			log.Errorf("claiming job: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// claimOnce claims at most one pending job and processes it to completion.
func (l *Listener) claimOnce(ctx context.Context) error {
	log := clog.FromContext(ctx)

	event, err := l.Events.EnrollEvent(ctx, l.sourceTopic(), l.targetTopic(), l.workerID,
		fmt.Sprintf("creating dependency package for %s", l.Platform))
	if err != nil {
		return err
	}
	if event == nil {
		return nil
	}

	bundleName := event.DependsOn
	log.Infof("claimed job %s for bundle %q", event.ID, bundleName)

	result, err := l.Builder.CreatePackage(ctx, bundleName)
	if err != nil {
		failure := fmt.Sprintf("dependency package for bundle %q failed: %v", bundleName, err)
		if uerr := l.Events.UpdateEvent(ctx, event.ID, l.workerID, "failed", failure); uerr != nil {
			log.Errorf("reporting job failure: %v", uerr)
		}
		return err
	}

	verb := "created"
	if result.Reused {
		verb = "reused"
	}
	return l.Events.UpdateEvent(ctx, event.ID, l.workerID, "finished",
		fmt.Sprintf("%s dependency package %s for bundle %q", verb, result.Filename, bundleName))
}

func (l *Listener) sourceTopic() string {
	return fmt.Sprintf("dependencies.start-create.%s", l.Platform)
}

func (l *Listener) targetTopic() string {
	return fmt.Sprintf("dependencies.creating-package.%s", l.Platform)
}
