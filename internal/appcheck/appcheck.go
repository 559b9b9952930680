// Package appcheck reports whether the receiving application is running.
package appcheck

import (
	"context"
	"fmt"
	"strings"

	gopsProcess "github.com/shirou/gopsutil/v3/process"
)

// Proc is the subset of *process.Process the checker reads.
type Proc interface {
	Name() (string, error)
}

// Lister enumerates running processes.
type Lister func(ctx context.Context) ([]Proc, error)

// Checker matches running process names against an application name.
type Checker struct {
	list Lister
}

func New() *Checker {
	return &Checker{list: systemProcesses}
}

// NewWithLister is used by tests to supply a fixed process table.
func NewWithLister(list Lister) *Checker {
	return &Checker{list: list}
}

func systemProcesses(ctx context.Context) ([]Proc, error) {
	processes, err := gopsProcess.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Proc, 0, len(processes))
	for _, p := range processes {
		out = append(out, p)
	}
	return out, nil
}

// IsRunning reports whether any process name equals appName, ignoring case.
// Processes whose name cannot be read are skipped.
func (c *Checker) IsRunning(ctx context.Context, appName string) (bool, error) {
	if appName == "" {
		return false, fmt.Errorf("appcheck: empty application name")
	}
	processes, err := c.list(ctx)
	if err != nil {
		return false, fmt.Errorf("appcheck: list processes: %w", err)
	}
	for _, p := range processes {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		name, err := p.Name()
		if err != nil {
			continue
		}
		if strings.EqualFold(name, appName) {
			return true, nil
		}
	}
	return false, nil
}
