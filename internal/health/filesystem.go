package health

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leslieo2/go-health-probe/internal/constants"
)

// File operations used by the probe, replaced in tests
var (
	createFile = os.Create
	createTemp = os.CreateTemp
	removeFile = os.Remove
)

// FilesystemChecker verifies that Dir is writable by creating, writing and
// removing a probe file. By default every call uses a fresh file name;
// FixedPath reuses <Dir>/health_check_test instead.
type FilesystemChecker struct {
	Dir       string
	FixedPath bool
}

func NewFilesystemChecker(dir string, fixedPath bool) *FilesystemChecker {
	return &FilesystemChecker{Dir: dir, FixedPath: fixedPath}
}

func (c *FilesystemChecker) Name() string {
	return constants.ServiceFilesystem
}

func (c *FilesystemChecker) Check(ctx context.Context) (ServiceStatus, error) {
	if err := ctx.Err(); err != nil {
		return c.unwritable(), err
	}

	f, err := c.create()
	if err != nil {
		return c.unwritable(), fmt.Errorf("create probe file: %w", err)
	}
	name := f.Name()

	var errs []error
	if _, err := f.WriteString(constants.ProbePayload); err != nil {
		errs = append(errs, fmt.Errorf("write probe file: %w", err))
	}
	if err := f.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close probe file: %w", err))
	}
	if err := removeFile(name); err != nil {
		errs = append(errs, fmt.Errorf("remove probe file: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return c.unwritable(), err
	}

	status := healthyStatus("")
	status.Writable = boolPtr(true)
	return status, nil
}

func (c *FilesystemChecker) create() (*os.File, error) {
	if c.FixedPath {
		return createFile(filepath.Join(c.Dir, constants.ProbeFixedName))
	}
	return createTemp(c.Dir, constants.ProbeFilePattern)
}

func (c *FilesystemChecker) failureStatus() ServiceStatus {
	return c.unwritable()
}

func (c *FilesystemChecker) unwritable() ServiceStatus {
	return ServiceStatus{
		Status:    constants.StatusUnhealthy,
		LastCheck: now(),
		Writable:  boolPtr(false),
	}
}
