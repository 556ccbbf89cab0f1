package backup

import (
	"context"
	"fmt"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/disk"
	"nexdb/internal/misc"
	"nexdb/internal/types"
	"strings"
	"time"
)

const timestampLayout = "20060102_150405"

// CheckFreeSpace fails with ErrInsufficientSpace when dir has less than minBytes available
func CheckFreeSpace(ctx context.Context, dir string, minBytes uint64) error {
	if minBytes == 0 {
		return nil
	}

	usage, err := disk.UsageWithContext(ctx, dir)
	if err != nil {
		return errors.Wrap(err, "failed to read disk usage of "+dir)
	}

	if usage.Free < minBytes {
		return errors.Wrapf(types.ErrInsufficientSpace, "%s has %d bytes free, %d required", dir, usage.Free, minBytes)
	}
	return nil
}

func Filename(database string, engine types.Engine, t time.Time) string {
	return fmt.Sprintf("%s_%s_%s.sql", misc.SanitizeFilename(database), engine, t.Format(timestampLayout))
}

// WithSuffix inserts _n before the extension, used to avoid name collisions within the same second
func WithSuffix(filename string, n int) string {
	if n <= 0 {
		return filename
	}
	base, ext := filename, ""
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		base, ext = filename[:idx], filename[idx:]
	}
	return fmt.Sprintf("%s_%d%s", base, n, ext)
}
