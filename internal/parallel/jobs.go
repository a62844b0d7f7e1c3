package parallel

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

const highJobCount = 32

// ParseJobs resolves the --jobs flag. Empty means cpus-1 (at least 1), "all"
// means cpus, anything else must be a positive integer.
func ParseJobs(flag string, cpus int, logger *zap.Logger) (int, error) {
	if cpus < 1 {
		cpus = 1
	}
	switch flag {
	case "":
		return max(1, cpus-1), nil
	case "all":
		return cpus, nil
	}

	n, err := strconv.Atoi(flag)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("--jobs must be a positive number or \"all\", got %q", flag)
	}
	if n > highJobCount {
		logger.Warn(fmt.Sprintf("--jobs=%d is unusually high. Consider using \"all\" (%d cores) or a lower value.", n, cpus))
	}
	return n, nil
}
