// Package check provides system diagnostics (the check command) and
// pre-run validation (Preflight) of the input directory and rules file.
package check

import (
	"os"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/backmassage/exrscan/internal/config"
	"github.com/backmassage/exrscan/internal/rules"
)

// Sentinel errors returned by Preflight.
var (
	ErrInputNotFound = errors.New("input directory not found")
	ErrInputNotDir   = errors.New("input path is not a directory")
)

// fdHeadroom is the number of descriptors reserved for the log file,
// the report file, the rules watcher, and the runtime.
const fdHeadroom = 16

// Logger is the minimal logging interface needed by RunCheck.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(string, ...interface{})
}

// RunCheck prints host resources, the descriptor limit against the worker
// count, and the state of the configured rules file. It reports false if
// anything would stop a scan from running as configured.
func RunCheck(cfg *config.Config, log Logger) bool {
	log.Info("=== System Check ===")

	ok := true
	checkCPU(log)
	checkMemory(log)
	if !checkFDLimit(workers(cfg), log) {
		ok = false
	}
	if !checkRules(cfg.RulesFile, log) {
		ok = false
	}
	if cfg.InputDir != "" {
		if err := Preflight(cfg); err != nil {
			log.Error("Input: %v", err)
			ok = false
		} else {
			log.Success("Input: %s", cfg.InputDir)
		}
	}
	if cfg.ConfigFile != "" {
		log.Info("Config file: %s", cfg.ConfigFile)
	}
	return ok
}

// Preflight verifies that the input directory exists and is a directory.
func Preflight(cfg *config.Config) error {
	info, err := os.Stat(cfg.InputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(ErrInputNotFound, cfg.InputDir)
		}
		return errors.Wrapf(err, "stat %s", cfg.InputDir)
	}
	if !info.IsDir() {
		return errors.Wrap(ErrInputNotDir, cfg.InputDir)
	}
	return nil
}

func workers(cfg *config.Config) int {
	if cfg.Workers > 0 {
		return cfg.Workers
	}
	return runtime.NumCPU()
}

func checkCPU(log Logger) {
	logical, err := cpu.Counts(true)
	if err != nil {
		log.Warn("Could not count CPUs: %v", err)
		return
	}
	physical, err := cpu.Counts(false)
	if err != nil || physical == 0 {
		log.Info("CPUs: %d logical", logical)
		return
	}
	log.Info("CPUs: %d logical, %d physical", logical, physical)
}

func checkMemory(log Logger) {
	v, err := mem.VirtualMemory()
	if err != nil {
		log.Warn("Could not read memory stats: %v", err)
		return
	}
	log.Info("Memory: %d MiB available of %d MiB", v.Available>>20, v.Total>>20)
}

// checkFDLimit warns when the soft RLIMIT_NOFILE cannot cover one open file
// per worker plus headroom. Platforms without rlimit support pass.
func checkFDLimit(n int, log Logger) bool {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Debug("Could not inspect own process: %v", err)
		return true
	}
	limits, err := p.Rlimit()
	if err != nil {
		log.Debug("Descriptor limit unavailable: %v", err)
		return true
	}
	for _, l := range limits {
		if l.Resource != process.RLIMIT_NOFILE {
			continue
		}
		need := uint64(n + fdHeadroom)
		if l.Soft < need {
			log.Error("Open file limit %d is below %d needed for %d workers", l.Soft, need, n)
			return false
		}
		log.Success("Open file limit: %d (%d workers)", l.Soft, n)
		return true
	}
	return true
}

func checkRules(path string, log Logger) bool {
	if path == "" {
		rs := rules.Default()
		log.Info("Rules: built-in (%d rules, %s)", rs.Len(), rs.Fingerprint())
		return true
	}
	rs, err := rules.Load(path)
	if err != nil {
		log.Error("Rules: %v", err)
		return false
	}
	log.Success("Rules: %s (%d rules, %d groups, %s)", path, rs.Len(), len(rs.Groups()), rs.Fingerprint())
	return true
}
