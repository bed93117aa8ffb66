package telemetry

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// ProfilerConfig configures Pyroscope continuous profiling
type ProfilerConfig struct {
	Enabled           bool
	ServerAddress     string
	ApplicationName   string
	BasicAuthUser     string
	BasicAuthPassword string
	// Process tags the profiles with the binary that produced them
	Process string
	// Types lists profile names such as "cpu" or "inuse_space"; empty
	// selects DefaultProfileTypes.
	Types []string
}

// DefaultProfileTypes covers CPU, heap and goroutines
var DefaultProfileTypes = []string{"cpu", "alloc_space", "inuse_space", "goroutines"}

var profileTypesByName = map[string]pyroscope.ProfileType{
	"cpu":           pyroscope.ProfileCPU,
	"alloc_space":   pyroscope.ProfileAllocSpace,
	"alloc_objects": pyroscope.ProfileAllocObjects,
	"inuse_space":   pyroscope.ProfileInuseSpace,
	"inuse_objects": pyroscope.ProfileInuseObjects,
	"goroutines":    pyroscope.ProfileGoroutines,
}

var (
	errProfilerAddress = errors.New("profiler server address is required")
	errProfilerAppName = errors.New("profiler application name is required")
	errProfileType     = errors.New("unknown profile type")
)

// Profiler is a running Pyroscope session, or a no-op when profiling is off
type Profiler struct {
	session *pyroscope.Profiler
	once    sync.Once
	err     error
}

// StartProfiler starts sending profiles to cfg.ServerAddress
func StartProfiler(cfg ProfilerConfig, log *zap.Logger) (*Profiler, error) {
	if !cfg.Enabled {
		return &Profiler{}, nil
	}
	if cfg.ServerAddress == "" {
		return nil, errProfilerAddress
	}
	if cfg.ApplicationName == "" {
		return nil, errProfilerAppName
	}
	types, err := parseProfileTypes(cfg.Types)
	if err != nil {
		return nil, err
	}

	session, err := pyroscope.Start(pyroscope.Config{
		ApplicationName:   cfg.ApplicationName,
		ServerAddress:     cfg.ServerAddress,
		BasicAuthUser:     cfg.BasicAuthUser,
		BasicAuthPassword: cfg.BasicAuthPassword,
		Logger:            log.Named("pyroscope").Sugar(),
		Tags:              profileTags(cfg.Process),
		ProfileTypes:      types,
	})
	if err != nil {
		return nil, fmt.Errorf("start pyroscope: %w", err)
	}

	log.Info("Profiler started",
		zap.String("server_address", cfg.ServerAddress),
		zap.String("application_name", cfg.ApplicationName),
		zap.Strings("types", profileNames(cfg.Types)),
	)
	return &Profiler{session: session}, nil
}

func profileNames(names []string) []string {
	if len(names) == 0 {
		return DefaultProfileTypes
	}
	return names
}

func parseProfileTypes(names []string) ([]pyroscope.ProfileType, error) {
	names = profileNames(names)
	types := make([]pyroscope.ProfileType, 0, len(names))
	for _, name := range names {
		t, ok := profileTypesByName[name]
		if !ok {
			return nil, fmt.Errorf("%w %q", errProfileType, name)
		}
		types = append(types, t)
	}
	return types, nil
}

func profileTags(process string) map[string]string {
	tags := map[string]string{}
	if process != "" {
		tags["process"] = process
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		tags["hostname"] = host
	}
	return tags
}

// Running reports whether profiles are being sent
func (p *Profiler) Running() bool {
	return p != nil && p.session != nil
}

// Stop flushes the last profiles. Only the first call does any work.
func (p *Profiler) Stop() error {
	if !p.Running() {
		return nil
	}
	p.once.Do(func() {
		if err := p.session.Stop(); err != nil {
			p.err = fmt.Errorf("stop pyroscope: %w", err)
		}
	})
	return p.err
}
