package cmd

import (
	"fmt"

	"github.com/papapumpkin/caldera/internal/carrier"
	"github.com/papapumpkin/caldera/internal/config"
	"github.com/papapumpkin/caldera/internal/database"
	"github.com/papapumpkin/caldera/internal/scenario"
	"github.com/papapumpkin/caldera/internal/telemetry"
	"github.com/papapumpkin/caldera/internal/ui"
)

// session bundles what every command needs after configuration is read.
type session struct {
	cfg     config.Config
	printer *ui.Printer
	events  *telemetry.Emitter
}

func newSession() (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	s := &session{cfg: cfg, printer: ui.New()}
	if cfg.Telemetry != "" {
		if s.events, err = telemetry.NewEmitter(cfg.Telemetry); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *session) close() {
	if err := s.events.Close(); err != nil {
		s.printer.Warn(err.Error())
	}
}

// registryOptions turns the carrier settings into registry options.
func (s *session) registryOptions() ([]carrier.Option, error) {
	policy, err := carrier.ParsePolicy(s.cfg.Carriers.MissingQualifier)
	if err != nil {
		return nil, err
	}
	return []carrier.Option{
		carrier.WithPolicy(policy),
		carrier.WithWarn(func(msg string) { s.printer.Warn(msg) }),
	}, nil
}

func (s *session) loadDatabase(dir string) (*database.Database, error) {
	opts, err := s.registryOptions()
	if err != nil {
		return nil, err
	}
	db, err := database.Load(dir, opts...)
	if err != nil {
		return nil, err
	}
	if s.cfg.Verbose {
		s.printer.Database(db)
	}
	return db, nil
}

// loadCase reads a case file and the database it refers to.
func (s *session) loadCase(path string) (*scenario.Case, *database.Database, error) {
	c, err := scenario.Load(path)
	if err != nil {
		return nil, nil, err
	}
	db, err := s.loadDatabase(c.DatabaseDir(s.cfg.Database))
	if err != nil {
		return nil, nil, err
	}
	return c, db, nil
}
