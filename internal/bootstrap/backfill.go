package bootstrap

import (
	"fmt"

	"go.uber.org/zap"

	reportapp "github.com/posreports/backend/internal/application/report"
	"github.com/posreports/backend/internal/domain/report"
	"github.com/posreports/backend/internal/infrastructure/config"
	"github.com/posreports/backend/internal/infrastructure/telemetry"
)

// NewBackfillService wires the driver to the ledger and the report stores
// using the report section's business day and time zone.
func NewBackfillService(
	cfg *config.Config,
	connector report.LedgerConnector,
	stores *ReportStores,
	tel *Telemetry,
	log *zap.Logger,
) (*reportapp.BackfillService, error) {
	dayStart, err := cfg.Report.DayStart()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Report.Location()
	if err != nil {
		return nil, err
	}

	bcfg := reportapp.DefaultBackfillConfig()
	bcfg.BusinessDayStart = dayStart
	bcfg.Location = loc

	var opts []reportapp.BackfillOption
	if meter := tel.MeterFor("pos-reports/backfill"); meter != nil {
		m, err := telemetry.NewBackfillMetrics(meter)
		if err != nil {
			return nil, fmt.Errorf("backfill metrics: %w", err)
		}
		opts = append(opts, reportapp.WithMetrics(m))
	}

	return reportapp.NewBackfillService(connector, stores.Sink, stores.Index, bcfg, log, opts...), nil
}
