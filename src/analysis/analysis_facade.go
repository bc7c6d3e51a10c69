package analysis

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"alphatrak-observer/src/logger"
	"alphatrak-observer/src/models"
)

// ErrNoGlucoseReadings fails a cycle whose window holds no BloodGlucose
// entries, even when other categories have data.
var ErrNoGlucoseReadings = errors.New("no glucose readings found")

type AnalysisFacade struct {
	Config *models.MConfig
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAnalysisFacade(cfg *models.MConfig, log *logger.Logger) *AnalysisFacade {
	if log == nil {
		log = logger.NewLogger(cfg, "Analysis")
	}
	return &AnalysisFacade{
		Config: cfg,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

// BuildSnapshot turns one fetched payload into a snapshot for petID. Every
// known category is present in RecentActivities (possibly empty) and in
// LatestActivities (possibly nil); categories the service adds later are
// carried through as well.
func (a *AnalysisFacade) BuildSnapshot(petID int64, p *models.MActivityPayload, now time.Time) (*models.MSnapshot, error) {
	if p == nil {
		p = &models.MActivityPayload{}
	}

	readings := WindowedList(p, models.CategoryBloodGlucose)
	if len(readings) == 0 {
		return nil, ErrNoGlucoseReadings
	}

	latest := LatestPerCategory(p)

	recent := make(map[models.MCategory][]models.MEntry, len(models.KnownCategories))
	latestActs := make(map[models.MCategory]models.MEntry, len(models.KnownCategories))
	for _, c := range models.KnownCategories {
		recent[c] = WindowedList(p, c)
		latestActs[c] = latest[c]
	}
	for c := range p.Categories {
		if _, ok := recent[c]; !ok {
			recent[c] = WindowedList(p, c)
			latestActs[c] = latest[c]
		}
	}

	snap := &models.MSnapshot{
		ID:               uuid.NewString(),
		PetID:            petID,
		FetchedAt:        now,
		LatestReading:    latest[models.CategoryBloodGlucose],
		RecentReadings:   readings,
		RecentActivities: recent,
		LatestActivities: latestActs,
		GlucoseStats:     GlucoseStatistics(readings, p.MinRange, p.MaxRange),
	}

	a.Logger.Debug("Pet %d: %d glucose readings, latest at %s",
		petID, len(readings), ExtractDatetime(snap.LatestReading))
	return snap, nil
}
