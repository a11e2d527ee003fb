package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"gorm.io/gorm"

	"github.com/buildwise/takeoff-backend/internal/data/repos"
	types "github.com/buildwise/takeoff-backend/internal/domain"
	"github.com/buildwise/takeoff-backend/internal/platform/apierr"
	"github.com/buildwise/takeoff-backend/internal/platform/dbctx"
	"github.com/buildwise/takeoff-backend/internal/platform/logger"
)

// ErrNoProfile means no building profile covers the requested structure,
// usage and floor count.
var ErrNoProfile = errors.New("no matching building profile")

type EstimateInput struct {
	StructureType  string  `json:"structure_type"`
	Usage          string  `json:"usage"`
	Floors         int     `json:"floors"`
	GrossFloorArea float64 `json:"gross_floor_area"`
}

type EstimateLine struct {
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	FactorPerSqm float64 `json:"factor_per_sqm"`
}

type Estimate struct {
	ProfileCode    string         `json:"profile_code"`
	StructureType  string         `json:"structure_type"`
	Usage          string         `json:"usage"`
	Floors         int            `json:"floors"`
	GrossFloorArea float64        `json:"gross_floor_area"`
	Lines          []EstimateLine `json:"lines"`
}

// EstimateService produces rough per-area quantities from building profiles,
// before any work item breakdown exists.
type EstimateService interface {
	Estimate(ctx context.Context, input EstimateInput) (*Estimate, error)
}

type estimateService struct {
	db       *gorm.DB
	log      *logger.Logger
	profiles repos.BuildingProfileRepo
}

func NewEstimateService(db *gorm.DB, baseLog *logger.Logger, profiles repos.BuildingProfileRepo) EstimateService {
	return &estimateService{
		db:       db,
		log:      baseLog.With("service", "EstimateService"),
		profiles: profiles,
	}
}

func (s *estimateService) Estimate(ctx context.Context, input EstimateInput) (*Estimate, error) {
	if input.GrossFloorArea <= 0 {
		return nil, apierr.New(http.StatusUnprocessableEntity, "invalid_input", fmt.Errorf("%w: gross floor area must be positive", ErrValidation))
	}
	if input.Floors <= 0 {
		return nil, apierr.New(http.StatusUnprocessableEntity, "invalid_input", fmt.Errorf("%w: floors must be positive", ErrValidation))
	}

	candidates, err := s.profiles.ListByStructureUsage(dbctx.Context{Ctx: ctx}, input.StructureType, input.Usage)
	if err != nil {
		return nil, err
	}
	profile := selectProfile(candidates, input.Floors)
	if profile == nil {
		return nil, apierr.New(http.StatusNotFound, "no_matching_profile",
			fmt.Errorf("%w: %s/%s at %d floors", ErrNoProfile, input.StructureType, input.Usage, input.Floors))
	}

	factors, err := profile.FactorMap()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(factors))
	for name := range factors {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]EstimateLine, 0, len(names))
	for _, name := range names {
		f := factors[name]
		lines = append(lines, EstimateLine{
			Name:         name,
			Quantity:     f.Factor * input.GrossFloorArea,
			Unit:         f.Unit,
			FactorPerSqm: f.Factor,
		})
	}

	return &Estimate{
		ProfileCode:    profile.Code,
		StructureType:  input.StructureType,
		Usage:          input.Usage,
		Floors:         input.Floors,
		GrossFloorArea: input.GrossFloorArea,
		Lines:          lines,
	}, nil
}

// selectProfile keeps profiles whose floor range covers the building, then
// prefers the narrowest range; remaining ties go to the lowest code.
func selectProfile(candidates []*types.BuildingProfile, floors int) *types.BuildingProfile {
	var best *types.BuildingProfile
	for _, p := range candidates {
		if !p.MatchesFloors(floors) {
			continue
		}
		if best == nil || profileOutranks(p, best) {
			best = p
		}
	}
	return best
}

func profileOutranks(a, b *types.BuildingProfile) bool {
	if a.FloorSpan() != b.FloorSpan() {
		return a.FloorSpan() < b.FloorSpan()
	}
	return a.Code < b.Code
}
