package platform

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"jobsee-orchestrator/internal/config"
	"jobsee-orchestrator/internal/domain"
	"jobsee-orchestrator/internal/domain/ports/adapter"
	"jobsee-orchestrator/internal/infra/pacing"
	"jobsee-orchestrator/internal/usecase"
)

// Build returns a run plan entry for every enabled platform in configuration
// order. Each platform gets a pacer with its own candidate cadence.
func Build(cfg *config.Config, factory adapter.BrowserFactory, pacer *pacing.Controller, logger *zerolog.Logger) ([]usecase.PlatformPlan, error) {
	var out []usecase.PlatformPlan
	for _, pc := range cfg.Platforms {
		if pc.Disabled {
			continue
		}
		p := pacer.ForCandidates(pc.CandidateDelay)
		var d *Driver
		switch strings.ToLower(pc.Name) {
		case "linkedin":
			d = NewLinkedIn(pc, cfg.Browser, factory, p, logger)
		case "indeed":
			d = NewIndeed(pc, cfg.Browser, factory, p, logger)
		default:
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownPlatform, pc.Name)
		}
		out = append(out, usecase.PlatformPlan{
			Driver:       d,
			Pacer:        p,
			Weight:       pc.Weight,
			HardCap:      pc.HardCap,
			DailyCap:     pc.DailyCap,
			MaxTitles:    pc.MaxTitles,
			MaxLocations: pc.MaxLocations,
			PerSearchCap: pc.PerSearchCap,
		})
	}
	return out, nil
}
