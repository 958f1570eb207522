package platform

import (
	"net/url"

	"github.com/rs/zerolog"

	"jobsee-orchestrator/internal/config"
	"jobsee-orchestrator/internal/domain/model"
	"jobsee-orchestrator/internal/domain/ports/adapter"
)

var linkedInSelectors = Selectors{
	LoginURL:      "https://www.linkedin.com/login",
	LoginUser:     "#username",
	LoginPassword: "#password",
	LoginSubmit:   "//button[@type='submit']",
	LoginPending:  []string{"/login", "/checkpoint", "/uas/"},

	SearchURL: func(title, location string) string {
		v := url.Values{}
		v.Set("keywords", title)
		v.Set("location", location)
		v.Set("f_AL", "true") // Easy Apply only
		return "https://www.linkedin.com/jobs/search/?" + v.Encode()
	},
	SearchPath:    "/jobs/search",
	Listing:       ".job-search-card, .job-card-container",
	ListingLink:   "a.base-card__full-link, a.job-card-list__title",
	DetailTitle:   ".job-details-jobs-unified-top-card__job-title",
	DetailCompany: ".job-details-jobs-unified-top-card__company-name",

	OpenApply: []string{"//button[contains(@aria-label, 'Easy Apply')]"},
	Affordances: Affordances{
		Submit: []string{"//button[contains(@aria-label, 'Submit application')]"},
		Review: []string{"//button[contains(., 'Review')]"},
		Next:   []string{"//button[contains(., 'Next')]", "//button[contains(@aria-label, 'Continue to next step')]"},
	},
}

// NewLinkedIn returns the LinkedIn Easy Apply driver.
func NewLinkedIn(pc config.PlatformConfig, bc config.BrowserConfig, factory adapter.BrowserFactory, pacer adapter.Pacer, logger *zerolog.Logger) *Driver {
	return newDriver(model.PlatformLinkedIn, model.MethodEasyApply, linkedInSelectors, pc, bc, factory, pacer, logger)
}
