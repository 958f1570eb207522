package platform

import (
	"net/url"

	"github.com/rs/zerolog"

	"jobsee-orchestrator/internal/config"
	"jobsee-orchestrator/internal/domain/model"
	"jobsee-orchestrator/internal/domain/ports/adapter"
)

var indeedSelectors = Selectors{
	LoginURL:      "https://secure.indeed.com/account/login",
	LoginUser:     "input[type='email']",
	LoginContinue: "//button[@type='submit']",
	LoginPassword: "input[type='password']",
	LoginSubmit:   "//button[@type='submit']",
	LoginPending:  []string{"/account/login", "/auth", "/account/challenge"},

	SearchURL: func(title, location string) string {
		v := url.Values{}
		v.Set("q", title)
		v.Set("l", location)
		return "https://www.indeed.com/jobs?" + v.Encode()
	},
	SearchPath:    "/jobs",
	Listing:       "h2.jobTitle a",
	DetailTitle:   "h1.jobsearch-JobInfoHeader-title, h2.jobsearch-JobInfoHeader-title",
	DetailCompany: "[data-testid='inlineHeader-companyName']",

	OpenApply: []string{
		"//button[@id='indeedApplyButton']",
		"//button[contains(., 'Apply now') or contains(@aria-label, 'Apply')]",
	},
	Affordances: Affordances{
		Submit: []string{"//button[contains(., 'Submit your application')]"},
		Review: []string{"//button[contains(., 'Review your application')]"},
		Next:   []string{"//button[contains(., 'Continue')]"},
	},
}

// NewIndeed returns the Indeed direct-apply driver.
func NewIndeed(pc config.PlatformConfig, bc config.BrowserConfig, factory adapter.BrowserFactory, pacer adapter.Pacer, logger *zerolog.Logger) *Driver {
	return newDriver(model.PlatformIndeed, model.MethodDirectApply, indeedSelectors, pc, bc, factory, pacer, logger)
}
