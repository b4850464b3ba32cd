package fetch

import (
	"net/url"
	"strings"
)

// Platform represents a known job board platform.
type Platform string

// Known platforms.
const (
	PlatformGreenhouse      Platform = "greenhouse"
	PlatformLever           Platform = "lever"
	PlatformWorkday         Platform = "workday"
	PlatformAshby           Platform = "ashby"
	PlatformSmartRecruiters Platform = "smartrecruiters"
	PlatformUnknown         Platform = "unknown"
)

type platformRule struct {
	platform Platform
	hosts    []string
	content  []string
	noise    []string
}

var platformRules = []platformRule{
	{
		platform: PlatformGreenhouse,
		hosts:    []string{"greenhouse.io"},
		content:  []string{".job__description.body", ".job__description", ".job-description__content", "#content", ".job-post-container"},
		noise:    []string{".application--wrapper", ".voluntary-self-id", "#usa_self_id_section", ".post-apply"},
	},
	{
		platform: PlatformLever,
		hosts:    []string{"lever.co"},
		content:  []string{".posting-page", ".section-wrapper.page-full-width", ".posting-description", ".content"},
		noise:    []string{".apply-section", ".lever-application-form", ".posting-apply"},
	},
	{
		platform: PlatformWorkday,
		hosts:    []string{"workday.com", "myworkdayjobs.com"},
		content:  []string{"[data-automation-id='jobDescription']", ".job-description"},
		noise:    []string{"[data-automation-id='applyButton']", ".application-section"},
	},
	{
		platform: PlatformAshby,
		hosts:    []string{"ashbyhq.com"},
		content:  []string{"._descriptionText", "[class*='descriptionText']", "main"},
		noise:    []string{"._applicationForm", "[class*='applicationForm']"},
	},
	{
		platform: PlatformSmartRecruiters,
		hosts:    []string{"smartrecruiters.com"},
		content:  []string{".job-sections", "[itemprop='description']", "main"},
		noise:    []string{".apply-button", ".job-footer"},
	},
}

// commonNoiseSelectors strip application forms, EEO text, sharing widgets, and consent banners.
var commonNoiseSelectors = []string{
	"form",
	"#application-form",
	".application-form",
	".apply-button-container",
	"[data-testid='application-form']",
	".voluntary-disclosure",
	".eeo-statement",
	".eeo-section",
	".legal-disclosure",
	".self-identification",
	".social-share",
	".share-buttons",
	".cookie-consent",
	".gdpr-notice",
}

// DetectPlatform identifies the job board platform from a URL host.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}
	host := strings.ToLower(parsed.Hostname())
	if rule, ok := ruleForHost(host); ok {
		return rule.platform
	}
	return PlatformUnknown
}

// PlatformContentSelectors returns content selectors for a platform.
func PlatformContentSelectors(platform Platform) []string {
	for _, rule := range platformRules {
		if rule.platform == platform {
			return append([]string(nil), rule.content...)
		}
	}
	return JobPostingSelectors()
}

// PlatformNoiseSelectors returns noise exclusion selectors for a platform.
func PlatformNoiseSelectors(platform Platform) []string {
	selectors := append([]string(nil), commonNoiseSelectors...)
	for _, rule := range platformRules {
		if rule.platform == platform {
			return append(selectors, rule.noise...)
		}
	}
	return selectors
}

func ruleForHost(host string) (platformRule, bool) {
	for _, rule := range platformRules {
		for _, h := range rule.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return rule, true
			}
		}
	}
	return platformRule{}, false
}
