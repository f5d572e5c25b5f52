// Package embed is the code running inside the embed surface: it interprets
// the configuration, renders one view through a Renderer and reacts to live
// config-update messages from the host loader.
package embed

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

type (
	Theme    string
	Language string
	Mode     string
	View     string
)

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"

	LanguageEN Language = "en"
	LanguageES Language = "es"
	LanguagePT Language = "pt"

	ModeStandalone Mode = "standalone"
	ModeEmbedded   Mode = "embedded"

	ViewDashboard View = "dashboard"
	ViewAccount   View = "account"
)

var ErrInvalidConfig = errors.New("invalid embed configuration")

// Config is the live configuration of one embed instance.
type Config struct {
	ContainerID string `json:"-"`
	ClientID    string `json:"-"`
	ClientToken string `json:"-"`
	Token       string `json:"-"` // widget token handed over by the loader, if any

	Embedded  bool     `json:"embedded"`
	Theme     Theme    `json:"theme"`
	Language  Language `json:"language"`
	Mode      Mode     `json:"mode"`
	View      View     `json:"view"`
	AccountID string   `json:"accountId,omitempty"`
	// EnabledSections whitelists UI regions; nil or empty means every section.
	EnabledSections []string `json:"enabledSections,omitempty"`
}

// Partial is the payload of a config-update; nil fields are left untouched.
type Partial struct {
	Theme           *Theme    `json:"theme,omitempty"`
	Language        *Language `json:"language,omitempty"`
	Mode            *Mode     `json:"mode,omitempty"`
	View            *View     `json:"view,omitempty"`
	AccountID       *string   `json:"accountId,omitempty"`
	EnabledSections *[]string `json:"enabledSections,omitempty"`
}

// Defaults returns the configuration used for absent fields.
func Defaults() Config {
	return Config{
		Embedded: true,
		Theme:    ThemeLight,
		Language: LanguageES,
		Mode:     ModeEmbedded,
		View:     ViewDashboard,
	}
}

// WithDefaults fills empty enum fields.
func (c Config) WithDefaults() Config {
	d := Defaults()
	if c.Theme == "" {
		c.Theme = d.Theme
	}
	if c.Language == "" {
		c.Language = d.Language
	}
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.View == "" {
		c.View = d.View
	}
	if len(c.EnabledSections) == 0 {
		c.EnabledSections = nil
	}
	return c
}

// Merge applies p over c shallowly: fields present in p replace, others are kept.
func (c Config) Merge(p Partial) Config {
	if p.Theme != nil {
		c.Theme = *p.Theme
	}
	if p.Language != nil {
		c.Language = *p.Language
	}
	if p.Mode != nil {
		c.Mode = *p.Mode
	}
	if p.View != nil {
		c.View = *p.View
	}
	if p.AccountID != nil {
		c.AccountID = *p.AccountID
	}
	if p.EnabledSections != nil {
		// An empty list resets to every section, as it does through the iframe URL.
		c.EnabledSections = nil
		if len(*p.EnabledSections) > 0 {
			c.EnabledSections = slices.Clone(*p.EnabledSections)
		}
	}
	return c
}

// Merge combines two partials; fields set in next win.
func (p Partial) Merge(next Partial) Partial {
	if next.Theme != nil {
		p.Theme = next.Theme
	}
	if next.Language != nil {
		p.Language = next.Language
	}
	if next.Mode != nil {
		p.Mode = next.Mode
	}
	if next.View != nil {
		p.View = next.View
	}
	if next.AccountID != nil {
		p.AccountID = next.AccountID
	}
	if next.EnabledSections != nil {
		p.EnabledSections = next.EnabledSections
	}
	return p
}

// IsZero reports whether p changes nothing.
func (p Partial) IsZero() bool {
	return p == Partial{}
}

// Validate checks enum values and that the account view names an account.
func (c Config) Validate() error {
	var errs []error
	switch c.Theme {
	case ThemeLight, ThemeDark:
	default:
		errs = append(errs, fmt.Errorf("theme %q", c.Theme))
	}
	switch c.Language {
	case LanguageEN, LanguageES, LanguagePT:
	default:
		errs = append(errs, fmt.Errorf("language %q", c.Language))
	}
	switch c.Mode {
	case ModeStandalone, ModeEmbedded:
	default:
		errs = append(errs, fmt.Errorf("mode %q", c.Mode))
	}
	switch c.View {
	case ViewDashboard:
	case ViewAccount:
		if c.AccountID == "" {
			errs = append(errs, errors.New("account view requires accountId"))
		}
	default:
		errs = append(errs, fmt.Errorf("view %q", c.View))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// SectionEnabled reports whether a UI region should render.
func (c Config) SectionEnabled(name string) bool {
	return len(c.EnabledSections) == 0 || slices.Contains(c.EnabledSections, name)
}

// Query encodes c the way the loader builds the iframe URL. The account view
// is only sent together with an accountId; otherwise the dashboard is requested.
func (c Config) Query() url.Values {
	c = c.WithDefaults()
	q := url.Values{}
	q.Set("embedded", "true")
	q.Set("theme", string(c.Theme))
	q.Set("language", string(c.Language))
	q.Set("mode", string(c.Mode))
	if c.View == ViewAccount && c.AccountID != "" {
		q.Set("view", string(ViewAccount))
		q.Set("accountId", c.AccountID)
	} else {
		q.Set("view", string(ViewDashboard))
	}
	if len(c.EnabledSections) > 0 {
		q.Set("sections", strings.Join(c.EnabledSections, ","))
	}
	if c.Token != "" {
		q.Set("token", c.Token)
	}
	return q
}

// ParseQuery reads the configuration from an iframe URL query.
func ParseQuery(q url.Values) Config {
	c := Config{
		Embedded:  q.Get("embedded") == "true",
		Theme:     Theme(q.Get("theme")),
		Language:  Language(q.Get("language")),
		Mode:      Mode(q.Get("mode")),
		View:      View(q.Get("view")),
		AccountID: q.Get("accountId"),
		Token:     q.Get("token"),
	}
	if s := q.Get("sections"); s != "" {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				c.EnabledSections = append(c.EnabledSections, part)
			}
		}
	}
	return c.WithDefaults()
}
