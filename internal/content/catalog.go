// Package content holds the static page catalog: service price lists, gallery,
// indications and contraindications, contacts and the lead form's service choices.
package content

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var (
	// ErrEmptyServices is returned when the catalog has no service groups.
	ErrEmptyServices = errors.New("content: at least one service group is required")

	// ErrEmptyChoices is returned when the lead form would have nothing to select.
	ErrEmptyChoices = errors.New("content: at least one service choice is required")
)

// Catalog is the immutable content rendered on the page.
type Catalog struct {
	Studio            Studio          `yaml:"studio"`
	Hero              Hero            `yaml:"hero"`
	Currency          string          `yaml:"currency"`
	Services          []ServiceGroup  `yaml:"services"`
	Gallery           []string        `yaml:"gallery"`
	Indications       []string        `yaml:"indications"`
	Contraindications []string        `yaml:"contraindications"`
	Notice            Notice          `yaml:"notice"`
	Contacts          Contacts        `yaml:"contacts"`
	ServiceChoices    []ServiceChoice `yaml:"service_choices"`
}

type Studio struct {
	Tagline       string `yaml:"tagline"`
	Badge         string `yaml:"badge"`
	CopyrightYear int    `yaml:"copyright_year"`
}

type Hero struct {
	Title             string `yaml:"title"`
	Highlight         string `yaml:"highlight"`
	Lead              string `yaml:"lead"`
	Image             string `yaml:"image"`
	ImageAlt          string `yaml:"image_alt"`
	PrimaryCTA        string `yaml:"primary_cta"`
	SecondaryCTA      string `yaml:"secondary_cta"`
	RatingCaption     string `yaml:"rating_caption"`
	RatingNote        string `yaml:"rating_note"`
	ExperienceValue   string `yaml:"experience_value"`
	ExperienceCaption string `yaml:"experience_caption"`
}

// ServiceGroup is one price card, e.g. permanent makeup with its zones.
type ServiceGroup struct {
	Title string        `yaml:"title"`
	Icon  string        `yaml:"icon"`
	Items []ServiceItem `yaml:"items"`
}

// ServiceItem is a single priced line. Price is free text ("2000-4000").
type ServiceItem struct {
	Name      string `yaml:"name"`
	Price     string `yaml:"price"`
	OnRequest bool   `yaml:"on_request"`
}

type Notice struct {
	Title string `yaml:"title"`
	Text  string `yaml:"text"`
}

type Contacts struct {
	Phone           string `yaml:"phone"`
	PhoneDisplay    string `yaml:"phone_display"`
	InstagramURL    string `yaml:"instagram_url"`
	InstagramHandle string `yaml:"instagram_handle"`
	TelegramURL     string `yaml:"telegram_url"`
	TelegramHandle  string `yaml:"telegram_handle"`
}

// PhoneHref returns the tel: link for the studio phone.
func (c Contacts) PhoneHref() string {
	return "tel:" + strings.ReplaceAll(c.Phone, " ", "")
}

// ServiceChoice is one option of the lead form's service select.
type ServiceChoice struct {
	Code  string `yaml:"code"`
	Label string `yaml:"label"`
}

// Default parses the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog override from path, or the embedded catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("content: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("content: decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the structural requirements the page relies on.
func (c *Catalog) Validate() error {
	if len(c.Services) == 0 {
		return ErrEmptyServices
	}
	for i, group := range c.Services {
		if strings.TrimSpace(group.Title) == "" {
			return fmt.Errorf("content: service group %d has no title", i)
		}
		if len(group.Items) == 0 {
			return fmt.Errorf("content: service group %q has no items", group.Title)
		}
	}
	if len(c.ServiceChoices) == 0 {
		return ErrEmptyChoices
	}
	seen := make(map[string]struct{}, len(c.ServiceChoices))
	for _, choice := range c.ServiceChoices {
		code := strings.TrimSpace(choice.Code)
		if code == "" || strings.TrimSpace(choice.Label) == "" {
			return fmt.Errorf("content: service choice needs code and label (got %q/%q)", choice.Code, choice.Label)
		}
		if _, dup := seen[code]; dup {
			return fmt.Errorf("content: duplicate service choice %q", code)
		}
		seen[code] = struct{}{}
	}
	return nil
}

// ChoiceLabel returns the label for a service code.
func (c *Catalog) ChoiceLabel(code string) (string, bool) {
	for _, choice := range c.ServiceChoices {
		if choice.Code == code {
			return choice.Label, true
		}
	}
	return "", false
}

// MissingChoices lists codes that have no service choice in the catalog.
func (c *Catalog) MissingChoices(codes []string) []string {
	var missing []string
	for _, code := range codes {
		if _, ok := c.ChoiceLabel(code); !ok {
			missing = append(missing, code)
		}
	}
	return missing
}
