// Package catalog loads the versioned compilation rule catalog and enforces
// its integrity. A catalog that fails any check is never returned.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"golang.org/x/net/idna"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

type document struct {
	Version      string                      `yaml:"version"`
	Jurisdiction string                      `yaml:"jurisdiction"`
	Profiles     []domain.CompilationProfile `yaml:"profiles"`
}

// Catalog is immutable after Load and safe for concurrent reads.
type Catalog struct {
	version      string
	jurisdiction string
	profiles     []domain.CompilationProfile
	byID         map[string]int
	forums       map[string][]int
	ruleIDs      map[string]string
}

// LoadDefault parses the catalog embedded in the binary.
func LoadDefault() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// LoadFile parses a catalog from path, or the embedded catalog when path is empty.
func LoadFile(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return LoadDefault()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a YAML (or JSON) catalog and validates it.
func Parse(raw []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.WrapError(domain.ErrCatalogIntegrity, "decode catalog", errors.New("empty document"))
		}
		return nil, domain.WrapError(domain.ErrCatalogIntegrity, "decode catalog", err)
	}
	return build(doc)
}

func build(doc document) (*Catalog, error) {
	if err := validateDocument(doc); err != nil {
		return nil, domain.WrapError(domain.ErrCatalogIntegrity, "validate catalog", err)
	}

	c := &Catalog{
		version:      doc.Version,
		jurisdiction: doc.Jurisdiction,
		profiles:     doc.Profiles,
		byID:         make(map[string]int, len(doc.Profiles)),
		forums:       make(map[string][]int),
		ruleIDs:      make(map[string]string),
	}
	for i, p := range doc.Profiles {
		c.byID[p.ProfileID] = i
		c.forums[p.Forum] = append(c.forums[p.Forum], i)
		for _, id := range p.RuleIDs() {
			c.ruleIDs[id] = p.ProfileID
		}
	}
	return c, nil
}

func (c *Catalog) Version() string      { return c.version }
func (c *Catalog) Jurisdiction() string { return c.jurisdiction }

func (c *Catalog) Profile(profileID string) (domain.CompilationProfile, error) {
	i, ok := c.byID[profileID]
	if !ok {
		return domain.CompilationProfile{}, domain.WrapError(
			domain.ErrUnknownProfile,
			"lookup profile",
			fmt.Errorf("profile_id=%q", profileID),
		)
	}
	return c.profiles[i], nil
}

// Profiles returns profiles in declaration order.
func (c *Catalog) Profiles() []domain.CompilationProfile {
	return append([]domain.CompilationProfile(nil), c.profiles...)
}

func (c *Catalog) Forums() []string {
	out := make([]string, 0, len(c.forums))
	seen := make(map[string]struct{}, len(c.forums))
	for _, p := range c.profiles {
		if _, ok := seen[p.Forum]; ok {
			continue
		}
		seen[p.Forum] = struct{}{}
		out = append(out, p.Forum)
	}
	return out
}

func (c *Catalog) HasForum(forum string) bool {
	_, ok := c.forums[forum]
	return ok
}

// DefaultProfileForForum is the first profile declared for forum.
func (c *Catalog) DefaultProfileForForum(forum string) (domain.CompilationProfile, bool) {
	idx, ok := c.forums[forum]
	if !ok || len(idx) == 0 {
		return domain.CompilationProfile{}, false
	}
	return c.profiles[idx[0]], true
}

// RuleOwner reports which profile declares ruleID.
func (c *Catalog) RuleOwner(ruleID string) (string, bool) {
	owner, ok := c.ruleIDs[ruleID]
	return owner, ok
}

// RuleIDs returns the global rule id set.
func (c *Catalog) RuleIDs() map[string]struct{} {
	out := make(map[string]struct{}, len(c.ruleIDs))
	for id := range c.ruleIDs {
		out[id] = struct{}{}
	}
	return out
}

func validateDocument(doc document) error {
	if strings.TrimSpace(doc.Version) == "" {
		return errors.New("version is required")
	}
	if strings.TrimSpace(doc.Jurisdiction) == "" {
		return errors.New("jurisdiction is required")
	}
	if len(doc.Profiles) == 0 {
		return errors.New("at least one profile is required")
	}

	profileIDs := make(map[string]struct{}, len(doc.Profiles))
	ruleIDs := make(map[string]string)
	for _, p := range doc.Profiles {
		if strings.TrimSpace(p.ProfileID) == "" {
			return errors.New("profile_id is required")
		}
		if _, dup := profileIDs[p.ProfileID]; dup {
			return fmt.Errorf("duplicate profile_id %q", p.ProfileID)
		}
		profileIDs[p.ProfileID] = struct{}{}

		if err := validateProfile(p); err != nil {
			return fmt.Errorf("profile %q: %w", p.ProfileID, err)
		}
		for _, id := range p.RuleIDs() {
			if owner, dup := ruleIDs[id]; dup {
				return fmt.Errorf("duplicate rule_id %q (profiles %q and %q)", id, owner, p.ProfileID)
			}
			ruleIDs[id] = p.ProfileID
		}
	}
	return nil
}

func validateProfile(p domain.CompilationProfile) error {
	if strings.TrimSpace(p.Forum) == "" {
		return errors.New("forum is required")
	}
	for _, r := range p.RequiredDocuments {
		if err := validateRule(r.Rule); err != nil {
			return err
		}
		if err := validateType(r.RuleID, "document_type", r.DocumentType); err != nil {
			return err
		}
	}
	for _, r := range p.ConditionalRules {
		if err := validateRule(r.Rule); err != nil {
			return err
		}
		if err := validateType(r.RuleID, "when_document_type", r.WhenDocumentType); err != nil {
			return err
		}
		if err := validateType(r.RuleID, "requires_document_type", r.RequiresDocumentType); err != nil {
			return err
		}
	}

	order := p.OrderRequirements
	if err := validateRule(order.Rule); err != nil {
		return fmt.Errorf("order_requirements: %w", err)
	}
	if len(order.DocumentTypes) == 0 {
		return errors.New("order_requirements.document_types is empty")
	}
	seen := make(map[domain.DocumentType]struct{}, len(order.DocumentTypes))
	for _, t := range order.DocumentTypes {
		if err := validateType(order.RuleID, "document_types", t); err != nil {
			return err
		}
		if _, dup := seen[t]; dup {
			return fmt.Errorf("order_requirements lists %q twice", t)
		}
		seen[t] = struct{}{}
	}

	pagination := p.PaginationRequirements
	if err := validateRule(pagination.Rule); err != nil {
		return fmt.Errorf("pagination_requirements: %w", err)
	}
	if pagination.MaxTotalPages < 0 {
		return errors.New("pagination_requirements.max_total_pages must not be negative")
	}

	sections := make(map[string]struct{}, len(p.RecordSections))
	for _, s := range p.RecordSections {
		if strings.TrimSpace(s.SectionID) == "" {
			return errors.New("record section without section_id")
		}
		if _, dup := sections[s.SectionID]; dup {
			return fmt.Errorf("duplicate record section %q", s.SectionID)
		}
		sections[s.SectionID] = struct{}{}
		for _, t := range s.DocumentTypes {
			if err := validateType(s.SectionID, "record_sections", t); err != nil {
				return err
			}
		}
	}

	if d := p.Deadline; d != nil {
		if err := validateRule(d.Rule); err != nil {
			return fmt.Errorf("deadline: %w", err)
		}
		if d.ReferenceField != domain.ReferenceDecisionDate && d.ReferenceField != domain.ReferenceHearingDate {
			return fmt.Errorf("deadline %q: unsupported reference_field %q", d.RuleID, d.ReferenceField)
		}
		if d.Direction != domain.DirectionAfter && d.Direction != domain.DirectionBefore {
			return fmt.Errorf("deadline %q: unsupported direction %q", d.RuleID, d.Direction)
		}
		if d.Days <= 0 {
			return fmt.Errorf("deadline %q: days must be positive", d.RuleID)
		}
	}
	return nil
}

func validateRule(r domain.Rule) error {
	if strings.TrimSpace(r.RuleID) == "" {
		return errors.New("rule without rule_id")
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("rule %q: invalid severity %q", r.RuleID, r.Severity)
	}
	if strings.TrimSpace(r.Remediation) == "" {
		return fmt.Errorf("rule %q: remediation is required", r.RuleID)
	}
	if err := validateSourceURL(r.SourceURL); err != nil {
		return fmt.Errorf("rule %q: %w", r.RuleID, err)
	}
	return nil
}

func validateType(owner, field string, t domain.DocumentType) error {
	if !domain.IsCanonicalDocumentType(t) {
		return fmt.Errorf("%s: %s references unknown document type %q", owner, field, t)
	}
	return nil
}

func validateSourceURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("source_url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("source_url %q: scheme must be http or https", raw)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("source_url %q: host is required", raw)
	}
	if _, err := idna.Lookup.ToASCII(host); err != nil {
		return fmt.Errorf("source_url %q: invalid host: %w", raw, err)
	}
	return nil
}
