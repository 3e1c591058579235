// Package sysinfo builds the one-shot static host summary sent in the session
// greeting and served over HTTP.
package sysinfo

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/hostpulse/server/internal/provider"
)

const (
	SchemeDark  = "dark"
	SchemeLight = "light"
)

type Summary struct {
	CPU CPUSummary `json:"cpu"`
	Mem uint64     `json:"mem"`
	OS  OSSummary  `json:"os"`
}

type CPUSummary struct {
	Manufacturer string `json:"manufacturer"`
	Brand        string `json:"brand"`
	Cores        int    `json:"cores"`
}

type OSSummary struct {
	Name    string `json:"name"`
	Release string `json:"release"`
	LogoURI string `json:"logoUri"`
}

type Summarizer struct {
	provider   provider.Provider
	logoPrefix string
}

func NewSummarizer(p provider.Provider, logoPrefix string) *Summarizer {
	if logoPrefix == "" {
		logoPrefix = "/os_logos"
	}
	return &Summarizer{provider: p, logoPrefix: logoPrefix}
}

// NormalizeScheme maps a caller-supplied color scheme to light or dark.
// Only "light" selects the light variant.
func NormalizeScheme(scheme string) string {
	if strings.EqualFold(strings.TrimSpace(scheme), SchemeLight) {
		return SchemeLight
	}
	return SchemeDark
}

// Summary collects the static host description. Partial provider failures
// leave the affected fields empty; it fails only when nothing could be read.
func (s *Summarizer) Summary(ctx context.Context, scheme string) (Summary, error) {
	host, hostErr := s.provider.Host(ctx)
	mem, memErr := s.provider.Memory(ctx)
	if hostErr != nil && memErr != nil && host == (provider.Host{}) {
		return Summary{}, fmt.Errorf("static summary: host: %v; memory: %w", hostErr, memErr)
	}

	name := host.Platform
	if name == "" {
		name = host.OS
	}

	return Summary{
		CPU: CPUSummary{
			Manufacturer: host.Manufacturer,
			Brand:        host.Brand,
			Cores:        host.Cores,
		},
		Mem: mem.Total,
		OS: OSSummary{
			Name:    name,
			Release: host.Release,
			LogoURI: path.Join(s.logoPrefix, LogoFile(LogoFamily(host), scheme)),
		},
	}, nil
}

// LogoFamily classifies a host into one of the logo families.
func LogoFamily(h provider.Host) string {
	osName := strings.ToLower(h.OS)
	platform := strings.ToLower(h.Platform)

	switch {
	case osName == "android" || platform == "android":
		return "android"
	case osName == "darwin" || osName == "ios" || platform == "darwin" || strings.Contains(platform, "mac"):
		return "apple"
	case osName == "windows" || strings.Contains(platform, "windows"):
		return "windows"
	}

	switch platform {
	case "ubuntu", "debian", "fedora":
		return platform
	}
	return "linux"
}

// LogoFile returns the logo file name for family in the given scheme. Only
// the Apple logo has light and dark variants.
func LogoFile(family, scheme string) string {
	switch family {
	case "apple":
		if NormalizeScheme(scheme) == SchemeLight {
			return "apple_light.svg"
		}
		return "apple_dark.svg"
	case "android", "debian", "fedora", "ubuntu", "windows":
		return family + ".svg"
	}
	return "linux.svg"
}
