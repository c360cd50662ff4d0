package seogate

import (
	"fmt"
	"regexp"
	"strings"
)

// Classification is the per-request routing decision. Ephemeral, never
// persisted.
type Classification struct {
	IsBot         bool
	IsRenderable  bool
	IsStaticAsset bool
}

// Classifier decides bot vs. human and whether a path is one of the
// SEO-significant renderable routes. Pattern sets are injected at
// construction so tests can substitute their own.
type Classifier struct {
	botAgents     []string
	assetPrefixes []string
	routes        []*regexp.Regexp
}

func newClassifier(botAgents, assetPrefixes, routePatterns []string) (*Classifier, error) {
	c := &Classifier{
		assetPrefixes: assetPrefixes,
	}
	c.botAgents = make([]string, 0, len(botAgents))
	for _, a := range botAgents {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			c.botAgents = append(c.botAgents, a)
		}
	}
	c.routes = make([]*regexp.Regexp, 0, len(routePatterns))
	for i, p := range routePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("routes[%d]: %w", i, err)
		}
		c.routes = append(c.routes, re)
	}
	return c, nil
}

// Classify is a total function over its string inputs: any path and any
// User-Agent (including empty) produce a classification, never an error.
// A static-asset path short-circuits; bot/renderable are left false for it.
func (c *Classifier) Classify(path, userAgent string) Classification {
	if c.isStaticAsset(path) {
		return Classification{IsStaticAsset: true}
	}
	return Classification{
		IsBot:        c.isBot(userAgent),
		IsRenderable: c.isRenderable(path),
	}
}

func (c *Classifier) isStaticAsset(path string) bool {
	for _, p := range c.assetPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	// /api/ is handled by a separate proxy layer, never by this gateway.
	if strings.HasPrefix(path, "/api/") {
		return true
	}
	// A dot in the final segment means a file extension.
	if i := strings.LastIndexByte(path, '/'); i >= 0 && strings.ContainsRune(path[i+1:], '.') {
		return true
	}
	return false
}

func (c *Classifier) isBot(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	ua := strings.ToLower(userAgent)
	for _, a := range c.botAgents {
		if strings.Contains(ua, a) {
			return true
		}
	}
	return false
}

func (c *Classifier) isRenderable(path string) bool {
	for _, re := range c.routes {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
