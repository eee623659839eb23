// Package config provides the configuration structures for deepcrawl.
//
// TraversalConfig describes a single traversal (strategy, caps, filters and
// keywords) and is validated once before any page is fetched. Config is the
// flat application-level configuration populated from CLI flags. File holds
// the reusable traversal profiles read from a .deepcrawl YAML file.
package config
