// Package search queries a SearXNG instance for result URLs.
package search
