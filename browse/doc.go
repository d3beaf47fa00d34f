// Package browse reads web pages into readable text and outbound links.
//
// HTTPFetcher downloads pages with net/http; the rod sub package renders
// them in a headless browser first. Both share ParseHTML.
package browse
