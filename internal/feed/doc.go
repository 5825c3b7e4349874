// Package feed fetches new content listings, preferring the JSON listing
// API and degrading to HTML scraping when the listing is unavailable.
package feed
