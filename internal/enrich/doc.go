// Package enrich scores ingested items for lead relevance through an
// OpenAI-compatible chat completion API.
package enrich
