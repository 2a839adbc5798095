// Package model defines the data carried through the resolution pipeline.
// All entities are owned by a single work item and never shared across items.
package model

import "time"

// SearchRequest asks the resolver to discover and rank detail pages
// for a keyword before resolving the top N of them.
type SearchRequest struct {
	Keyword string `json:"keyword"`
}

// DetailRequest asks the resolver to extract media from one detail page.
// Rank and Popularity are set when the request came out of keyword ranking
// and stay nil for direct-URL work.
type DetailRequest struct {
	URL        string `json:"url"`
	Rank       *int   `json:"rank,omitempty"`
	Popularity *int   `json:"popularity,omitempty"`
}

// WorkItem is one unit of work for the pool: exactly one of Search or
// Detail is set.
type WorkItem struct {
	Search *SearchRequest
	Detail *DetailRequest
}

// CandidateLink is a discovered detail-page URL plus the surrounding text
// captured at discovery time. The text is only used for scoring and is
// discarded after ranking.
type CandidateLink struct {
	URL         string `json:"url"`
	ContextText string `json:"text"`
}

// ScoredCandidate is a CandidateLink with its popularity score attached.
type ScoredCandidate struct {
	CandidateLink
	Popularity int
}

// ResultRecord is the terminal output unit, one per processed detail page.
// Nil VideoURL means the page loaded but no playable media was found, or
// the page failed entirely; both are reportable outcomes, not errors.
type ResultRecord struct {
	PageURL    string    `json:"page_url" bson:"page_url"`
	Title      string    `json:"title" bson:"title"`
	VideoURL   *string   `json:"video_url" bson:"video_url"`
	Likes      *int      `json:"likes" bson:"likes"`
	Rank       *int      `json:"rank" bson:"rank"`
	ResolvedAt time.Time `json:"resolved_at" bson:"resolved_at"`
}
