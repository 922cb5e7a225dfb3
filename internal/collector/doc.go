// Package collector runs a single incremental collection session: it walks a
// paginated source page by page, keeps the accepted records deduplicated
// across resumes, persists the full sequence after every page and decides
// when to stop using the unified termination policy from package review.
package collector
