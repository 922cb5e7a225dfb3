// Package fetcher holds the page addressing shared by the HTTP and headless
// page sources, and the promoting source that falls back to a browser when a
// plain fetch does not carry review content.
package fetcher
