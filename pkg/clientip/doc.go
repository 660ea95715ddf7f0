// Package clientip extracts the originating client IP from HTTP requests
// behind common proxy and CDN setups. The ingestion pipeline hashes the
// result before storage; the cleartext IP never leaves the request scope.
package clientip
