// Package cache decorates the historical request path with a Redis response
// cache. Historical data for a closed date range never changes, so serving
// repeats from Redis avoids round-trips through the provider session.
package cache
