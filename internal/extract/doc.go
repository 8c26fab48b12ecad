// Package extract turns provider response and event trees into flat,
// JSON-ready records.
//
// Extraction never fails on missing-but-optional structure: an absent
// securityData collection yields no rows, an absent error element means that
// scope reported no problem. Data and errors are extracted independently and
// may both be non-empty for the same response.
package extract
