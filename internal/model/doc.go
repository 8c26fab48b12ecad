// Package model defines the flat, JSON-ready records the bridge serves.
//
// Conventions:
//   - Field values keep the type the provider assigned (number, string, date
//     string); no coercion happens between extraction and serialization.
//   - Field order within a security is the provider's encounter order.
//   - Historical series are sorted ascending by date.
package model
