// Package bank provides the typed question bank model and the canonical
// serialization it is hashed with.
//
// All other internal packages import bank; bank imports nothing internal.
// This keeps it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - thresholds are integers, shares are
//     compared by cross-multiplication
//   - Canonical JSON (RFC 8785) is the only serialization that feeds a hash
//   - All JSON tags use snake_case
//   - A Package is sealed once and immutable afterwards
package bank
