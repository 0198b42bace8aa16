// Package domain defines the core relay types and interfaces.
//
// Concept-oriented files (role.go, errors.go, dedupe.go) hold shared types and
// the contracts consumed across packages. No implementation code lives here.
package domain
