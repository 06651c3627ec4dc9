// Package core holds the site and device inventory domain: entity
// definitions, the bulk import pipeline, single-record CRUD, stats and export.
//
// It has no HTTP or SQL dependencies. Persistence is reached through the
// [Store] interface, implemented by the packages under internal/store.
//
// # Entity Registry
//
// Sites and devices are described by an [EntityDefinition] registered at init
// time. A definition lists canonical field names with their aliases, types and
// validation rules, plus the functions that build, key, find and persist
// records of that entity:
//
//	def, ok := core.Get("sites")
//	row := core.Normalize(def, raw)
//
// # Import Pipeline
//
// A bulk import runs each row through the same stages, strictly in input
// order and on the calling goroutine:
//
//  1. [ParseCSV] / [ParseRecords] produce [RawRow] values keyed by header text.
//     A malformed file fails with [*ParseError] before anything is written.
//  2. [Normalize] maps aliases to canonical names and coerces numbers and
//     dates. Coercion problems are attached to the row, never raised.
//  3. [Validator] turns a [NormalizedRow] into a [Verdict].
//  4. [Resolver] rejects rows whose unique key exists in the store or earlier
//     in the same batch.
//  5. [Committer] writes accepted rows one at a time. A failed write is
//     recorded against its row and the run continues.
//
// The result is an [ImportSummary] with success and failure counts and one
// [RowError] per failed row. Every row ends in exactly one terminal
// [RowState].
//
// # Error Handling
//
// Domain errors are typed ([*ParseError], [*DuplicateConflict],
// [*ConstraintViolation], [ValidationErrors]) or sentinel ([ErrNotFound],
// [ErrSiteHasDevices]). [MapError] converts any of them into a [UserMessage]
// with a stable support code.
package core
