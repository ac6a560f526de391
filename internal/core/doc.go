// Package core provides the record import engine.
//
// The engine reads a delimiter-separated file, matches every record to an
// existing entity by its identifier attribute (or creates one), applies the
// record's values and saves the entity. It has no storage or transport
// dependencies; stores plug in through the collaborator interfaces in
// types.go.
//
// # Columns
//
// In strict mode each header column is decoded by [DecodeColumn] into an
// attribute code plus optional locale and scope:
//
//	sku;name-en_US;price-ecommerce;description-en_US-ecommerce
//
// A column that cannot be decoded aborts the run before any record is
// processed. In flat mode (Config.Strict false) a column name is the
// attribute code as is.
//
// # Running an import
//
//	p, err := core.New(core.DefaultConfig("products.csv"), core.SessionDependencies(session, updater))
//	if err != nil {
//	    return err
//	}
//	outcome, err := p.Import(ctx)
//
// Records run sequentially. A record that fails (missing identifier, unknown
// attribute, invalid value, lookup or save error, timeout) becomes one
// warning on the [ExecutionContext] and the run moves on. Saved work is
// flushed exactly once at the end of the run, including after cancellation.
//
// [Runner] runs pipelines in the background with bounded concurrency for
// the HTTP service.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - IMP001-IMP004: file and header errors
//   - REC001-REC005: record errors
//   - CFG001: configuration errors
//   - DB001-DB005: database errors
//   - RUN001-RUN004: run management errors
package core
