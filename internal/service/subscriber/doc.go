// Package subscriber implements subscriber management for a workspace,
// including the bulk reconciliation engine behind the sync API.
//
// The engine accepts an arbitrarily large batch of subscriber records,
// resolves which emails already exist for the workspace with a single
// lookup, then processes the batch in fixed-size chunks: each chunk is
// classified into inserts and updates and written in one transaction with
// at most two statements (a multi-row insert and a multi-row conditional
// update). Chunks commit independently; a failure in one chunk never rolls
// back chunks already written.
//
// The service depends on the Repository interface defined in this package
// and never imports from internal/api. Implementations live in
// repository/postgres and repository/memory.
package subscriber
