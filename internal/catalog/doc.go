// Package catalog collects capability lists from running workers.
//
// # Overview
//
// Aggregate queries every worker concurrently over its MCP session and
// returns one Contribution per worker, in input order. A worker that
// cannot be reached, answers with a protocol error, or exceeds the query
// timeout contributes nothing; the failure is logged once and recorded on
// its Contribution, and the other workers are unaffected.
//
// Contributions keep their worker attribution so the routing layer can
// resolve name collisions before the lists are flattened.
package catalog
