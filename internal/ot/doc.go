// Package ot implements the operational-transform rules used to reconcile
// concurrent edits against a single, server-authoritative total order.
//
// Offsets and lengths count runes. Every function here is pure: inputs are
// never modified and no persistence is involved.
//
// Policy for a delete that spans a concurrently inserted text: the insert
// survives. The delete is split into the pieces on either side of the
// inserted text and committed as one multi-span operation.
package ot
