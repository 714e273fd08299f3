// Package gateway implements the Gateway Facade (spec §4.8): the single
// HTTP/JSON entry point that translates REST requests into Engine calls
// and streams back a workflow's status via Server-Sent Events.
//
// Grounded on the teacher's internal/aggregator/server.go: a plain
// net/http.ServeMux, a minimal hand-rolled middleware chain, and a
// /health handler returning a static JSON body — the teacher does not
// reach for chi or gorilla/mux for its primary HTTP surface, so this
// package doesn't either.
package gateway
