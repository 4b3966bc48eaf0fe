// Package app is the application layer. KarmaService turns inbound chat
// events into karma votes against a domain.DocumentStore and serves the
// read-side standings.
package app
