// Package cli implements the command-line interface for contractfinder.
//
// The root command loads configuration once per invocation and builds the application:
// serve runs the HTTP API, ingest performs one scrape-score-upsert pass, leads lists
// stored leads and status updates a lead's sales status.
package cli
