// Package monitor runs the periodic reconciliation loop that advances
// download requests by polling the download manager and metadata service.
package monitor
