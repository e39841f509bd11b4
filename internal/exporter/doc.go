// Package exporter renders matrices as CSV for spreadsheet users.
package exporter
