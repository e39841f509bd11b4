// Package http contains the chi HTTP handlers for the service. Handlers
// validate and decode requests, delegate to the services layer, and
// render JSON responses; errors surface as RFC 7807 problem documents.
package http
