// Package api exposes the resource engine over HTTP. It routes every
// registered resource type, decodes and validates JSON:API request
// documents, delegates to the services and renders their results, errors
// included, as JSON:API documents.
package api
