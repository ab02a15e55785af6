// Package domain declares the resource types served by the API: their
// attributes, relationships, sortable fields and validation rules.
package domain
