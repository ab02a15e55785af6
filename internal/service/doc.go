// Package service orchestrates resource and relationship operations over
// the store contracts. It owns transaction boundaries and translates store
// errors into the client-facing error kinds of package jsonapi.
package service
