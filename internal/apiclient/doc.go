// Package apiclient is the HTTP client for the learning-portal REST API.
//
// Every request carries the session's bearer token and a fresh X-Request-ID.
// Failures are returned as *Error, classified as transport, server or auth;
// a 401 additionally runs Config.OnUnauthorized so the session can be dropped.
package apiclient
