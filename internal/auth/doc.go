// Package auth provides API key authentication for the climdiff HTTP
// service. The key is configured under server.auth (mode apikey, header,
// key_env) and compared in constant time.
package auth
