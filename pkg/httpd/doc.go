// Package httpd serves a repository to HTTP remotes.
//
// Routes:
//
//	GET  /healthz                         liveness
//	GET  /metrics                         prometheus metrics
//	GET  /branches                        branches and their heads
//	GET  /heads/{branch}                  head of a branch
//	POST /heads/{branch}                  compare-and-set the head of a branch
//	HEAD /objects/{kind}/{hash}           object existence
//	GET  /objects/{kind}/{hash}           encoded object
//	PUT  /objects/{kind}/{hash}           store an encoded object, verified against its hash
//
// Branch names are escaped segment by segment. When a user is configured, all routes but
// /healthz and /metrics require basic authentication.
package httpd
