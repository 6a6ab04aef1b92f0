// Package server is the local HTTP surface of lbx serve.
//
// # Routes
//
//	POST /playback/started   player reports a track started; submits "playing now"
//	POST /playback/ended     player reports a track ended with its position; may submit a listen
//	POST /sync               run a reconciliation pass and return its counts
//	GET  /status             latest sync run, next scheduled run, library size
//	GET  /metrics            Prometheus exposition
//
// Playback bodies are a JSON [models.Playback] with an extra "position" field in whole seconds.
//
// # Router
//
// [BasicRouter] wraps [http.ServeMux] method patterns. [Middleware] added first runs outermost.
// Handlers implementing [Handler] carry their own route patterns so related endpoints share one value.
package server
