// Package ws streams the run list to browser clients over WebSocket.
//
// The hub sends the current list as soon as a client connects, then again
// on every broadcast tick (server.broadcast_interval) and whenever Notify
// is called, which the API does each time a run changes state.
//
// Message format sent to clients:
//
//	{
//	  "event": "runs",
//	  "data":  { /* same schema as GET /api/v1/runs */ }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The server mounts the hub at /ws/runs.
package ws
