// Package api serves the onkyod HTTP API and the WebSocket line transport.
//
// Endpoints:
//
//	GET  /api/v1/health                       liveness and component health
//	GET  /api/v1/metrics                      runtime and gateway counters
//	GET  /api/v1/receivers                    gateway snapshot
//	GET  /api/v1/receivers/{name}             one receiver
//	POST /api/v1/receivers/{name}/commands    {"command":"volume 40"}
//	POST /api/v1/commands                     same, every receiver
//	GET  /api/v1/audit                        command audit trail
//	GET  /ws                                  line protocol over WebSocket
//
// A WebSocket connection is a regular gateway client: each text message is
// one command line and each notification arrives as one text message.
//
// The server follows the same lifecycle as the other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
