// Package protocol implements the action-dispatch channel shared by the main
// side and the worker side.
//
// A Channel owns one Transport endpoint. It frames outbound calls as request
// frames carrying a correlation id, routes inbound requests to registered
// handlers, and resolves each pending call when the response bearing the same
// id arrives. Responses for different calls may arrive in any order.
//
// The Channel handles:
//   - Sending request frames with unique correlation ids
//   - Receiving and correlating response-success / response-failure frames
//   - Handler registration and dispatch for inbound requests
//   - Optional JSON Schema validation of inbound payloads
//   - Teardown that rejects every pending call
//
// Example usage:
//
//	ch := protocol.NewChannel(log, transport, controller, nil)
//	ch.Start(ctx)
//
//	ch.RegisterHandler("ping", func(ctx context.Context, req *protocol.Request) (any, error) {
//	    return map[string]int{"n": 2}, nil
//	})
//
//	result, err := ch.Dispatch(ctx, "ping", map[string]int{"n": 1})
package protocol
