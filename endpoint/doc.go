// Package endpoint implements the synchronous producer/consumer pair.
//
// A Send publishes the request with a reply-to destination chosen by the
// endpoint configuration:
//   - an explicit reply destination
//   - a named reply destination resolved through the transport
//   - a temporary destination created for the exchange and deleted afterwards
//
// A background listener waits on that destination for the correlated reply and
// stores it in the producer's correlation manager. Receive then polls the
// manager within a bounded timeout.
//
//	ep, _ := endpoint.NewSyncEndpoint(transport,
//	    endpoint.WithDestinationName("orders.${env}"),
//	    endpoint.WithTimeout(5*time.Second),
//	)
//	if err := ep.Producer().Send(ctx, contracts.NewMessage(`{"id":1}`), tctx); err != nil {
//	    return err
//	}
//	reply, err := ep.Consumer().Receive(ctx, tctx)
package endpoint
