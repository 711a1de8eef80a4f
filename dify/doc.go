// Package dify is a client for the Dify service API.
//
// Each resource group of the API is a service on Client:
//
//	client := dify.New(os.Getenv("DIFY_API_KEY"))
//	defer client.Close()
//
//	resp, err := client.Chat.Send(ctx, &dify.ChatRequest{
//	    Query: "What is Dify?",
//	    User:  "user-1",
//	})
//
// Streaming calls return a *ChatStream that must be closed:
//
//	stream, err := client.Chat.Stream(ctx, req)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for stream.Next() {
//	    fmt.Print(stream.Current().Answer)
//	}
//	return stream.Err()
//
// Every error is a *core.Error. Use errors.Is with the core sentinels
// (core.ErrNotFound, core.ErrRateLimited, ...) or core.KindOf to classify it.
//
// Retries and circuit breaking are off for POST calls unless
// WithRetryablePOST is set; GET calls always go through the configured
// resilience policy.
package dify
