// Package sdk is a Go client for kvdb, a hosted key-value store with a small
// REST API. A Bucket maps method calls onto single HTTP round trips:
//
//	Get         GET    /<bucket>/<key>
//	Set         PUT    /<bucket>/<key>
//	Incr        PATCH  /<bucket>/<key>          body "+n" or "-n"
//	Delete      DELETE /<bucket>/<key>
//	List        GET    /<bucket>/?format=json&prefix=&skip=&limit=&reverse=
//	ListValues  GET    /<bucket>/?format=json&values=true&...
//	AccessToken POST   /<bucket>/tokens/        form: prefix, permissions, ttl
//
// The SDK keeps no state between calls. There is no cache, no retry and no
// background work; what kvdb answers is what the caller gets.
//
// # Basic Usage
//
//	bucket, err := sdk.NewBucket("MY_BUCKET_ID", "", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer bucket.Close()
//
//	ctx := context.Background()
//
//	if _, err := bucket.Set(ctx, "greeting", "hello", nil); err != nil {
//	    log.Fatal(err)
//	}
//	v, err := bucket.Get(ctx, "greeting")
//
// # Authorization
//
// A bucket created with a token sends "Authorization: Bearer <token>" on
// every request. Scoped tokens are issued with AccessToken:
//
//	tok, err := bucket.AccessToken(ctx, &sdk.TokenOptions{
//	    Prefix:      "user:42:",
//	    Permissions: []sdk.Permission{sdk.PermissionRead},
//	    TTL:         time.Hour,
//	})
//	readOnly, err := sdk.NewBucket(bucket.ID(), tok, nil)
//
// # Error Handling
//
// Non-2xx responses become *HTTPError, whose message is "<status> - <text>".
// Transport failures are *NetworkError and unwrap to the transport error.
//
//	v, err := bucket.Get(ctx, "missing")
//	if sdk.IsNotFound(err) {
//	    // 404
//	}
//
// Delete does not look at the response status; see Bucket.Delete.
//
// # Storage adapters
//
// Two adapters re-express a Bucket as local storage contracts:
// package webstorage (Web Storage style, reads degrade to sentinels) and
// package driver (a named offline-storage driver with value serialization).
//
// # Observability
//
// Config.Observer receives a start and end event per request, and every
// request runs inside an OpenTelemetry client span named "kvdb.<op>".
package sdk
