//go:build wasm

// Command wasm exposes a bucket to JavaScript as globalThis.kvdb. Every
// function returns a Promise.
//
//	GOOS=js GOARCH=wasm go build -o kvdb.wasm ./sdk/examples/wasm
package main

import (
	"context"
	"syscall/js"

	"github.com/birbparty/kvdb/sdk"
)

func main() {
	js.Global().Set("kvdb", map[string]any{
		"bucket": js.FuncOf(newBucket),
	})
	select {}
}

// newBucket(id, token, baseURL?) returns an object with get, set, incr,
// delete and list.
func newBucket(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return js.Global().Get("Error").New("bucket(id, token, baseURL?)")
	}

	config := sdk.DefaultConfig()
	if len(args) > 2 && args[2].Type() == js.TypeString {
		config = config.WithBaseURL(args[2].String())
	}

	bucket, err := sdk.NewBucket(args[0].String(), args[1].String(), config)
	if err != nil {
		return js.Global().Get("Error").New(err.Error())
	}

	return map[string]any{
		"get": promised(func(ctx context.Context, args []js.Value) (any, error) {
			return bucket.Get(ctx, args[0].String())
		}),
		"set": promised(func(ctx context.Context, args []js.Value) (any, error) {
			return bucket.Set(ctx, args[0].String(), args[1].String(), nil)
		}),
		"incr": promised(func(ctx context.Context, args []js.Value) (any, error) {
			return bucket.Incr(ctx, args[0].String(), int64(args[1].Int()))
		}),
		"delete": promised(func(ctx context.Context, args []js.Value) (any, error) {
			return bucket.Delete(ctx, args[0].String())
		}),
		"list": promised(func(ctx context.Context, args []js.Value) (any, error) {
			keys, err := bucket.List(ctx, nil)
			if err != nil {
				return nil, err
			}
			out := make([]any, len(keys))
			for i, k := range keys {
				out[i] = k
			}
			return out, nil
		}),
	}
}

// promised runs fn off the event loop and settles a Promise with its result.
func promised(fn func(context.Context, []js.Value) (any, error)) js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) any {
		var executor js.Func
		executor = js.FuncOf(func(_ js.Value, p []js.Value) any {
			resolve, reject := p[0], p[1]
			go func() {
				defer executor.Release()
				v, err := fn(context.Background(), args)
				if err != nil {
					reject.Invoke(js.Global().Get("Error").New(err.Error()))
					return
				}
				resolve.Invoke(v)
			}()
			return nil
		})
		return js.Global().Get("Promise").New(executor)
	})
}
