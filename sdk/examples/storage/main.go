// Command storage shows the two storage adapters over one bucket: the
// Web Storage view and the asynchronous driver.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/birbparty/kvdb/sdk"
	"github.com/birbparty/kvdb/sdk/driver"
	"github.com/birbparty/kvdb/sdk/webstorage"
)

func main() {
	baseURL := os.Getenv("KVDB_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	bucket, err := sdk.NewBucket("storage-demo", "", sdk.DefaultConfig().WithBaseURL(baseURL))
	if err != nil {
		log.Fatalf("Failed to create bucket: %v", err)
	}
	defer bucket.Close()

	ctx := context.Background()

	// Web Storage: reads never fail, writes do
	storage := webstorage.New(bucket)
	if err := storage.SetItem(ctx, "theme", "dark"); err != nil {
		log.Fatalf("Failed to set item: %v", err)
	}
	if theme, ok := storage.GetItem(ctx, "theme"); ok {
		fmt.Printf("theme = %s\n", theme)
	}
	fmt.Printf("length = %d\n", storage.Length(ctx))

	// Driver: values go through the JSON serializer
	d, err := driver.NewDescriptor().InitStorage(driver.Options{Bucket: bucket})
	if err != nil {
		log.Fatalf("Failed to init driver: %v", err)
	}

	async := d.Async()
	saved := async.SetItem(ctx, "profile", map[string]any{"name": "ada", "age": 36}, func(v any, err error) {
		if err == nil {
			fmt.Printf("saved %v\n", v)
		}
	})
	if _, err := saved.Await(ctx); err != nil {
		log.Fatalf("Failed to save profile: %v", err)
	}

	found, err := d.Iterate(ctx, func(value any, key string, ordinal int) any {
		fmt.Printf("%d. %s\n", ordinal, key)
		if key == "profile" {
			return value
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to iterate: %v", err)
	}
	fmt.Printf("profile = %v\n", found)

	if err := storage.Clear(ctx); err != nil {
		log.Fatalf("Failed to clear: %v", err)
	}
}
