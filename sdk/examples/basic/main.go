// Command basic walks through the Bucket operations against a kvdb server.
//
//	KVDB_BASE_URL=http://localhost:8080 KVDB_BUCKET=demo go run ./sdk/examples/basic
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/birbparty/kvdb/sdk"
)

func main() {
	baseURL := os.Getenv("KVDB_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	bucketID := os.Getenv("KVDB_BUCKET")
	if bucketID == "" {
		bucketID = "demo"
	}

	config := sdk.DefaultConfig().
		WithBaseURL(baseURL).
		WithTimeout(5 * time.Second)

	bucket, err := sdk.NewBucket(bucketID, os.Getenv("KVDB_TOKEN"), config)
	if err != nil {
		log.Fatalf("Failed to create bucket: %v", err)
	}
	defer bucket.Close()

	ctx := context.Background()

	// Set and get
	if _, err := bucket.Set(ctx, "greeting", "hello", nil); err != nil {
		log.Fatalf("Failed to set: %v", err)
	}
	value, err := bucket.Get(ctx, "greeting")
	if err != nil {
		log.Fatalf("Failed to get: %v", err)
	}
	fmt.Printf("greeting = %s\n", value)

	// Counters
	if _, err := bucket.Set(ctx, "visits", "5", nil); err != nil {
		log.Fatalf("Failed to set: %v", err)
	}
	visits, err := bucket.Incr(ctx, "visits", 3)
	if err != nil {
		log.Fatalf("Failed to incr: %v", err)
	}
	fmt.Printf("visits = %s\n", visits)

	// Missing keys are an error you can test for
	if _, err := bucket.Get(ctx, "nope"); sdk.IsNotFound(err) {
		fmt.Println("nope is not set")
	}

	// Listing with values
	entries, err := bucket.ListValues(ctx, &sdk.ListOptions{Limit: 10})
	if err != nil {
		log.Fatalf("Failed to list: %v", err)
	}
	for _, e := range entries {
		fmt.Printf("  %s = %s\n", e.Key, e.Value)
	}

	// A read-only token limited to one prefix
	token, err := bucket.AccessToken(ctx, &sdk.TokenOptions{
		Prefix:      "public:",
		Permissions: []sdk.Permission{sdk.PermissionRead},
		TTL:         time.Hour,
	})
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Printf("read token: %s\n", token)

	// Delete does not check the status
	body, err := bucket.Delete(ctx, "greeting")
	if err != nil {
		log.Fatalf("Failed to delete: %v", err)
	}
	fmt.Printf("delete: %s\n", body)
}
