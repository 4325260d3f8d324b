package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/birbparty/kvdb/internal/config"
	"github.com/birbparty/kvdb/internal/snapshot"
	"github.com/birbparty/kvdb/internal/telemetry"
	"github.com/birbparty/kvdb/sdk"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	a := newCLI(os.Stdout, os.Stderr)
	if err := a.app().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "kvdb:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for a missing key so scripts can tell it from failures.
func exitCode(err error) int {
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	if sdk.IsNotFound(err) {
		return 2
	}
	return 1
}

// kvdbCLI holds what the commands share once the profile is loaded.
type kvdbCLI struct {
	out    io.Writer
	errOut io.Writer

	profile   *config.Profile
	log       *logrus.Entry
	providers *telemetry.Providers
	bucket    *sdk.Bucket

	openObjectStore func(config.SnapshotConfig) (snapshot.ObjectStore, error)
}

func newCLI(out, errOut io.Writer) *kvdbCLI {
	return &kvdbCLI{
		out:             out,
		errOut:          errOut,
		openObjectStore: openS3,
	}
}

func openS3(cfg config.SnapshotConfig) (snapshot.ObjectStore, error) {
	return snapshot.NewS3Store(snapshot.S3Config{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		Bucket:    cfg.Bucket,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		PathStyle: cfg.Endpoint != "",
	})
}

func (k *kvdbCLI) app() *cli.App {
	return &cli.App{
		Name:      "kvdb",
		Usage:     "read and write a kvdb bucket",
		Writer:    k.out,
		ErrWriter: k.errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "profile `FILE` (.yaml or .toml)"},
			&cli.StringFlag{Name: "base-url", Usage: "service `URL`"},
			&cli.StringFlag{Name: "bucket", Aliases: []string{"b"}, Usage: "bucket `ID`"},
			&cli.StringFlag{Name: "token", Aliases: []string{"t"}, Usage: "access `TOKEN`"},
			&cli.DurationFlag{Name: "timeout", Usage: "request timeout"},
			&cli.StringFlag{Name: "log-level", Usage: "log `LEVEL`"},
		},
		Before:         k.before,
		After:          k.after,
		Commands:       k.commands(),
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// before loads the profile and applies flags on top of it.
func (k *kvdbCLI) before(c *cli.Context) error {
	profile, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	if c.IsSet("base-url") {
		profile.BaseURL = strings.TrimRight(c.String("base-url"), "/")
	}
	if c.IsSet("bucket") {
		profile.Bucket = c.String("bucket")
	}
	if c.IsSet("token") {
		profile.Token = c.String("token")
	}
	if c.IsSet("timeout") {
		profile.Timeout = c.Duration("timeout").String()
	}
	if c.IsSet("log-level") {
		profile.LogLevel = c.String("log-level")
	}
	if err := profile.Validate(); err != nil {
		return err
	}
	k.profile = profile

	k.providers, err = telemetry.Init(c.Context, profile.TelemetryConfig(), k.errOut)
	if err != nil {
		return err
	}
	k.log = k.providers.Log
	return nil
}

func (k *kvdbCLI) after(c *cli.Context) error {
	if k.bucket != nil {
		k.bucket.Close()
	}
	if k.providers == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := k.providers.Shutdown(ctx); err != nil {
		k.log.WithError(err).Warn("Failed to flush telemetry")
	}
	return nil
}

// openBucket builds the bucket on first use so that help and usage errors
// never need a bucket id.
func (k *kvdbCLI) openBucket() (*sdk.Bucket, error) {
	if k.bucket != nil {
		return k.bucket, nil
	}
	if k.profile.Bucket == "" {
		return nil, cli.Exit("no bucket configured: pass --bucket or set KVDB_BUCKET", 1)
	}

	cfg := k.profile.SDKConfig().WithTracerProvider(k.providers.TracerProvider)
	if k.profile.TelemetryConfig().EnableMetrics {
		observer, err := telemetry.NewMetricsObserver(k.providers.MeterProvider)
		if err != nil {
			return nil, err
		}
		cfg = cfg.WithObserver(observer)
	}

	bucket, err := sdk.NewBucket(k.profile.Bucket, k.profile.Token, cfg)
	if err != nil {
		return nil, err
	}
	k.bucket = bucket
	k.log.WithFields(logrus.Fields{
		"bucket":   bucket.ID(),
		"base_url": k.profile.BaseURL,
	}).Debug("Bucket opened")
	return bucket, nil
}

func (k *kvdbCLI) snapshots() (*snapshot.Manager, error) {
	store, err := k.openObjectStore(k.profile.Snapshot)
	if err != nil {
		return nil, err
	}
	return snapshot.NewManager(store,
		snapshot.WithPrefix(k.profile.Snapshot.Prefix),
		snapshot.WithLogger(k.log),
	), nil
}
