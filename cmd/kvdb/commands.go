package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/birbparty/kvdb/sdk"
	"github.com/birbparty/kvdb/sdk/webstorage"
	"github.com/urfave/cli/v2"
)

func (k *kvdbCLI) commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "get",
			Usage:     "print the value of a key",
			ArgsUsage: "KEY",
			Action:    k.get,
		},
		{
			Name:      "set",
			Usage:     "store a value; VALUE \"-\" reads stdin",
			ArgsUsage: "KEY VALUE",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "content-type", Usage: "Content-Type sent with the value"},
			},
			Action: k.set,
		},
		{
			Name:      "incr",
			Usage:     "add DELTA (default 1) to an integer value",
			ArgsUsage: "KEY [DELTA]",
			Action:    k.incr,
		},
		{
			Name:      "delete",
			Aliases:   []string{"rm"},
			Usage:     "delete a key",
			ArgsUsage: "KEY",
			Action:    k.delete,
		},
		{
			Name:    "list",
			Aliases: []string{"ls"},
			Usage:   "list keys",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "prefix", Usage: "only keys starting with `PREFIX`"},
				&cli.IntFlag{Name: "skip", Usage: "skip the first `N` keys"},
				&cli.IntFlag{Name: "limit", Usage: "return at most `N` keys"},
				&cli.BoolFlag{Name: "reverse", Usage: "descending order"},
				&cli.BoolFlag{Name: "values", Usage: "print key=value"},
			},
			Action: k.list,
		},
		{
			Name:  "token",
			Usage: "issue an access token",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "prefix", Usage: "restrict the token to `PREFIX`"},
				&cli.StringSliceFlag{Name: "permissions", Aliases: []string{"p"}, Usage: "read, write, delete, list"},
				&cli.DurationFlag{Name: "ttl", Usage: "token lifetime"},
			},
			Action: k.token,
		},
		{
			Name:   "length",
			Usage:  "print the number of keys (-1 when unavailable)",
			Action: k.length,
		},
		{
			Name:      "key",
			Usage:     "print the key at INDEX in listing order",
			ArgsUsage: "INDEX",
			Action:    k.key,
		},
		{
			Name:   "clear",
			Usage:  "delete every key in the bucket",
			Flags:  []cli.Flag{&cli.IntFlag{Name: "concurrency", Value: 8, Usage: "parallel deletes"}},
			Action: k.clear,
		},
		{
			Name:  "export",
			Usage: "write the bucket to object storage as JSON Lines",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "keep", Usage: "prune to the newest `N` snapshots afterwards (0 keeps all)"},
			},
			Action: k.export,
		},
		{
			Name:      "import",
			Usage:     "load a snapshot into the bucket (newest when OBJECT is omitted)",
			ArgsUsage: "[OBJECT]",
			Action:    k.importSnapshot,
		},
		{
			Name:   "snapshots",
			Usage:  "list stored snapshots of the bucket",
			Action: k.listSnapshots,
		},
	}
}

func requireArgs(c *cli.Context, least, most int) error {
	if n := c.NArg(); n < least || n > most {
		return cli.Exit(fmt.Sprintf("usage: kvdb %s %s", c.Command.Name, c.Command.ArgsUsage), 1)
	}
	return nil
}

func (k *kvdbCLI) get(c *cli.Context) error {
	if err := requireArgs(c, 1, 1); err != nil {
		return err
	}
	bucket, err := k.openBucket()
	if err != nil {
		return err
	}

	value, err := bucket.Get(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintln(k.out, value)
	return nil
}

func (k *kvdbCLI) set(c *cli.Context) error {
	if err := requireArgs(c, 2, 2); err != nil {
		return err
	}
	bucket, err := k.openBucket()
	if err != nil {
		return err
	}

	value := c.Args().Get(1)
	if value == "-" {
		data, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return err
		}
		value = string(data)
	}

	var opts *sdk.SetOptions
	if ct := c.String("content-type"); ct != "" {
		opts = &sdk.SetOptions{ContentType: ct}
	}
	_, err = bucket.Set(c.Context, c.Args().First(), value, opts)
	return err
}

func (k *kvdbCLI) incr(c *cli.Context) error {
	if err := requireArgs(c, 1, 2); err != nil {
		return err
	}

	delta := int64(1)
	if c.NArg() == 2 {
		d, err := strconv.ParseInt(c.Args().Get(1), 10, 64)
		if err != nil {
			return cli.Exit(fmt.Sprintf("invalid delta %q", c.Args().Get(1)), 1)
		}
		delta = d
	}

	bucket, err := k.openBucket()
	if err != nil {
		return err
	}
	value, err := bucket.Incr(c.Context, c.Args().First(), delta)
	if err != nil {
		return err
	}
	fmt.Fprintln(k.out, value)
	return nil
}

func (k *kvdbCLI) delete(c *cli.Context) error {
	if err := requireArgs(c, 1, 1); err != nil {
		return err
	}
	bucket, err := k.openBucket()
	if err != nil {
		return err
	}
	_, err = bucket.Delete(c.Context, c.Args().First())
	return err
}

func (k *kvdbCLI) list(c *cli.Context) error {
	bucket, err := k.openBucket()
	if err != nil {
		return err
	}

	opts := &sdk.ListOptions{
		Prefix:  c.String("prefix"),
		Skip:    c.Int("skip"),
		Limit:   c.Int("limit"),
		Reverse: c.Bool("reverse"),
	}

	if !c.Bool("values") {
		keys, err := bucket.List(c.Context, opts)
		if err != nil {
			return err
		}
		for _, key := range keys {
			fmt.Fprintln(k.out, key)
		}
		return nil
	}

	entries, err := bucket.ListValues(c.Context, opts)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(k.out, "%s=%s\n", e.Key, e.Value)
	}
	return nil
}

func (k *kvdbCLI) token(c *cli.Context) error {
	bucket, err := k.openBucket()
	if err != nil {
		return err
	}

	opts := &sdk.TokenOptions{
		Prefix: c.String("prefix"),
		TTL:    c.Duration("ttl"),
	}
	for _, p := range c.StringSlice("permissions") {
		for _, name := range strings.Split(p, ",") {
			if name = strings.TrimSpace(name); name != "" {
				opts.Permissions = append(opts.Permissions, sdk.Permission(name))
			}
		}
	}

	token, err := bucket.AccessToken(c.Context, opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(k.out, token)
	return nil
}

func (k *kvdbCLI) storage(c *cli.Context) (*webstorage.Storage, error) {
	bucket, err := k.openBucket()
	if err != nil {
		return nil, err
	}
	opts := []webstorage.Option{webstorage.WithLogger(k.log)}
	if c.IsSet("concurrency") {
		opts = append(opts, webstorage.WithClearConcurrency(c.Int("concurrency")))
	}
	return webstorage.New(bucket, opts...), nil
}

func (k *kvdbCLI) length(c *cli.Context) error {
	s, err := k.storage(c)
	if err != nil {
		return err
	}
	fmt.Fprintln(k.out, s.Length(c.Context))
	return nil
}

func (k *kvdbCLI) key(c *cli.Context) error {
	if err := requireArgs(c, 1, 1); err != nil {
		return err
	}
	index, err := strconv.Atoi(c.Args().First())
	if err != nil || index < 0 {
		return cli.Exit(fmt.Sprintf("invalid index %q", c.Args().First()), 1)
	}

	s, err := k.storage(c)
	if err != nil {
		return err
	}
	key, ok := s.Key(c.Context, index)
	if !ok {
		return cli.Exit(fmt.Sprintf("no key at index %d", index), 2)
	}
	fmt.Fprintln(k.out, key)
	return nil
}

func (k *kvdbCLI) clear(c *cli.Context) error {
	s, err := k.storage(c)
	if err != nil {
		return err
	}
	return s.Clear(c.Context)
}

func (k *kvdbCLI) export(c *cli.Context) error {
	bucket, err := k.openBucket()
	if err != nil {
		return err
	}
	m, err := k.snapshots()
	if err != nil {
		return err
	}

	res, err := m.Export(c.Context, bucket)
	if err != nil {
		return err
	}
	fmt.Fprintf(k.out, "%s\t%d entries\n", res.Key, res.Count)

	if keep := c.Int("keep"); keep > 0 {
		removed, err := m.Prune(c.Context, bucket.ID(), keep)
		if err != nil {
			return err
		}
		if removed > 0 {
			fmt.Fprintf(k.out, "pruned %d snapshots\n", removed)
		}
	}
	return nil
}

func (k *kvdbCLI) importSnapshot(c *cli.Context) error {
	if err := requireArgs(c, 0, 1); err != nil {
		return err
	}
	bucket, err := k.openBucket()
	if err != nil {
		return err
	}
	m, err := k.snapshots()
	if err != nil {
		return err
	}

	res, err := m.Import(c.Context, bucket, c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintf(k.out, "%s\t%d entries\n", res.Key, res.Count)
	return nil
}

func (k *kvdbCLI) listSnapshots(c *cli.Context) error {
	bucket, err := k.openBucket()
	if err != nil {
		return err
	}
	m, err := k.snapshots()
	if err != nil {
		return err
	}

	objects, err := m.Snapshots(c.Context, bucket.ID())
	if err != nil {
		return err
	}
	for _, o := range objects {
		fmt.Fprintf(k.out, "%s\t%d\n", o.Key, o.Size)
	}
	return nil
}
