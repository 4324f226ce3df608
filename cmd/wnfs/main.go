package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	cid "github.com/ipfs/go-cid"
	golog "github.com/ipfs/go-log/v2"
	cli "github.com/urfave/cli/v2"

	"github.com/wnfs-go/wnfs"
	"github.com/wnfs-go/wnfs/mdstore"
)

// externalState mirrors private.go's ExternalState: the one thing the
// CLI must persist outside of content-addressed storage, since
// everything else is reachable from this single root CID.
type externalState struct {
	RootCID cid.Cid `json:"rootCid"`
}

func externalStatePath() (string, error) {
	dir := os.Getenv("WNFS_PATH")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".wnfs")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.json"), nil
}

func loadOrCreateExternalState(path string) (*externalState, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &externalState{}, nil
	}
	if err != nil {
		return nil, err
	}
	st := &externalState{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decoding external state %s: %w", path, err)
	}
	return st, nil
}

func (s *externalState) write(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func openStore() (mdstore.Store, error) {
	dir := os.Getenv("WNFS_PATH")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".wnfs")
	}
	pebble, err := mdstore.OpenPebble(filepath.Join(dir, "blocks"))
	if err != nil {
		return nil, fmt.Errorf("opening block store: %w", err)
	}
	return mdstore.NewCached(pebble, 64<<20), nil
}

func open(ctx context.Context) (wnfs.WNFS, *externalState, string) {
	store, err := openStore()
	if err != nil {
		errExit("error: opening store: %s\n", err)
	}

	statePath, err := externalStatePath()
	if err != nil {
		errExit("error: getting state path: %s\n", err)
	}
	state, err := loadOrCreateExternalState(statePath)
	if err != nil {
		errExit("error: loading external state: %s\n", err)
	}

	var fsys wnfs.WNFS
	if !state.RootCID.Defined() {
		fmt.Printf("creating new wnfs filesystem...")
		if fsys, err = wnfs.NewEmptyFS(ctx, store); err != nil {
			errExit("error: creating empty WNFS: %s\n", err)
		}
		fmt.Println("done")
	} else {
		if fsys, err = wnfs.FromCID(ctx, store, state.RootCID); err != nil {
			errExit("error: opening WNFS CID %s: %s\n", state.RootCID, err.Error())
		}
	}

	return fsys, state, statePath
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fsys, state, statePath := open(ctx)

	updateExternalState := func() {
		state.RootCID = fsys.Cid()
		fmt.Printf("writing root cid: %s...", state.RootCID)
		if err := state.write(statePath); err != nil {
			errExit("error: writing external state: %s\n", err)
		}
		fmt.Println("done")
	}

	mutationOpts := wnfs.MutationOptions{Commit: true}

	app := &cli.App{
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "print verbose output",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				golog.SetLogLevel("wnfs", "debug")
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "mkdir",
				Usage: "create a directory. path must start with public/ or private/",
				Action: func(c *cli.Context) error {
					defer updateExternalState()
					return fsys.Mkdir(c.Args().Get(0), mutationOpts)
				},
			},
			{
				Name:  "cat",
				Usage: "print a file's contents to stdout",
				Action: func(c *cli.Context) error {
					data, err := fsys.Cat(c.Args().Get(0))
					if err != nil {
						return err
					}
					_, err = os.Stdout.Write(data)
					return err
				},
			},
			{
				Name:    "write",
				Aliases: []string{"add"},
				Usage:   "write a local file into wnfs",
				Action: func(c *cli.Context) error {
					path := c.Args().Get(0)
					localFile := c.Args().Get(1)
					f, err := os.Open(localFile)
					if err != nil {
						return err
					}
					defer f.Close()

					defer updateExternalState()
					return fsys.Write(path, f, mutationOpts)
				},
			},
			{
				Name:  "ls",
				Usage: "list the contents of a directory ('' lists public/ and private/)",
				Action: func(c *cli.Context) error {
					entries, err := fsys.Ls(c.Args().Get(0))
					if err != nil {
						return err
					}
					for _, entry := range entries {
						name := entry.Name()
						if entry.IsDir() {
							name += "/"
						}
						fmt.Println(name)
					}
					return nil
				},
			},
			{
				Name:  "rm",
				Usage: "remove a file or directory",
				Action: func(c *cli.Context) error {
					defer updateExternalState()
					return fsys.Rm(c.Args().Get(0), mutationOpts)
				},
			},
			{
				Name:  "mv",
				Usage: "move a file or directory within one tree",
				Action: func(c *cli.Context) error {
					defer updateExternalState()
					return fsys.Mv(c.Args().Get(0), c.Args().Get(1), mutationOpts)
				},
			},
			{
				Name:  "cid",
				Usage: "print the current root CID",
				Action: func(c *cli.Context) error {
					fmt.Println(fsys.Cid())
					return nil
				},
			},
			{
				Name:      "history",
				Usage:     "list prior versions of a file or directory, most recent first",
				ArgsUsage: "path [maxRevs]",
				Action: func(c *cli.Context) error {
					maxRevs := 0
					if c.Args().Len() > 1 {
						if _, err := fmt.Sscanf(c.Args().Get(1), "%d", &maxRevs); err != nil {
							return fmt.Errorf("parsing maxRevs: %w", err)
						}
					}
					entries, err := fsys.History(c.Args().Get(0), maxRevs)
					if err != nil {
						return err
					}
					for _, entry := range entries {
						fmt.Printf("%s\t%s\n", entry.Cid, entry.Type)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		errExit(err.Error() + "\n")
	}
}

func errExit(msg string, v ...interface{}) {
	fmt.Printf(msg, v...)
	os.Exit(1)
}
