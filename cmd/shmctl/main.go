// Command shmctl inspects or removes a ring buffer segment.
//
// Usage:
//
//	shmctl inspect [-name osimhen] [-dir /dev/shm] [-capacity 500]
//	shmctl remove [-name osimhen] [-dir /dev/shm]
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/FerroO2000/shmring/internal"
	"github.com/FerroO2000/shmring/internal/config"
	"github.com/FerroO2000/shmring/internal/layout"
	"github.com/FerroO2000/shmring/internal/rb"
	"github.com/FerroO2000/shmring/internal/shm"
)

var errUsage = errors.New("usage: shmctl inspect|remove [flags]")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "shmctl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	cmd, args := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)

	cfg := shm.DefaultConfig()
	fs.StringVar(&cfg.Name, "name", cfg.Name, "name of the shared memory segment")
	fs.StringVar(&cfg.Dir, "dir", cfg.Dir, "directory backing the shared memory segments")

	capacity := layout.Capacity
	if cmd == "inspect" {
		fs.IntVar(&capacity, "capacity", capacity, "number of slots of the ring buffer")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.NewValidator(internal.NewTelemetry("cmd", "shmctl")).Validate(cfg)

	switch cmd {
	case "inspect":
		return inspect(out, cfg, capacity)

	case "remove":
		if err := shm.Remove(cfg); err != nil {
			return fmt.Errorf("remove %s: %w", cfg.Path(), err)
		}
		fmt.Fprintln(out, "removed", cfg.Path())
		return nil

	default:
		return errUsage
	}
}

// inspect maps the segment without taking any part in the protocol
// and prints its control fields and the queued records.
func inspect(out io.Writer, cfg *shm.Config, capacity int) error {
	size, err := shm.Stat(cfg)
	if err != nil {
		return err
	}

	seg, err := shm.OpenExisting(cfg)
	if err != nil {
		return err
	}
	defer seg.Release()

	mem, err := seg.Map(layout.Size(capacity))
	if err != nil {
		return err
	}

	l, err := layout.New(mem, capacity)
	if err != nil {
		return err
	}

	head := l.Head().Load()
	tail := l.Tail().Load()

	fmt.Fprintf(out, "path:     %s\n", seg.Path())
	fmt.Fprintf(out, "size:     %d bytes\n", size)
	fmt.Fprintf(out, "capacity: %d\n", capacity)
	fmt.Fprintf(out, "liveness: %t\n", l.Liveness())
	fmt.Fprintf(out, "head:     %d\n", head)
	fmt.Fprintf(out, "tail:     %d\n", tail)
	fmt.Fprintf(out, "lock:     %#x\n", l.LockWord().Load())

	records := rb.NewRingBuffer(l).Snapshot()
	if records == nil && (head >= uint32(capacity) || tail >= uint32(capacity)) {
		fmt.Fprintln(out, "cursors out of range, wrong capacity?")
		return nil
	}

	fmt.Fprintf(out, "records:  %d\n", len(records))
	for _, rec := range records {
		fmt.Fprintf(out, "  %s\n", rec.String())
	}

	return nil
}
