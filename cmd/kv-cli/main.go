package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/heysubinoy/dollarkv/pkg/client"
)

const defaultAddr = "127.0.0.1:5555"

var (
	addr    string
	timeout time.Duration
)

func init() {
	baseProg := filepath.Base(os.Args[0])
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] store <key> <value>\n", baseProg)
		fmt.Fprintf(os.Stderr, "       %s [options] load <key>\n\n", baseProg)
		flag.PrintDefaults()
	}

	def := defaultAddr
	if v := os.Getenv("KV_ADDR"); v != "" {
		def = v
	}
	flag.StringVarP(&addr, "addr", "a", def, "server address (env KV_ADDR)")
	flag.DurationVarP(&timeout, "timeout", "t", 5*time.Second, "per-request timeout")
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c, err := client.Dial(ctx, addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()
	c.SetTimeout(timeout)

	switch args[0] {
	case "store":
		if len(args) != 3 {
			flag.Usage()
			os.Exit(2)
		}
		if err := c.Store(args[1], args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("DONE")

	case "load":
		if len(args) != 2 {
			flag.Usage()
			os.Exit(2)
		}
		value, found, err := c.Load(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if !found {
			fmt.Println("NOTFOUND")
			os.Exit(1)
		}
		fmt.Println(value)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		flag.Usage()
		os.Exit(2)
	}
}
