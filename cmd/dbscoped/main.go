// dbscoped exposes local SQLite databases to a dbscope client. Attach one or
// more files with repeated -db name=path flags:
//
//	dbscoped -listen 127.0.0.1:9224 -db app=./app.db -db cache=./cache.db
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dbscope/dbscope/internal/agent"
	"github.com/dbscope/dbscope/internal/logging"
	"github.com/dbscope/dbscope/internal/transport"
)

type dbFlags []string

func (f *dbFlags) String() string { return strings.Join(*f, ",") }

func (f *dbFlags) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func main() {
	var (
		listen = flag.String("listen", "127.0.0.1:9224", "address to listen on")
		level  = flag.String("log-level", "info", "log level")
		dbs    dbFlags
	)
	flag.Var(&dbs, "db", "database to expose, as name=path (repeatable)")
	flag.Parse()

	if len(dbs) == 0 {
		fmt.Fprintln(os.Stderr, "no databases: pass at least one -db name=path")
		os.Exit(2)
	}

	logger, err := logging.NewStderr(*level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	a := agent.New(logger)
	defer a.Close()

	for _, arg := range dbs {
		name, path, found := strings.Cut(arg, "=")
		if !found {
			path = arg
			name = strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
		}
		if err := a.Attach(name, path); err != nil {
			fmt.Fprintf(os.Stderr, "cannot attach %s: %v\n", arg, err)
			os.Exit(1)
		}
	}

	l, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot listen on %s: %v\n", *listen, err)
		os.Exit(1)
	}
	logger.Info("dbscoped listening", zap.String("addr", *listen))

	srv := transport.NewServer(a, logger)
	if err := srv.Serve(l); err != nil {
		logger.Error("serve", zap.Error(err))
		os.Exit(1)
	}
}
