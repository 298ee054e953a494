package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/aline/internal/config"
	"github.com/dshills/aline/internal/mcp"
	"github.com/dshills/aline/internal/storage"
	"github.com/dshills/aline/internal/stream"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const usage = `Usage:
  aline [-s SEP] [-r] [-b SIZE] [FILE...]   realign FILEs (or stdin) to stdout
  aline serve                               run the MCP server on stdio
  aline --version                           print version information

Every write to stdout ends on a separator, except a final unterminated tail.
SEP accepts escapes such as \n, \r\n, \t, \0 and \xNN.
`

func main() {
	// Log to stderr (stdout reserved for data and the MCP protocol)
	log.SetOutput(os.Stderr)
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "--version", "-version", "version":
			printVersion(stdout)
			return 0
		case "serve":
			if err := serve(); err != nil {
				log.Printf("Server error: %v", err)
				return 1
			}
			return 0
		}
	}

	if err := filter(args, stdin, stdout, stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "aline: %v\n", err)
		return 1
	}
	return 0
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "aline\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Build Mode: %s\n", storage.BuildMode)
	fmt.Fprintf(w, "SQLite Driver: %s\n", storage.DriverName)
	fmt.Fprintf(w, "Schema Version: %s\n", storage.CurrentSchemaVersion)
}

// filter realigns the named files, or stdin, onto stdout
func filter(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("aline", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	sep := fs.String("s", config.FormatSeparator(cfg.Separator), "separator")
	readline := fs.Bool("r", cfg.Readline, "write one line per write")
	readSize := fs.Int("b", stream.DefaultReadSize, "read size in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	separator, err := config.ParseSeparator(*sep)
	if err != nil {
		return err
	}
	cfg.Separator = separator
	cfg.Readline = *readline

	src, closeAll, err := openInputs(fs.Args(), stdin)
	if err != nil {
		return err
	}
	defer closeAll()

	_, err = stream.Copy(stdout, src, stream.ReaderOptions{
		Options:  cfg.Options(),
		ReadSize: *readSize,
	})
	return err
}

// openInputs concatenates the named files; "-" or no names means stdin
func openInputs(names []string, stdin io.Reader) (io.Reader, func(), error) {
	if len(names) == 0 {
		return stdin, func() {}, nil
	}

	readers := make([]io.Reader, 0, len(names))
	files := make([]*os.File, 0, len(names))
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	for _, name := range names {
		if name == "-" {
			readers = append(readers, stdin)
			continue
		}
		f, err := os.Open(name)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		files = append(files, f)
		readers = append(readers, f)
	}
	return io.MultiReader(readers...), closeAll, nil
}

// serve runs the MCP server until stdin closes or a signal arrives
func serve() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	log.Printf("aline MCP server v%s starting...", version)
	log.Printf("Build Mode: %s, Driver: %s", storage.BuildMode, storage.DriverName)

	// Create MCP server
	server, err := mcp.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in a goroutine
	errChan := make(chan error, 1)
	go func() {
		log.Println("MCP server ready, listening on stdio...")
		errChan <- server.Serve(ctx)
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
		_ = server.Close()
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	log.Println("Server stopped")
	return nil
}
