package config

import (
	"flag"
	"os"
	"time"

	"github.com/ibcol/portal/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-g string   gRPC bind address (e.g., ":50051")
//	-s string   file reference secret
//	-t int      signed URL validity, minutes
//	-b string   storage backend: s3, gcs or file
//	-l string   locales directory
//
// Only these flags are read from os.Args; anything else is left for other
// parsers (e.g. -c for the JSON file).
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-s", "-t", "-b", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port to run server")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC address and port to run server")
	fs.StringVar(&config.FileRefSecret, "s", config.FileRefSecret, "file reference secret")
	ttl := fs.Int("t", int(config.SignedURLTTL.Minutes()), "signed URL validity (in minutes)")
	fs.StringVar(&config.StorageBackend, "b", config.StorageBackend, "storage backend (s3, gcs, file)")
	fs.StringVar(&config.LocalesDir, "l", config.LocalesDir, "locales directory")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// Only an explicit -t overrides: the default is rounded to whole minutes.
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.SignedURLTTL = time.Duration(*ttl) * time.Minute
		}
	})
	return nil
}
