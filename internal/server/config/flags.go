package config

import (
	"flag"

	"github.com/dmitrijs2005/yggkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-o string   ops gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   access token HMAC secret
//	-u string   public root URL used to build texture links
//	-r string   Redis address; empty keeps join records in memory
//	-b string   texture backend: fs, s3 or memory
//	-t string   texture directory for the fs backend
//	-k string   PEM file with the RSA signature key
//	-n int      token table capacity
//	-l duration login cool-down per identity
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-o", "-d", "-s", "-u", "-r", "-b", "-t", "-k", "-n", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run HTTP server")
	fs.StringVar(&config.EndpointAddrGRPC, "o", config.EndpointAddrGRPC, "address and port to run ops gRPC server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.RootURL, "u", config.RootURL, "public root URL")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.TextureBackend, "b", config.TextureBackend, "texture backend (fs|s3|memory)")
	fs.StringVar(&config.TextureDir, "t", config.TextureDir, "texture directory")
	fs.StringVar(&config.SignatureKeyFile, "k", config.SignatureKeyFile, "signature key PEM file")
	fs.IntVar(&config.TokenCapacity, "n", config.TokenCapacity, "token table capacity")
	fs.DurationVar(&config.LoginCoolDown, "l", config.LoginCoolDown, "login cool-down")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
