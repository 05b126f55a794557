package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/yggkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/yggkeeper/internal/server"
	"github.com/dmitrijs2005/yggkeeper/internal/server/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig(os.Args[1:])
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
