package main

import (
	"log"
	"os"

	"github.com/trezcool/karibu/core"
	"github.com/trezcool/karibu/core/registry"
	"github.com/trezcool/karibu/storage/database"
	blobstore "github.com/trezcool/karibu/storage/registry/blob"
	filestore "github.com/trezcool/karibu/storage/registry/file"
	pgstore "github.com/trezcool/karibu/storage/registry/postgres"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	cli := commandLine{conf: conf}
	switch conf.RegistryBackend() {
	case core.RegistryBackendBlob:
		local := filestore.NewStore(conf.Registry.FilePath)
		cli.store = blobstore.NewStore(conf.Blob.BaseURL, conf.Blob.Token, conf.Blob.Key, local)
	case core.RegistryBackendPostgres:
		db, err := database.Open(conf)
		errAndDie(err)
		defer func() { _ = db.Close() }()
		errAndDie(db.Ping())
		cli.db = db
		cli.store = pgstore.NewStore(db)
	default:
		cli.store = filestore.NewStore(conf.Registry.FilePath)
	}
	cli.regSvc = registry.NewService(cli.store)

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
