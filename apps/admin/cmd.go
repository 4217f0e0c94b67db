package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/karibu/core"
	"github.com/trezcool/karibu/core/registry"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf   *core.Config
	db     *sqlx.DB
	store  registry.Store
	regSvc *registry.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  registry list [-category CATEGORY]          - print claimed keys")
	fmt.Println("  registry has -category CATEGORY -key KEY    - check whether a key is claimed")
	fmt.Println("  registry claim -category CATEGORY -key KEY  - claim a key")
	fmt.Println("  migrate COMMAND [ARGS]                      - run database migrations (postgres backend)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "registry":
		return cli.runRegistry(args[2:])
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) runRegistry(args []string) error {
	if len(args) < 1 {
		cli.printUsage()
		return errHelp
	}

	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	listCat := listCmd.String("category", "", "Only list this category.")

	hasCmd := flag.NewFlagSet("has", flag.ExitOnError)
	hasCat := hasCmd.String("category", "", "The registry category.")
	hasKey := hasCmd.String("key", "", "The key to check.")

	claimCmd := flag.NewFlagSet("claim", flag.ExitOnError)
	claimCat := claimCmd.String("category", "", "The registry category.")
	claimKey := claimCmd.String("key", "", "The key to claim.")

	switch args[0] {
	case "list":
		if err := listCmd.Parse(args[1:]); err != nil {
			return err
		}
		return cli.listKeys(*listCat)
	case "has":
		if err := hasCmd.Parse(args[1:]); err != nil {
			return err
		}
		if *hasCat == "" || *hasKey == "" {
			hasCmd.Usage()
			return errHelp
		}
		return cli.hasKey(*hasCat, *hasKey)
	case "claim":
		if err := claimCmd.Parse(args[1:]); err != nil {
			return err
		}
		if *claimCat == "" || *claimKey == "" {
			claimCmd.Usage()
			return errHelp
		}
		return cli.claimKey(*claimCat, *claimKey)
	default:
		cli.printUsage()
		return errHelp
	}
}
