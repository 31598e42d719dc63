package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"

	"github.com/edulab/publication/core/publication"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db  *sql.DB
	svc *publication.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS...] - run database migrations (up, down, status, ...)")
	fmt.Println("  import -publication ID    - re-import files from a publication's source assignment")
	fmt.Println("  submitters -publication ID - list a publication's submitters")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importID := importCmd.Int("publication", 0, "The publication's id.")

	submittersCmd := flag.NewFlagSet("submitters", flag.ExitOnError)
	submittersID := submittersCmd.Int("publication", 0, "The publication's id.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importID == 0 {
			importCmd.Usage()
			return errHelp
		}
		return cli.importFiles(*importID)
	case "submitters":
		if err := submittersCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *submittersID == 0 {
			submittersCmd.Usage()
			return errHelp
		}
		return cli.listSubmitters(*submittersID)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) importFiles(publicationID int) error {
	return cli.svc.HandleImportTrigger(context.Background(), publicationID)
}

func (cli *commandLine) listSubmitters(publicationID int) error {
	ctx := context.Background()
	inst, err := cli.svc.Get(ctx, publicationID)
	if err != nil {
		return err
	}
	subs, err := cli.svc.ListSubmitters(ctx, inst)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		kind := "user"
		if sub.Kind == publication.ActorGroup {
			kind = "group"
		}
		fmt.Printf("%s %d\n", kind, sub.ID)
	}
	return nil
}
