package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"absensi/internal/master"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

// accountStore is what the CLI writes accounts to.
type accountStore interface {
	UpsertAkun(ctx context.Context, a master.Akun) (master.Akun, error)
}

type commandLine struct {
	accounts accountStore
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -role ROLE -username USERNAME -nama NAMA [-asrama ASRAMA_ID] - create or update an account")
	fmt.Fprintln(cli.out, "    ROLE is admin, pengabsen, wali or pembimbing; wali use their phone number as USERNAME.")
	fmt.Fprintln(cli.out, "    The password (access code for pengabsen) is prompted next.")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserCmd.SetOutput(cli.out)
	role := addUserCmd.String("role", "", "admin, pengabsen, wali or pembimbing")
	username := addUserCmd.String("username", "", "login name; phone number for wali")
	nama := addUserCmd.String("nama", "", "display name")
	asrama := addUserCmd.String("asrama", "", "asrama id, required for pembimbing")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *role == "" || *username == "" || *nama == "" {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*role, *username, *nama, *asrama, string(pwd))
	default:
		cli.printUsage()
		return errHelp
	}
}
