package main

import (
	"context"
	"errors"
	"fmt"

	"absensi/internal/auth"
	"absensi/internal/master"
)

func (cli *commandLine) addUser(role, username, nama, asramaID, pwd string) error {
	r, err := master.ParseRole(role)
	if err != nil {
		return err
	}
	if r == master.RolePembimbing && asramaID == "" {
		return errors.New("pembimbing requires -asrama")
	}
	hash, err := auth.HashSecret(pwd)
	if err != nil {
		return err
	}
	a, err := cli.accounts.UpsertAkun(context.Background(), master.Akun{
		Role:       r,
		Nama:       nama,
		Username:   username,
		SecretHash: hash,
		AsramaID:   asramaID,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "account %s (%s) saved with id %s\n", a.Username, a.Role, a.ID)
	return nil
}
