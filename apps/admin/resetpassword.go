package main

import (
	"context"
)

func (cli *commandLine) resetPassword(nimOrEmail, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByNIMOrEmail(ctx, nimOrEmail)
	if err != nil {
		return err
	}
	if _, err = cli.usrSvc.SetPassword(ctx, usr, pwd); err != nil {
		return err
	}
	return nil
}
