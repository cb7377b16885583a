package main

import (
	"context"

	"github.com/trezcool/virtuallab/core/user"
)

// addUser registers a student account after running the same checks as the public sign-up.
func (cli *commandLine) addUser(nim, name, email, pwd string) error {
	nu := user.NewUser{
		NIM:      nim,
		FullName: name,
		Email:    email,
		Password: pwd,
	}
	if err := nu.Validate(cli.validate); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Register(context.Background(), nu)
	if err != nil {
		return err
	}
	cli.printf("user %s created with ID %d\n", usr.NIM, usr.ID)
	return nil
}
